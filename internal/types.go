package internal

import "time"

type ClientVariant string

const (
	VariantNone  ClientVariant = "NONE"
	VariantPlain ClientVariant = "PLAIN"
	VariantKit   ClientVariant = "KIT"
)

type ValidationMethod string

type OutcomeStatus string

const (
	MethodStated ValidationMethod = "STATED"
	MethodSummed ValidationMethod = "SUMMED"
	MethodNone   ValidationMethod = "NONE"

	StatusOK        OutcomeStatus = "OK"
	StatusDivergent OutcomeStatus = "DIVERGENT"
)

// EmailRecord is one qualifying validation request of the processing day.
type EmailRecord struct {
	ClientKey   string
	SummedTotal int
	StatedTotal int
	Subject     string
	MessageID   string
	ReceivedAt  time.Time
}

// ExternalReport maps a client key to the delivered total observed on the portal.
type ExternalReport map[string]int

func (r ExternalReport) Observed(clientKey string) int {
	if r == nil {
		return 0
	}
	return r[clientKey]
}

// Lookup is Observed plus whether the report carried the key at all.
func (r ExternalReport) Lookup(clientKey string) (int, bool) {
	v, ok := r[clientKey]
	return v, ok
}

type ValidationOutcome struct {
	ClientKey     string
	SummedTotal   int
	StatedTotal   int
	ObservedTotal int
	DisplayValue  int
	Method        ValidationMethod
	Status        OutcomeStatus
	Duplicates    int
}

type NotificationEntry struct {
	ClientKey     string
	DisplayValue  int
	ObservedTotal int
	Status        OutcomeStatus
	Method        ValidationMethod
}

func NotificationEntries(outcomes []ValidationOutcome) []NotificationEntry {
	out := make([]NotificationEntry, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, NotificationEntry{
			ClientKey:     o.ClientKey,
			DisplayValue:  o.DisplayValue,
			ObservedTotal: o.ObservedTotal,
			Status:        o.Status,
			Method:        o.Method,
		})
	}
	return out
}

// InboxMessage is a mailbox message as seen by the validation pipeline. ID is
// provider specific (IMAP UID or Gmail message id) and only meaningful to the
// connector that produced it.
type InboxMessage struct {
	ID             string
	Folder         string
	MessageID      string
	References     []string
	Subject        string
	Body           string
	From           string
	To             []string
	Cc             []string
	ReceivedAt     time.Time
	ConversationID string
	Replied        bool
	Raw            []byte
}

type SentMessage struct {
	ConversationID string
	SentAt         time.Time
}

type DiagnosticLevel string

const (
	LevelInfo  DiagnosticLevel = "info"
	LevelWarn  DiagnosticLevel = "warn"
	LevelError DiagnosticLevel = "error"
)

type DiagnosticKind string

const (
	KindExtractionFailure DiagnosticKind = "extraction_failure"
	KindLookupMiss        DiagnosticKind = "lookup_miss"
	KindMatchFailure      DiagnosticKind = "match_failure"
	KindDuplicateKey      DiagnosticKind = "duplicate_key"
	KindAlreadyAnswered   DiagnosticKind = "already_answered"
	KindDivergent         DiagnosticKind = "divergent"
	KindCollaborator      DiagnosticKind = "collaborator"
	KindRecord            DiagnosticKind = "record"
	KindReplied           DiagnosticKind = "replied"
)

// Diagnostic is a structured signal returned by a pipeline stage. Stages never
// log; callers decide how to surface diagnostics.
type Diagnostic struct {
	Stage     string
	Level     DiagnosticLevel
	Kind      DiagnosticKind
	ClientKey string
	Subject   string
	Message   string
}

type ReplyAction struct {
	ClientKey    string
	MessageID    string
	Subject      string
	Method       ValidationMethod
	DisplayValue int
	Observed     int
	Moved        bool
	DryRun       bool
}
