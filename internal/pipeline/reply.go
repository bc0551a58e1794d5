package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"courierval/internal"
	"courierval/internal/connectors"
)

const StageReply = "reply"

type Responder struct {
	mailbox         connectors.Mailbox
	processedFolder string
	dryRun          bool
}

type ResponderOption func(*Responder)

// WithDryRun makes the responder report what it would answer without sending
// or moving anything.
func WithDryRun(dryRun bool) ResponderOption {
	return func(r *Responder) { r.dryRun = dryRun }
}

func NewResponder(mailbox connectors.Mailbox, processedFolder string, opts ...ResponderOption) *Responder {
	r := &Responder{mailbox: mailbox, processedFolder: processedFolder}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type ReplyReport struct {
	Actions     []internal.ReplyAction
	Unresolved  []string
	Divergent   []string
	Diagnostics []internal.Diagnostic
}

// Respond answers each OK outcome on its originating message. The mailbox is
// listed once; a message is answered at most once per run and never when the
// mailbox shows an earlier reply. Divergent outcomes are only reported.
func (r *Responder) Respond(ctx context.Context, outcomes []internal.ValidationOutcome, day time.Time) (ReplyReport, error) {
	report := ReplyReport{}

	pending := []internal.ValidationOutcome{}
	for _, o := range outcomes {
		if o.Status != internal.StatusOK {
			report.Divergent = append(report.Divergent, o.ClientKey)
			report.Diagnostics = append(report.Diagnostics, internal.Diagnostic{
				Stage:     StageReply,
				Level:     internal.LevelInfo,
				Kind:      internal.KindDivergent,
				ClientKey: o.ClientKey,
				Message:   "divergent outcome, not answered",
			})
			continue
		}
		pending = append(pending, o)
	}
	if len(pending) == 0 {
		return report, nil
	}

	inbox, err := r.mailbox.ListToday(ctx, day)
	if err != nil {
		return report, fmt.Errorf("list inbox: %w", err)
	}
	candidates := make([]internal.InboxMessage, 0, len(inbox))
	for _, msg := range inbox {
		if !IsValidationRequest(msg.Subject) {
			continue
		}
		if !msg.ReceivedAt.IsZero() && !connectors.SameDay(msg.ReceivedAt, day) {
			continue
		}
		candidates = append(candidates, msg)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ReceivedAt.Before(candidates[j].ReceivedAt)
	})

	sent, err := r.mailbox.ListSent(ctx, connectors.StartOfDay(day))
	if err != nil {
		return report, fmt.Errorf("list sent: %w", err)
	}

	consumed := map[string]struct{}{}
	for _, o := range pending {
		msg, found, skipped := r.find(o.ClientKey, candidates, sent, consumed)
		for _, s := range skipped {
			report.Diagnostics = append(report.Diagnostics, internal.Diagnostic{
				Stage:     StageReply,
				Level:     internal.LevelInfo,
				Kind:      internal.KindAlreadyAnswered,
				ClientKey: o.ClientKey,
				Subject:   s.Subject,
				Message:   "already answered, skipped",
			})
		}
		if !found {
			report.Unresolved = append(report.Unresolved, o.ClientKey)
			report.Diagnostics = append(report.Diagnostics, internal.Diagnostic{
				Stage:     StageReply,
				Level:     internal.LevelWarn,
				Kind:      internal.KindMatchFailure,
				ClientKey: o.ClientKey,
				Message:   "no unanswered request found in the mailbox",
			})
			continue
		}
		consumed[msg.ID] = struct{}{}

		action := internal.ReplyAction{
			ClientKey:    o.ClientKey,
			MessageID:    msg.MessageID,
			Subject:      msg.Subject,
			Method:       o.Method,
			DisplayValue: o.DisplayValue,
			Observed:     o.ObservedTotal,
			DryRun:       r.dryRun,
		}
		if r.dryRun {
			report.Actions = append(report.Actions, action)
			continue
		}

		if err := r.mailbox.Reply(ctx, msg, ReplyBody(o)); err != nil {
			return report, fmt.Errorf("reply to %s: %w", o.ClientKey, err)
		}
		report.Diagnostics = append(report.Diagnostics, internal.Diagnostic{
			Stage:     StageReply,
			Level:     internal.LevelInfo,
			Kind:      internal.KindReplied,
			ClientKey: o.ClientKey,
			Subject:   msg.Subject,
			Message:   "validation reply sent",
		})

		if r.processedFolder != "" {
			if err := r.mailbox.Move(ctx, msg, r.processedFolder); err != nil {
				report.Diagnostics = append(report.Diagnostics, internal.Diagnostic{
					Stage:     StageReply,
					Level:     internal.LevelWarn,
					Kind:      internal.KindCollaborator,
					ClientKey: o.ClientKey,
					Subject:   msg.Subject,
					Message:   "move to processed folder failed: " + err.Error(),
				})
			} else {
				action.Moved = true
			}
		}
		report.Actions = append(report.Actions, action)
	}
	return report, nil
}

func (r *Responder) find(clientKey string, candidates []internal.InboxMessage, sent []internal.SentMessage, consumed map[string]struct{}) (internal.InboxMessage, bool, []internal.InboxMessage) {
	skipped := []internal.InboxMessage{}
	for _, msg := range candidates {
		if _, done := consumed[msg.ID]; done {
			continue
		}
		if !MatchesClient(clientKey, msg) {
			continue
		}
		if Answered(msg, sent) {
			skipped = append(skipped, msg)
			continue
		}
		return msg, true, skipped
	}
	return internal.InboxMessage{}, false, skipped
}

// ReplyBody renders the confirmation sent back to the requester.
func ReplyBody(o internal.ValidationOutcome) string {
	var b strings.Builder
	b.WriteString("Bom dia,\n\n")
	fmt.Fprintf(&b, "Validação concluída com SUCESSO para o cliente %s.\n\n", o.ClientKey)
	b.WriteString("Detalhes:\n")
	if o.Method == internal.MethodSummed {
		fmt.Fprintf(&b, "- Total Email: %d (soma dos contratos)\n", o.DisplayValue)
	} else {
		fmt.Fprintf(&b, "- Total Email: %d\n", o.DisplayValue)
	}
	fmt.Fprintf(&b, "- Total GA: %d\n", o.ObservedTotal)
	b.WriteString("- Status: ✓ OK\n\n")
	b.WriteString("A validação foi processada corretamente.\n\n")
	b.WriteString("Att.")
	return b.String()
}
