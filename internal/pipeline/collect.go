package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"courierval/internal"
	"courierval/internal/connectors"
)

const StageCollect = "collect"

// RawArchive keeps a copy of a qualifying message. It returns where the copy
// was written.
type RawArchive interface {
	Archive(msg internal.InboxMessage) (string, error)
}

type Collector struct {
	mailbox connectors.Mailbox
	archive RawArchive
}

func NewCollector(mailbox connectors.Mailbox, archive RawArchive) *Collector {
	return &Collector{mailbox: mailbox, archive: archive}
}

type CollectResult struct {
	Records     []internal.EmailRecord
	Archived    map[string]string
	Scanned     int
	Qualifying  int
	Diagnostics []internal.Diagnostic
}

// Collect lists the day's inbox and turns every validation request into an
// EmailRecord. Messages that cannot be resolved are dropped with a diagnostic.
func (c *Collector) Collect(ctx context.Context, day time.Time) (CollectResult, error) {
	res := CollectResult{Archived: map[string]string{}}

	messages, err := c.mailbox.ListToday(ctx, day)
	if err != nil {
		return res, fmt.Errorf("list inbox: %w", err)
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].ReceivedAt.Before(messages[j].ReceivedAt)
	})
	res.Scanned = len(messages)

	for _, msg := range messages {
		if !IsValidationRequest(msg.Subject) {
			continue
		}
		res.Qualifying++

		rec, diag, ok := BuildRecord(msg)
		res.Diagnostics = append(res.Diagnostics, diag)
		if !ok {
			continue
		}
		res.Records = append(res.Records, rec)

		if c.archive == nil || len(msg.Raw) == 0 {
			continue
		}
		path, err := c.archive.Archive(msg)
		if err != nil {
			res.Diagnostics = append(res.Diagnostics, internal.Diagnostic{
				Stage:     StageCollect,
				Level:     internal.LevelWarn,
				Kind:      internal.KindCollaborator,
				ClientKey: rec.ClientKey,
				Subject:   msg.Subject,
				Message:   "archive raw message: " + err.Error(),
			})
			continue
		}
		res.Archived[msg.MessageID] = path
	}
	return res, nil
}

// BuildRecord runs extraction and identity resolution on one qualifying
// message. The diagnostic describes either the record or why it was dropped.
func BuildRecord(msg internal.InboxMessage) (internal.EmailRecord, internal.Diagnostic, bool) {
	body := msg.Body
	subject := msg.Subject
	if body == "" && len(msg.Raw) > 0 {
		if rawSubject, rawBody, err := BodyFromRaw(msg.Raw); err == nil {
			body = rawBody
			subject = firstNonEmpty(subject, rawSubject)
		}
	}

	key := ResolveClientKey(subject, body)
	totals := ExtractTotals(body)
	if key == "" || !totals.Resolved() {
		reason := "client key not found"
		if key != "" {
			reason = "no contract lines or stated total"
		}
		return internal.EmailRecord{}, internal.Diagnostic{
			Stage:     StageCollect,
			Level:     internal.LevelWarn,
			Kind:      internal.KindExtractionFailure,
			ClientKey: key,
			Subject:   subject,
			Message:   reason,
		}, false
	}

	rec := internal.EmailRecord{
		ClientKey:   key,
		SummedTotal: totals.Summed,
		StatedTotal: totals.Stated,
		Subject:     subject,
		MessageID:   msg.MessageID,
		ReceivedAt:  msg.ReceivedAt,
	}
	return rec, internal.Diagnostic{
		Stage:     StageCollect,
		Level:     internal.LevelInfo,
		Kind:      internal.KindRecord,
		ClientKey: key,
		Subject:   subject,
		Message:   fmt.Sprintf("summed %d from %d lines, stated %d", totals.Summed, totals.Lines, totals.Stated),
	}, true
}

// Keys returns the distinct client keys of records in first-appearance order.
func Keys(records []internal.EmailRecord) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, r := range records {
		if _, ok := seen[r.ClientKey]; ok {
			continue
		}
		seen[r.ClientKey] = struct{}{}
		out = append(out, r.ClientKey)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
