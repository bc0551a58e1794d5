package pipeline

import (
	"context"
	"time"

	"courierval/internal"
)

type fakeMailbox struct {
	inbox []internal.InboxMessage
	sent  []internal.SentMessage

	listErr  error
	sentErr  error
	replyErr error
	moveErr  error

	listCalls int
	replies   []string
	bodies    map[string]string
	moves     map[string]string
}

func (f *fakeMailbox) ListToday(_ context.Context, _ time.Time) ([]internal.InboxMessage, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]internal.InboxMessage, len(f.inbox))
	copy(out, f.inbox)
	return out, nil
}

func (f *fakeMailbox) ListSent(_ context.Context, _ time.Time) ([]internal.SentMessage, error) {
	if f.sentErr != nil {
		return nil, f.sentErr
	}
	return f.sent, nil
}

func (f *fakeMailbox) Reply(_ context.Context, msg internal.InboxMessage, body string) error {
	if f.replyErr != nil {
		return f.replyErr
	}
	f.replies = append(f.replies, msg.ID)
	if f.bodies == nil {
		f.bodies = map[string]string{}
	}
	f.bodies[msg.ID] = body
	return nil
}

func (f *fakeMailbox) Move(_ context.Context, msg internal.InboxMessage, folder string) error {
	if f.moveErr != nil {
		return f.moveErr
	}
	if f.moves == nil {
		f.moves = map[string]string{}
	}
	f.moves[msg.ID] = folder
	return nil
}

var testDay = time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return testDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func inboxMsg(id, subject, body string, received time.Time) internal.InboxMessage {
	return internal.InboxMessage{
		ID:             id,
		MessageID:      "<" + id + "@example.com>",
		Subject:        subject,
		Body:           body,
		ReceivedAt:     received,
		ConversationID: "conv-" + id,
	}
}
