package connectors

import (
	"context"
	"time"

	"courierval/internal"
)

// Mailbox is the inbox the validation requests arrive in. Implementations read
// the live mailbox on every call; nothing is cached between runs.
type Mailbox interface {
	ListToday(ctx context.Context, day time.Time) ([]internal.InboxMessage, error)
	ListSent(ctx context.Context, since time.Time) ([]internal.SentMessage, error)
	Reply(ctx context.Context, msg internal.InboxMessage, body string) error
	Move(ctx context.Context, msg internal.InboxMessage, folder string) error
}

// StartOfDay returns local midnight of the given day.
func StartOfDay(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, day.Location())
}

func SameDay(a, b time.Time) bool {
	ay, am, ad := a.In(b.Location()).Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
