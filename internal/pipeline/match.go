package pipeline

import (
	"courierval/internal"
	"courierval/internal/util"
)

// MatchesClient reports whether a mailbox message belongs to the given client.
// Keys of the ambiguous family match on variant, so a plain request is never
// answered with the kit validation and vice versa. Other keys match as a
// case-insensitive substring of subject or body.
func MatchesClient(clientKey string, msg internal.InboxMessage) bool {
	if clientKey == "" {
		return false
	}
	if want := KeyVariant(clientKey); want != internal.VariantNone {
		return ClassifyVariant(msg.Subject, msg.Body) == want
	}
	return util.ContainsFold(msg.Subject, clientKey) || util.ContainsFold(msg.Body, clientKey)
}

// Answered reports whether a message already got a reply, either flagged on the
// message itself or visible as a sent message in the same conversation sent
// after the message arrived.
func Answered(msg internal.InboxMessage, sent []internal.SentMessage) bool {
	if msg.Replied {
		return true
	}
	if msg.ConversationID == "" {
		return false
	}
	for _, s := range sent {
		if s.ConversationID == msg.ConversationID && s.SentAt.After(msg.ReceivedAt) {
			return true
		}
	}
	return false
}
