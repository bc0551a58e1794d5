package connectors

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"

	"courierval/internal"
	"courierval/internal/util"
)

type ParsedMessage struct {
	Subject    string
	Text       string
	MessageID  string
	References []string
	From       string
	To         []string
	Cc         []string
	Date       time.Time
}

// ParseRaw reads an RFC 822 message. Text is the plain part, or the flattened
// HTML part when the message has no plain text part. The HTML flattening keeps
// table rows on one line, which the contract line matcher depends on.
func ParseRaw(raw []byte) (ParsedMessage, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return ParsedMessage{}, fmt.Errorf("parse message: %w", err)
	}
	out := ParsedMessage{
		Subject: env.GetHeader("Subject"),
		Text:    env.Text,
		From:    env.GetHeader("From"),
		To:      addressList(env, "To"),
		Cc:      addressList(env, "Cc"),
	}
	if env.HTML != "" && !hasPlainPart(env.Root) {
		out.Text = util.HTMLToText(env.HTML)
	}
	if thread, err := ReadThreadHeader(bytes.NewReader(raw)); err == nil {
		out.MessageID = thread.MessageID
		out.References = thread.References
		out.Date = thread.Date
	}
	return out, nil
}

func hasPlainPart(root *enmime.Part) bool {
	if root == nil {
		return false
	}
	return root.BreadthMatchFirst(func(p *enmime.Part) bool {
		return p.ContentType == "text/plain" && p.Disposition != "attachment"
	}) != nil
}

func addressList(env *enmime.Envelope, key string) []string {
	addrs, err := env.AddressList(key)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}

type ThreadHeader struct {
	MessageID  string
	References []string
	Date       time.Time
}

// ConversationID is the root of the thread: the first reference, then the
// parent, then the message itself.
func (h ThreadHeader) ConversationID() string {
	if len(h.References) > 0 {
		return h.References[0]
	}
	return h.MessageID
}

// ReadThreadHeader parses only the header block. It accepts a full message or a
// BODY[HEADER] fetch.
func ReadThreadHeader(r io.Reader) (ThreadHeader, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return ThreadHeader{}, err
	}
	defer mr.Close()

	h := mr.Header
	out := ThreadHeader{}
	if id, err := h.MessageID(); err == nil && id != "" {
		out.MessageID = "<" + id + ">"
	}
	if refs, err := h.MsgIDList("References"); err == nil {
		for _, ref := range refs {
			out.References = append(out.References, "<"+ref+">")
		}
	}
	if len(out.References) == 0 {
		if parents, err := h.MsgIDList("In-Reply-To"); err == nil && len(parents) > 0 {
			out.References = []string{"<" + parents[0] + ">"}
		}
	}
	if date, err := h.Date(); err == nil {
		out.Date = date
	}
	return out, nil
}

type Sender struct {
	Name    string
	Address string
}

// BuildReply renders a reply-all to msg. The sender is left out of the
// recipients. The returned message id is the one written in the header.
func BuildReply(from Sender, msg internal.InboxMessage, body string) (enmime.MailBuilder, string, error) {
	if from.Address == "" {
		return enmime.MailBuilder{}, "", fmt.Errorf("reply sender address is empty")
	}

	to := recipients(from.Address, append([]string{msg.From}, msg.To...))
	if len(to) == 0 {
		return enmime.MailBuilder{}, "", fmt.Errorf("no recipients for reply to %q", msg.Subject)
	}
	cc := recipients(from.Address, msg.Cc)

	domain := "localhost"
	if _, host, ok := strings.Cut(from.Address, "@"); ok && host != "" {
		domain = host
	}
	messageID := "<" + uuid.NewString() + "@" + domain + ">"

	refs := append([]string{}, msg.References...)
	if msg.MessageID != "" {
		refs = append(refs, msg.MessageID)
	}

	b := enmime.Builder().
		From(from.Name, from.Address).
		ToAddrs(to).
		Subject(ReplySubject(msg.Subject)).
		Date(time.Now()).
		Header("Message-ID", messageID).
		Text([]byte(body))
	if len(cc) > 0 {
		b = b.CCAddrs(cc)
	}
	if msg.MessageID != "" {
		b = b.Header("In-Reply-To", msg.MessageID)
	}
	if len(refs) > 0 {
		b = b.Header("References", strings.Join(refs, " "))
	}
	return b, messageID, nil
}

func ReplySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "re:") || strings.HasPrefix(lower, "res:") {
		return trimmed
	}
	return "RE: " + trimmed
}

func recipients(self string, values []string) []mail.Address {
	seen := map[string]struct{}{strings.ToLower(self): {}}
	out := []mail.Address{}
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		list, err := mail.ParseAddressList(v)
		if err != nil {
			continue
		}
		for _, a := range list {
			key := strings.ToLower(a.Address)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, *a)
		}
	}
	return out
}
