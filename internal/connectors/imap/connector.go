package imap

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"
	"github.com/rs/zerolog"

	"courierval/internal"
	"courierval/internal/config"
	"courierval/internal/connectors"
)

type Connector struct {
	host       string
	port       int
	secure     bool
	user       string
	password   string
	folder     string
	sentFolder string
	from       connectors.Sender
	smtp       enmime.Sender
	log        zerolog.Logger
}

func NewConnector(cfg config.Config, log zerolog.Logger) (*Connector, error) {
	required := [][2]string{
		{"IMAP_HOST", cfg.IMAPHost},
		{"IMAP_USER", cfg.IMAPUser},
		{"IMAP_PASSWORD", cfg.IMAPPassword},
		{"SMTP_HOST", cfg.SMTPHost},
		{"MAIL_FROM", cfg.MailFrom},
	}
	for _, kv := range required {
		if err := cfg.Require(kv[0], kv[1]); err != nil {
			return nil, err
		}
	}

	return &Connector{
		host:       cfg.IMAPHost,
		port:       cfg.IMAPPort,
		secure:     cfg.IMAPSecure,
		user:       cfg.IMAPUser,
		password:   cfg.IMAPPassword,
		folder:     cfg.MailFolder,
		sentFolder: cfg.MailSentFolder,
		from:       connectors.Sender{Name: cfg.MailFromName, Address: cfg.MailFrom},
		smtp:       newSMTPSender(cfg),
		log:        log.With().Str("component", "imap").Logger(),
	}, nil
}

func (c *Connector) dial(ctx context.Context) (*imapclient.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addr := fmt.Sprintf("%s:%d", c.host, c.port)
	var client *imapclient.Client
	var err error
	if c.secure {
		client, err = imapclient.DialTLS(addr, &tls.Config{ServerName: c.host})
	} else {
		client, err = imapclient.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	if err := client.Login(c.user, c.password); err != nil {
		_ = client.Logout()
		return nil, fmt.Errorf("login as %s: %w", c.user, err)
	}
	return client, nil
}

// ListToday returns the messages of the working folder received on day.
func (c *Connector) ListToday(ctx context.Context, day time.Time) ([]internal.InboxMessage, error) {
	client, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Logout()

	if _, err := client.Select(c.folder, true); err != nil {
		return nil, fmt.Errorf("select %s: %w", c.folder, err)
	}

	start := connectors.StartOfDay(day)
	criteria := imap.NewSearchCriteria()
	criteria.Since = start
	criteria.Before = start.AddDate(0, 0, 1)
	uids, err := client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", c.folder, err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchInternalDate, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	fetchDone := make(chan error, 1)
	go func() { fetchDone <- client.UidFetch(seqset, items, messages) }()

	out := make([]internal.InboxMessage, 0, len(uids))
	var readErr error
	for msg := range messages {
		if msg == nil || readErr != nil {
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			readErr = fmt.Errorf("read message %d: %w", msg.Uid, err)
			continue
		}
		inbox, err := c.toInboxMessage(msg, raw)
		if err != nil {
			c.log.Warn().Err(err).Uint32("uid", msg.Uid).Msg("skipping unparsable message")
			continue
		}
		out = append(out, inbox)
	}

	if err := <-fetchDone; err != nil {
		return nil, fmt.Errorf("fetch %s: %w", c.folder, err)
	}
	if readErr != nil {
		return nil, readErr
	}
	return out, nil
}

func (c *Connector) toInboxMessage(msg *imap.Message, raw []byte) (internal.InboxMessage, error) {
	parsed, err := connectors.ParseRaw(raw)
	if err != nil {
		return internal.InboxMessage{}, err
	}

	thread := connectors.ThreadHeader{MessageID: parsed.MessageID, References: parsed.References}
	out := internal.InboxMessage{
		ID:         strconv.FormatUint(uint64(msg.Uid), 10),
		Folder:     c.folder,
		MessageID:  parsed.MessageID,
		References: parsed.References,
		Subject:    parsed.Subject,
		Body:       parsed.Text,
		From:       parsed.From,
		To:         parsed.To,
		Cc:         parsed.Cc,
		ReceivedAt: msg.InternalDate,
		Replied:    hasFlag(msg.Flags, imap.AnsweredFlag),
		Raw:        raw,
	}
	if msg.Envelope != nil {
		if out.Subject == "" {
			out.Subject = msg.Envelope.Subject
		}
		if out.MessageID == "" {
			out.MessageID = msg.Envelope.MessageId
			thread.MessageID = msg.Envelope.MessageId
		}
	}
	if out.MessageID == "" {
		out.MessageID = fmt.Sprintf("imap-%d", msg.Uid)
	}
	if out.ReceivedAt.IsZero() {
		out.ReceivedAt = parsed.Date
	}
	out.ConversationID = thread.ConversationID()
	return out, nil
}

// ListSent returns the conversations of messages sent since the given time.
func (c *Connector) ListSent(ctx context.Context, since time.Time) ([]internal.SentMessage, error) {
	client, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Logout()

	if _, err := client.Select(c.sentFolder, true); err != nil {
		return nil, fmt.Errorf("select %s: %w", c.sentFolder, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = connectors.StartOfDay(since)
	uids, err := client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", c.sentFolder, err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{BodyPartName: imap.BodyPartName{Specifier: imap.HeaderSpecifier}, Peek: true}
	items := []imap.FetchItem{imap.FetchInternalDate, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	fetchDone := make(chan error, 1)
	go func() { fetchDone <- client.UidFetch(seqset, items, messages) }()

	out := make([]internal.SentMessage, 0, len(uids))
	for msg := range messages {
		if msg == nil {
			continue
		}
		header := msg.GetBody(section)
		if header == nil {
			continue
		}
		thread, err := connectors.ReadThreadHeader(header)
		if err != nil {
			continue
		}
		sentAt := thread.Date
		if sentAt.IsZero() {
			sentAt = msg.InternalDate
		}
		if sentAt.Before(since) {
			continue
		}
		out = append(out, internal.SentMessage{ConversationID: thread.ConversationID(), SentAt: sentAt})
	}

	if err := <-fetchDone; err != nil {
		return nil, fmt.Errorf("fetch %s: %w", c.sentFolder, err)
	}
	return out, nil
}

// Reply sends a reply-all through SMTP, then files a copy in the sent folder
// and flags the original as answered. Only the send itself can fail the call.
func (c *Connector) Reply(ctx context.Context, msg internal.InboxMessage, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	builder, _, err := connectors.BuildReply(c.from, msg, body)
	if err != nil {
		return err
	}
	part, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build reply: %w", err)
	}
	if err := builder.Send(c.smtp); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}

	var encoded bytes.Buffer
	if err := part.Encode(&encoded); err != nil {
		c.log.Warn().Err(err).Msg("encode reply for sent folder")
		return nil
	}
	if err := c.afterReply(ctx, msg, &encoded); err != nil {
		c.log.Warn().Err(err).Str("message_id", msg.MessageID).Msg("reply sent but mailbox bookkeeping failed")
	}
	return nil
}

func (c *Connector) afterReply(ctx context.Context, msg internal.InboxMessage, encoded *bytes.Buffer) error {
	client, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Logout()

	if c.sentFolder != "" {
		if err := client.Append(c.sentFolder, []string{imap.SeenFlag}, time.Now(), encoded); err != nil {
			return fmt.Errorf("append to %s: %w", c.sentFolder, err)
		}
	}

	uid, err := parseUID(msg.ID)
	if err != nil {
		return err
	}
	if _, err := client.Select(folderOf(msg, c.folder), false); err != nil {
		return err
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	return client.UidStore(seqset, item, []interface{}{imap.AnsweredFlag}, nil)
}

// Move files the message into folder, creating the folder when missing. Servers
// without MOVE get COPY, \Deleted and EXPUNGE.
func (c *Connector) Move(ctx context.Context, msg internal.InboxMessage, folder string) error {
	uid, err := parseUID(msg.ID)
	if err != nil {
		return err
	}
	client, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Logout()

	if err := ensureFolder(client, folder); err != nil {
		return err
	}
	if _, err := client.Select(folderOf(msg, c.folder), false); err != nil {
		return fmt.Errorf("select %s: %w", folderOf(msg, c.folder), err)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	if err := client.UidMove(seqset, folder); err == nil {
		return nil
	}
	if err := client.UidCopy(seqset, folder); err != nil {
		return fmt.Errorf("copy to %s: %w", folder, err)
	}
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := client.UidStore(seqset, item, []interface{}{imap.DeletedFlag}, nil); err != nil {
		return fmt.Errorf("mark deleted: %w", err)
	}
	if err := client.Expunge(nil); err != nil {
		return fmt.Errorf("expunge: %w", err)
	}
	return nil
}

func ensureFolder(client *imapclient.Client, name string) error {
	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() { done <- client.List("", "*", mailboxes) }()

	exists := false
	for mbox := range mailboxes {
		if strings.EqualFold(mbox.Name, name) {
			exists = true
		}
	}
	if err := <-done; err != nil {
		return fmt.Errorf("list folders: %w", err)
	}
	if exists {
		return nil
	}
	if err := client.Create(name); err != nil {
		return fmt.Errorf("create folder %s: %w", name, err)
	}
	return nil
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, flag) {
			return true
		}
	}
	return false
}

func parseUID(id string) (uint32, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil || uid == 0 {
		return 0, fmt.Errorf("invalid imap uid %q", id)
	}
	return uint32(uid), nil
}

func folderOf(msg internal.InboxMessage, fallback string) string {
	if msg.Folder != "" {
		return msg.Folder
	}
	return fallback
}
