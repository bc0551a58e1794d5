package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"courierval/internal"
	"courierval/internal/config"
	"courierval/internal/connectors"
)

const sentLabel = "SENT"

type Connector struct {
	service *gmail.Service
	folder  string
	from    connectors.Sender
	log     zerolog.Logger
	labels  map[string]string
}

func NewConnector(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Connector, error) {
	if err := cfg.Require("GMAIL_CLIENT_ID", cfg.GmailClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_CLIENT_SECRET", cfg.GmailClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailModifyScope},
	}

	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}
	return NewWithService(svc, cfg.MailFolder, connectors.Sender{Name: cfg.MailFromName, Address: cfg.MailFrom}, log), nil
}

func NewWithService(svc *gmail.Service, folder string, from connectors.Sender, log zerolog.Logger) *Connector {
	return &Connector{
		service: svc,
		folder:  folder,
		from:    from,
		log:     log.With().Str("component", "gmail").Logger(),
	}
}

// ListToday returns the messages carrying the working label received on day.
func (c *Connector) ListToday(ctx context.Context, day time.Time) ([]internal.InboxMessage, error) {
	labelID, err := c.labelID(ctx, c.folder, false)
	if err != nil {
		return nil, err
	}

	start := connectors.StartOfDay(day)
	call := c.service.Users.Messages.List("me").Q(dayQuery(start))
	if labelID != "" {
		call = call.LabelIds(labelID)
	}

	ids := []string{}
	err = call.Pages(ctx, func(resp *gmail.ListMessagesResponse) error {
		for _, m := range resp.Messages {
			if m.Id != "" {
				ids = append(ids, m.Id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := make([]internal.InboxMessage, 0, len(ids))
	for _, id := range ids {
		rawResp, err := c.service.Users.Messages.Get("me", id).Format("raw").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("get message %s: %w", id, err)
		}
		if rawResp.Raw == "" {
			continue
		}
		raw, err := decodeBase64URL(rawResp.Raw)
		if err != nil {
			return nil, err
		}
		parsed, err := connectors.ParseRaw(raw)
		if err != nil {
			c.log.Warn().Err(err).Str("id", id).Msg("skipping unparsable message")
			continue
		}

		received := time.UnixMilli(rawResp.InternalDate)
		if rawResp.InternalDate == 0 {
			received = parsed.Date
		}
		messageID := parsed.MessageID
		if messageID == "" {
			messageID = id
		}
		out = append(out, internal.InboxMessage{
			ID:             id,
			Folder:         labelID,
			MessageID:      messageID,
			References:     parsed.References,
			Subject:        parsed.Subject,
			Body:           parsed.Text,
			From:           parsed.From,
			To:             parsed.To,
			Cc:             parsed.Cc,
			ReceivedAt:     received,
			ConversationID: rawResp.ThreadId,
			Raw:            raw,
		})
	}
	return out, nil
}

// ListSent returns the threads that received a sent message since the given
// time.
func (c *Connector) ListSent(ctx context.Context, since time.Time) ([]internal.SentMessage, error) {
	ids := []string{}
	err := c.service.Users.Messages.List("me").LabelIds(sentLabel).Q(fmt.Sprintf("after:%d", since.Unix())).
		Pages(ctx, func(resp *gmail.ListMessagesResponse) error {
			for _, m := range resp.Messages {
				if m.Id != "" {
					ids = append(ids, m.Id)
				}
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list sent: %w", err)
	}

	out := make([]internal.SentMessage, 0, len(ids))
	for _, id := range ids {
		m, err := c.service.Users.Messages.Get("me", id).Format("minimal").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("get sent message %s: %w", id, err)
		}
		out = append(out, internal.SentMessage{ConversationID: m.ThreadId, SentAt: time.UnixMilli(m.InternalDate)})
	}
	return out, nil
}

// Reply sends a reply-all in the message's thread.
func (c *Connector) Reply(ctx context.Context, msg internal.InboxMessage, body string) error {
	builder, _, err := connectors.BuildReply(c.from, msg, body)
	if err != nil {
		return err
	}
	part, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build reply: %w", err)
	}
	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}

	out := &gmail.Message{
		Raw:      base64.RawURLEncoding.EncodeToString(buf.Bytes()),
		ThreadId: msg.ConversationID,
	}
	if _, err := c.service.Users.Messages.Send("me", out).Context(ctx).Do(); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// Move relabels the message: the destination label is added (created when
// missing) and the working label is removed.
func (c *Connector) Move(ctx context.Context, msg internal.InboxMessage, folder string) error {
	target, err := c.labelID(ctx, folder, true)
	if err != nil {
		return err
	}
	req := &gmail.ModifyMessageRequest{AddLabelIds: []string{target}}
	if msg.Folder != "" && msg.Folder != target {
		req.RemoveLabelIds = []string{msg.Folder}
	}
	if _, err := c.service.Users.Messages.Modify("me", msg.ID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("modify labels of %s: %w", msg.ID, err)
	}
	return nil
}

// labelID resolves a label name. An empty name means the whole mailbox.
func (c *Connector) labelID(ctx context.Context, name string, create bool) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", nil
	}
	if strings.EqualFold(name, "INBOX") {
		return "INBOX", nil
	}
	if c.labels == nil {
		resp, err := c.service.Users.Labels.List("me").Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("list labels: %w", err)
		}
		c.labels = map[string]string{}
		for _, l := range resp.Labels {
			c.labels[strings.ToLower(l.Name)] = l.Id
		}
	}
	if id, ok := c.labels[strings.ToLower(name)]; ok {
		return id, nil
	}
	if !create {
		return "", fmt.Errorf("label %q not found", name)
	}
	label, err := c.service.Users.Labels.Create("me", &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create label %q: %w", name, err)
	}
	c.labels[strings.ToLower(name)] = label.Id
	return label.Id, nil
}

func dayQuery(start time.Time) string {
	return fmt.Sprintf("after:%d before:%d", start.Unix(), start.AddDate(0, 0, 1).Unix())
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}
