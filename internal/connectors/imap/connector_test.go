package imap

import (
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courierval/internal"
	"courierval/internal/config"
)

const rawReply = "From: Cliente <cliente@example.com>\r\n" +
	"To: ops@example.com\r\n" +
	"Subject: RE: Validacao Correios\r\n" +
	"Message-ID: <req-2@example.com>\r\n" +
	"In-Reply-To: <req-1@example.com>\r\n" +
	"References: <req-1@example.com>\r\n" +
	"Content-Type: text/plain\r\n\r\n" +
	"10000001 ITEM CLIENTE_X 100\r\nTOTAL 100\r\n"

func TestNewConnectorRequiresCredentials(t *testing.T) {
	_, err := NewConnector(config.Config{IMAPHost: "imap.example.com"}, zerolog.Nop())
	assert.ErrorContains(t, err, "IMAP_USER")
}

func TestToInboxMessage(t *testing.T) {
	c := &Connector{folder: "Processamento Correios", log: zerolog.Nop()}
	received := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	msg, err := c.toInboxMessage(&imap.Message{
		Uid:          42,
		Flags:        []string{imap.SeenFlag, imap.AnsweredFlag},
		InternalDate: received,
	}, []byte(rawReply))
	require.NoError(t, err)

	assert.Equal(t, "42", msg.ID)
	assert.Equal(t, "Processamento Correios", msg.Folder)
	assert.Equal(t, "<req-2@example.com>", msg.MessageID)
	assert.Equal(t, "<req-1@example.com>", msg.ConversationID)
	assert.Equal(t, "RE: Validacao Correios", msg.Subject)
	assert.Contains(t, msg.Body, "CLIENTE_X")
	assert.True(t, msg.Replied)
	assert.True(t, msg.ReceivedAt.Equal(received))
}

func TestParseUID(t *testing.T) {
	uid, err := parseUID("17")
	require.NoError(t, err)
	assert.Equal(t, uint32(17), uid)

	for _, bad := range []string{"", "0", "abc", "m1"} {
		_, err := parseUID(bad)
		assert.Error(t, err, bad)
	}
}

func TestFolderOf(t *testing.T) {
	assert.Equal(t, "INBOX", folderOf(internal.InboxMessage{}, "INBOX"))
	assert.Equal(t, "Outra", folderOf(internal.InboxMessage{Folder: "Outra"}, "INBOX"))
}
