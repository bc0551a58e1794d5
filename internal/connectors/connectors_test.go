package connectors

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courierval/internal"
)

func TestMailStoreArchiveIsIdempotent(t *testing.T) {
	store := NewMailStore(t.TempDir())
	msg := internal.InboxMessage{Raw: []byte("Subject: x\r\n\r\nbody")}

	first, err := store.Archive(msg)
	require.NoError(t, err)
	second, err := store.Archive(msg)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	blob, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, msg.Raw, blob)

	_, err = store.Archive(internal.InboxMessage{})
	assert.Error(t, err)
}

func TestSameDay(t *testing.T) {
	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	assert.True(t, SameDay(day.Add(23*time.Hour), day))
	assert.False(t, SameDay(day.Add(-time.Minute), day))
	assert.Equal(t, day, StartOfDay(day.Add(13*time.Hour+5*time.Minute)))
}

func TestReadThreadHeader(t *testing.T) {
	header := "Message-ID: <reply-1@example.com>\r\n" +
		"In-Reply-To: <req-2@example.com>\r\n" +
		"References: <root@example.com> <req-2@example.com>\r\n" +
		"Date: Thu, 15 Oct 2026 10:30:00 -0300\r\n\r\n"

	got, err := ReadThreadHeader(strings.NewReader(header))
	require.NoError(t, err)
	assert.Equal(t, "<reply-1@example.com>", got.MessageID)
	assert.Equal(t, []string{"<root@example.com>", "<req-2@example.com>"}, got.References)
	assert.Equal(t, "<root@example.com>", got.ConversationID())
	assert.Equal(t, 13, got.Date.UTC().Hour())

	onlyParent, err := ReadThreadHeader(strings.NewReader("Message-ID: <a@x>\r\nIn-Reply-To: <b@x>\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "<b@x>", onlyParent.ConversationID())

	root, err := ReadThreadHeader(strings.NewReader("Message-ID: <a@x>\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "<a@x>", root.ConversationID())
}

func TestParseRawFallsBackToHTML(t *testing.T) {
	raw := "From: Cliente <cliente@example.com>\r\n" +
		"To: ops@example.com, Outro <outro@example.com>\r\n" +
		"Cc: copia@example.com\r\n" +
		"Subject: Validacao Correios\r\n" +
		"Message-ID: <req-1@example.com>\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n\r\n" +
		"<table><tr><td>10000001</td><td>CLIENTE_X</td><td>100</td></tr></table><p>TOTAL 100</p>\r\n"

	got, err := ParseRaw([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "Validacao Correios", got.Subject)
	assert.Equal(t, "<req-1@example.com>", got.MessageID)
	assert.Equal(t, "10000001 CLIENTE_X 100\nTOTAL 100", got.Text)
	assert.Len(t, got.To, 2)
	assert.Len(t, got.Cc, 1)
}

func TestBuildReplyRecipients(t *testing.T) {
	msg := internal.InboxMessage{
		MessageID:  "<req-1@example.com>",
		References: []string{"<root@example.com>"},
		Subject:    "RE: Validacao Correios",
		From:       "Cliente <cliente@example.com>",
		To:         []string{"OPS@example.com", "outro@example.com"},
		Cc:         []string{"copia@example.com", "cliente@example.com"},
	}
	b, id, err := BuildReply(Sender{Name: "Operacao", Address: "ops@example.com"}, msg, "Bom dia")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(id, "@example.com>"))

	part, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "RE: Validacao Correios", part.Header.Get("Subject"))
	assert.Equal(t, "<req-1@example.com>", part.Header.Get("In-Reply-To"))
	assert.Equal(t, "<root@example.com> <req-1@example.com>", part.Header.Get("References"))
	assert.Contains(t, part.Header.Get("To"), "cliente@example.com")
	assert.Contains(t, part.Header.Get("To"), "outro@example.com")
	assert.NotContains(t, strings.ToLower(part.Header.Get("To")), "ops@example.com")
	assert.Equal(t, "<copia@example.com>", part.Header.Get("Cc"))

	_, _, err = BuildReply(Sender{Address: "ops@example.com"}, internal.InboxMessage{From: "ops@example.com"}, "x")
	assert.Error(t, err)
}

func TestReplySubject(t *testing.T) {
	assert.Equal(t, "RE: Validacao", ReplySubject("Validacao"))
	assert.Equal(t, "Re: Validacao", ReplySubject(" Re: Validacao "))
	assert.Equal(t, "RES: Validacao", ReplySubject("RES: Validacao"))
}
