package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courierval/internal"
	"courierval/internal/config"
	"courierval/internal/util"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func response(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader("")),
		Header:     make(http.Header),
	}
}

var entries = []internal.NotificationEntry{
	{ClientKey: "CLIENTE_X", DisplayValue: 150, ObservedTotal: 150, Status: internal.StatusOK, Method: internal.MethodStated},
	{ClientKey: "ALELO-KIT", DisplayValue: 40, ObservedTotal: 40, Status: internal.StatusOK, Method: internal.MethodSummed},
	{ClientKey: "CLIENTE_Y", DisplayValue: 90, ObservedTotal: 80, Status: internal.StatusDivergent, Method: internal.MethodNone},
}

func newTestClient(rt roundTripFunc) *TeamsClient {
	c := NewTeamsClient("https://teams.test/webhook", time.Second, zerolog.Nop())
	c.httpClient = &http.Client{Transport: rt}
	c.limiter = util.NewRateLimiter(60000)
	c.now = func() time.Time { return time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC) }
	c.backoff = func(int) time.Duration { return time.Millisecond }
	return c
}

func TestNotifyRetriesThenAccepts(t *testing.T) {
	attempt := 0
	var posted Message
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		attempt++
		if attempt == 1 {
			return response(http.StatusTooManyRequests), nil
		}
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		return response(http.StatusAccepted), nil
	})

	require.NoError(t, c.Notify(context.Background(), entries))
	assert.Equal(t, 2, attempt)
	require.Len(t, posted.Attachments, 1)
	assert.Equal(t, "AdaptiveCard", posted.Attachments[0].Content.Type)
}

func TestNotifyBacksOffAfterTransportError(t *testing.T) {
	attempt := 0
	c := newTestClient(func(*http.Request) (*http.Response, error) {
		attempt++
		if attempt < 3 {
			return nil, errors.New("connection reset")
		}
		return response(http.StatusOK), nil
	})
	var waits []int
	c.backoff = func(n int) time.Duration {
		waits = append(waits, n)
		return time.Millisecond
	}

	require.NoError(t, c.Notify(context.Background(), entries))
	assert.Equal(t, 3, attempt)
	assert.Equal(t, []int{1, 2}, waits)
}

func TestNotifyGivesUpAfterTransportErrors(t *testing.T) {
	attempt := 0
	c := newTestClient(func(*http.Request) (*http.Response, error) {
		attempt++
		return nil, errors.New("connection refused")
	})
	waits := 0
	c.backoff = func(int) time.Duration {
		waits++
		return time.Millisecond
	}

	err := c.Notify(context.Background(), entries)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, maxAttempts, attempt)
	assert.Equal(t, maxAttempts-1, waits)
}

func TestJitteredBackoffDoubles(t *testing.T) {
	for attempt := 1; attempt <= 3; attempt++ {
		base := time.Duration(250*(1<<(attempt-1))) * time.Millisecond
		got := jitteredBackoff(attempt)
		assert.GreaterOrEqual(t, got, base)
		assert.Less(t, got, base+100*time.Millisecond)
	}
}

func TestNotifyFailsOnClientError(t *testing.T) {
	attempt := 0
	c := newTestClient(func(*http.Request) (*http.Response, error) {
		attempt++
		return response(http.StatusBadRequest), nil
	})
	err := c.Notify(context.Background(), entries)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=400")
	assert.Equal(t, 1, attempt)
}

func TestBuildCard(t *testing.T) {
	msg := BuildCard(entries, time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC))
	body := msg.Attachments[0].Content.Body
	require.Len(t, body, 4)

	assert.Equal(t, "📊 Validação Correios - ⚠️ DIVERGÊNCIAS DETECTADAS", body[0].Text)
	assert.Equal(t, "**Execução:** 15/10/2026 09:30:00", body[1].Text)
	assert.Equal(t, "attention", body[2].Style)
	assert.Equal(t, []Fact{
		{Title: "✅ CLIENTE_X", Value: "Email: 150 | GA: 150"},
		{Title: "✅ ALELO-KIT", Value: "Email: 40 (SOMA corrigida) | GA: 40"},
		{Title: "❌ CLIENTE_Y", Value: "Email: 90 | GA: 80 ⚠️"},
	}, body[2].Items[0].Facts)
	assert.Equal(t, "**Total de clientes:** 3 | **✅ OK:** 2 | **❌ Divergências:** 1", body[3].Text)
}

func TestBuildCardAllOK(t *testing.T) {
	msg := BuildCard(entries[:1], time.Now())
	body := msg.Attachments[0].Content.Body
	assert.Equal(t, "good", body[2].Style)
	assert.True(t, strings.HasSuffix(body[0].Text, "Todas Validações OK"))
}

func TestNewSinkWithoutWebhook(t *testing.T) {
	sink := NewSink(config.Config{}, zerolog.Nop())
	assert.IsType(t, NopSink{}, sink)
	assert.NoError(t, sink.Notify(context.Background(), entries))
}
