package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/curvemarket/internal/domain"
)

type recordingSender struct {
	name   string
	err    error
	titles []string
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyEventFilters(t *testing.T) {
	rec := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{rec}, []string{"MarketResolved", " MarketCancelled"}, quietLogger())
	ctx := context.Background()

	require.NoError(t, n.NotifyEvent(ctx, domain.MarketResolved{MarketID: 3, WinningOutcome: 1}))
	require.NoError(t, n.NotifyEvent(ctx, domain.MarketCancelled{MarketID: 4, Reason: "void"}))
	require.NoError(t, n.NotifyEvent(ctx, domain.MarketClosed{MarketID: 5}))

	assert.Equal(t, []string{"Market 3 resolved", "Market 4 cancelled"}, rec.titles)
	assert.False(t, n.Enabled("SharesPurchased"))
}

func TestNotifyWithoutFilterSendsEverything(t *testing.T) {
	rec := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{rec}, nil, quietLogger())
	require.NoError(t, n.NotifyEvent(context.Background(), domain.MarketClosed{MarketID: 5}))
	assert.Len(t, rec.titles, 1)

	none := NewNotifier(nil, nil, quietLogger())
	assert.False(t, none.Enabled("MarketClosed"))
}

func TestDispatchCollectsFailures(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, quietLogger())

	err := n.NotifyAll(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Len(t, good.titles, 1, "one failing sender does not block the others")
}

func TestDescribe(t *testing.T) {
	user := common.HexToAddress("0xA1")
	title, msg := Describe(domain.WinningsClaimed{User: user, MarketID: 2, Payout: uint256.NewInt(1_500_000_000)})
	assert.Equal(t, "Market 2 payout", title)
	assert.Contains(t, msg, "1.5 CSPR")

	title, _ = Describe(domain.MarketAuthorized{Market: user})
	assert.Equal(t, "MarketAuthorized", title)
}

func TestDiscordSender(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	require.NoError(t, d.Send(context.Background(), "Market 1 resolved", "Winning outcome 0"))
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "Market 1 resolved", got.Embeds[0].Title)
	assert.Equal(t, "discord", d.Name())
}

func TestTelegramSender(t *testing.T) {
	var path string
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegramSender("TOKEN", "42")
	tg.apiBase = srv.URL
	require.NoError(t, tg.Send(context.Background(), "title", "body"))
	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*title*\nbody", got["text"])
}

func TestSenderReportsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
}
