package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/curvemarket/internal/crypto"
	"github.com/alanyoungcy/curvemarket/internal/curve"
	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/host"
	"github.com/alanyoungcy/curvemarket/internal/server/handler"
	"github.com/alanyoungcy/curvemarket/internal/service"
	"github.com/alanyoungcy/curvemarket/internal/store/memory"
)

const genesisTime = 1_700_000_000

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (l *stubLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allow, l.err
}

type testAPI struct {
	t        *testing.T
	srv      *Server
	operator *crypto.Signer
	alice    *crypto.Signer
	ledger   *service.Ledger
}

func newTestAPI(t *testing.T, limiter domain.RateLimiter) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	op, err := crypto.GenerateSigner()
	require.NoError(t, err)
	alice, err := crypto.GenerateSigner()
	require.NoError(t, err)

	env := host.New()
	env.SetBlockTime(genesisTime)
	ledger := service.NewLedger(env, memory.NewStateStore(), memory.NewEventStore(), memory.NewAuditStore(), logger)
	require.NoError(t, ledger.Bootstrap(context.Background(), service.BootstrapParams{
		Operator: op.Address(),
		Genesis: map[domain.Address]*uint256.Int{
			op.Address():    uint256.NewInt(100_000_000_000),
			alice.Address(): uint256.NewInt(100_000_000_000),
		},
	}))

	markets := service.NewMarketService(ledger, service.Policy{
		Operator:      op.Address(),
		DefaultFeeBPS: 200,
		MaxFeeBPS:     500,
		MinDuration:   time.Hour,
		MaxDuration:   30 * 24 * time.Hour,
		Curve:         curve.DefaultParams(),
	}, logger)
	vaults := service.NewVaultService(ledger, logger)

	srv := NewServer(Config{
		Port:        0,
		RateLimit:   10,
		RateWindow:  time.Second,
		AuthMaxSkew: time.Minute,
	}, Handlers{
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"ledger": handler.PingFunc(func(context.Context) error { return nil }),
		}, logger),
		Status:  handler.NewStatusHandler("server", op.Address(), ledger),
		Markets: handler.NewMarketHandler(markets, logger),
		Vault:   handler.NewVaultHandler(vaults, logger),
		Events:  handler.NewEventHandler(ledger, logger),
	}, nil, limiter, memory.NewReplayGuard(), logger)

	return &testAPI{t: t, srv: srv, operator: op, alice: alice, ledger: ledger}
}

func (a *testAPI) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	a.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) post(signer *crypto.Signer, path string, body any) *httptest.ResponseRecorder {
	return a.postAt(signer, path, body, time.Now().Unix())
}

func (a *testAPI) postAt(signer *crypto.Signer, path string, body any, unix int64) *httptest.ResponseRecorder {
	a.t.Helper()
	data, err := json.Marshal(body)
	require.NoError(a.t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	if signer != nil {
		headers, err := signer.RequestHeadersAt(http.MethodPost, path, data, unix)
		require.NoError(a.t, err)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}
	rec := httptest.NewRecorder()
	a.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) deploy() uint64 {
	a.t.Helper()
	rec := a.post(a.operator, "/api/markets", map[string]any{
		"kind":          "binary",
		"question":      "Will it rain tomorrow?",
		"outcome_names": []string{"Yes", "No"},
		"end_time":      genesisTime + 2*3600,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Info struct {
			ID uint64 `json:"id"`
		} `json:"info"`
	}
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Info.ID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestReadRoutesNeedNoSignature(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.get("/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = api.get("/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, genesisTime, decode(t, rec)["block_time"])

	rec = api.get("/api/vault")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["initialized"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	api := newTestAPI(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	api.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestMutationsRequireValidSignature(t *testing.T) {
	api := newTestAPI(t, nil)
	body := map[string]any{"kind": "binary", "question": "Q?", "outcome_names": []string{"Yes", "No"}, "end_time": genesisTime + 7200}

	rec := api.post(nil, "/api/markets", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	stale := time.Now().Add(-10 * time.Minute).Unix()
	rec = api.postAt(api.operator, "/api/markets", body, stale)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Signature by alice claiming to be the operator.
	data, err := json.Marshal(body)
	require.NoError(t, err)
	headers, err := api.alice.RequestHeadersAt(http.MethodPost, "/api/markets", data, time.Now().Unix())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/markets", bytes.NewReader(data))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set(crypto.HeaderAddress, api.operator.Address().Hex())
	forged := httptest.NewRecorder()
	api.srv.Handler().ServeHTTP(forged, req)
	assert.Equal(t, http.StatusUnauthorized, forged.Code)

	assert.Empty(t, api.ledger.MarketIDs())
}

func TestSignedRequestIsAcceptedOnce(t *testing.T) {
	api := newTestAPI(t, nil)
	id := api.deploy()
	path := "/api/markets/" + strconv.FormatUint(id, 10) + "/buy"

	data, err := json.Marshal(map[string]any{"outcome_id": 0, "min_shares": "1", "value": "1000000000"})
	require.NoError(t, err)
	headers, err := api.alice.RequestHeadersAt(http.MethodPost, path, data, time.Now().Unix())
	require.NoError(t, err)
	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		api.srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, send().Code)
	spent := api.ledger.Balance(api.alice.Address()).Clone()

	for range 2 {
		rec := send()
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "request already used", decode(t, rec)["error"])
	}
	assert.Equal(t, spent, api.ledger.Balance(api.alice.Address()), "replayed buy moved funds")
}

func TestDeployAccessDeniedMapsTo403(t *testing.T) {
	api := newTestAPI(t, nil)
	rec := api.post(api.alice, "/api/markets", map[string]any{
		"kind":          "binary",
		"question":      "Q?",
		"outcome_names": []string{"Yes", "No"},
		"end_time":      genesisTime + 7200,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, domain.ErrAccessDenied.Code, body["code"])
	assert.Equal(t, "AccessDenied", body["name"])
}

func TestBuyFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t, nil)
	id := api.deploy()
	base := "/api/markets/" + strconv.FormatUint(id, 10)

	rec := api.get(base + "/quote/buy?outcome=0&shares=1000000000")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode(t, rec)["cost_cspr"])

	rec = api.post(api.alice, base+"/buy", map[string]any{
		"outcome_id": 0,
		"min_shares": "1",
		"value":      "1000000000",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var events struct {
		Events []domain.EventRecord `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.NotEmpty(t, events.Events)

	rec = api.get(base + "/positions/" + api.alice.Address().Hex())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["participated"])

	rec = api.get("/api/events?since=0&limit=1000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotZero(t, decode(t, rec)["next_seq"])
}

func TestErrorStatusMapping(t *testing.T) {
	api := newTestAPI(t, nil)
	id := api.deploy()
	base := "/api/markets/" + strconv.FormatUint(id, 10)

	// Unknown market.
	assert.Equal(t, http.StatusNotFound, api.get("/api/markets/99").Code)

	// Bad outcome is a trading error.
	rec := api.post(api.alice, base+"/buy", map[string]any{"outcome_id": 7, "min_shares": "0", "value": "1000000000"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Resolving an active market is a state error.
	rec = api.post(api.operator, base+"/resolve", map[string]any{"winning_outcome": 0})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Non-admin pause is an access error.
	rec = api.post(api.alice, "/api/vault/pause", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Malformed bodies never reach the ledger.
	rec = api.post(api.alice, base+"/buy", map[string]any{"outcome_id": 0, "value": "lots"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.post(api.alice, base+"/buy", map[string]any{"bogus": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	limiter := &stubLimiter{allow: false}
	api := newTestAPI(t, limiter)
	rec := api.get("/api/health")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Len(t, limiter.keys, 1)
	assert.Contains(t, limiter.keys[0], "api:")

	limiter.err = errors.New("redis down")
	rec = api.get("/api/health")
	assert.Equal(t, http.StatusOK, rec.Code, "limiter failures must fail open")
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/markets", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	api.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), crypto.HeaderSignature)
}

type stubArchive struct {
	days []string
	recs map[string][]domain.EventRecord
}

func (s stubArchive) ArchivedDays(context.Context) ([]string, error) { return s.days, nil }

func (s stubArchive) ReadDay(_ context.Context, d time.Time) ([]domain.EventRecord, error) {
	recs, ok := s.recs[d.Format(time.DateOnly)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return recs, nil
}

func TestArchiveRoutes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	archive := handler.NewArchiveHandler(stubArchive{
		days: []string{"2026-03-01"},
		recs: map[string][]domain.EventRecord{"2026-03-01": {{Seq: 1, Name: "MarketCreated"}}},
	}, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/archive/events", archive.ListDays)
	mux.HandleFunc("GET /api/archive/events/{day}", archive.GetDay)

	serve := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := serve("/api/archive/events")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"2026-03-01"}, decode(t, rec)["days"])

	rec = serve("/api/archive/events/2026-03-01")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["events"], 1)

	assert.Equal(t, http.StatusNotFound, serve("/api/archive/events/2026-03-02").Code)
	assert.Equal(t, http.StatusBadRequest, serve("/api/archive/events/yesterday").Code)
}
