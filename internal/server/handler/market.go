package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/holiman/uint256"

	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/service"
)

// MarketService defines the methods that the market handler requires from the
// service layer.
type MarketService interface {
	Deploy(ctx context.Context, caller domain.Address, req service.DeployRequest) (service.MarketView, error)
	Buy(ctx context.Context, caller domain.Address, id, outcome uint64, minShares, value *uint256.Int) ([]domain.EventRecord, error)
	Sell(ctx context.Context, caller domain.Address, id, outcome uint64, shares, minReceive *uint256.Int) ([]domain.EventRecord, error)
	Resolve(ctx context.Context, caller domain.Address, id, winner uint64, proof string) ([]domain.EventRecord, error)
	ClaimWinnings(ctx context.Context, caller domain.Address, id uint64) ([]domain.EventRecord, error)
	ClaimRefund(ctx context.Context, caller domain.Address, id uint64) ([]domain.EventRecord, error)
	Close(ctx context.Context, caller domain.Address, id uint64) ([]domain.EventRecord, error)
	Cancel(ctx context.Context, caller domain.Address, id uint64, reason string) ([]domain.EventRecord, error)
	UpdateResolver(ctx context.Context, caller domain.Address, id uint64, resolver domain.Address) ([]domain.EventRecord, error)

	List() []domain.MarketInfo
	Get(id uint64) (service.MarketView, error)
	Outcomes(id uint64) ([]service.OutcomeView, error)
	Quotes(ctx context.Context, id uint64) ([]domain.Quote, error)
	QuoteBuy(id, outcome uint64, shares *uint256.Int) (service.BuyQuote, error)
	QuoteBuyValue(id, outcome uint64, value *uint256.Int) (service.BuyQuote, error)
	QuoteSell(id, outcome uint64, shares *uint256.Int) (service.SellQuote, error)
	Positions(id uint64, user domain.Address) (service.PositionsView, error)
}

// MarketHandler serves market endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger,
	}
}

type marketSummary struct {
	domain.MarketInfo
	TotalLiquidityCSPR string `json:"total_liquidity_cspr"`
}

func summarize(info domain.MarketInfo) marketSummary {
	return marketSummary{MarketInfo: info, TotalLiquidityCSPR: domain.FormatCSPR(info.TotalLiquidity)}
}

type listMarketsResponse struct {
	Markets []marketSummary `json:"markets"`
	Total   int             `json:"total"`
}

type marketResponse struct {
	service.MarketView
	TotalLiquidityCSPR string `json:"total_liquidity_cspr"`
}

type outcomeResponse struct {
	service.OutcomeView
	PriceCSPR     string `json:"price_cspr"`
	LiquidityCSPR string `json:"liquidity_cspr"`
}

type buyQuoteResponse struct {
	service.BuyQuote
	CostCSPR string `json:"cost_cspr"`
}

type sellQuoteResponse struct {
	service.SellQuote
	RevenueCSPR string `json:"revenue_cspr"`
}

type deployRequest struct {
	Kind             string   `json:"kind"`
	Question         string   `json:"question"`
	OutcomeNames     []string `json:"outcome_names"`
	EndTime          uint64   `json:"end_time"`
	ResolutionSource string   `json:"resolution_source"`
	Category         string   `json:"category"`
	Resolver         string   `json:"resolver"`
	PlatformFeeBPS   *uint64  `json:"platform_fee_bps"`
}

type buyRequest struct {
	OutcomeID uint64 `json:"outcome_id"`
	MinShares string `json:"min_shares"`
	Value     string `json:"value"`
}

type sellRequest struct {
	OutcomeID  uint64 `json:"outcome_id"`
	Shares     string `json:"shares"`
	MinReceive string `json:"min_receive"`
}

type resolveRequest struct {
	WinningOutcome uint64 `json:"winning_outcome"`
	Proof          string `json:"proof"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type resolverRequest struct {
	Resolver string `json:"resolver"`
}

// ListMarkets returns every market in id order.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	infos := h.markets.List()
	out := make([]marketSummary, 0, len(infos))
	for _, info := range infos {
		out = append(out, summarize(info))
	}
	writeJSON(w, http.StatusOK, listMarketsResponse{Markets: out, Total: len(out)})
}

// GetMarket returns one market's info, metadata, config and status.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.markets.Get(id)
	if err != nil {
		writeCallError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, marketResponse{MarketView: v, TotalLiquidityCSPR: domain.FormatCSPR(v.Info.TotalLiquidity)})
}

// GetOutcomes returns each outcome's ledger, price and odds.
// GET /api/markets/{id}/outcomes
func (h *MarketHandler) GetOutcomes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	outcomes, err := h.markets.Outcomes(id)
	if err != nil {
		writeCallError(w, r, h.logger, err)
		return
	}
	out := make([]outcomeResponse, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, outcomeResponse{
			OutcomeView:   o,
			PriceCSPR:     domain.FormatCSPR(o.Price),
			LiquidityCSPR: domain.FormatCSPR(o.Liquidity),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcomes": out})
}

// GetQuotes returns cached prices and odds.
// GET /api/markets/{id}/quotes
func (h *MarketHandler) GetQuotes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	quotes, err := h.markets.Quotes(r.Context(), id)
	if err != nil {
		writeCallError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quotes": quotes})
}

// QuoteBuy prices a purchase by share count, or by value when value is set.
// GET /api/markets/{id}/quote/buy?outcome=0&shares=10
// GET /api/markets/{id}/quote/buy?outcome=0&value=1000000000
func (h *MarketHandler) QuoteBuy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	outcome, err := parseUint(q.Get("outcome"), "outcome")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var quote service.BuyQuote
	if v := q.Get("value"); v != "" {
		value, err := parseAmount(v, "value")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		quote, err = h.markets.QuoteBuyValue(id, outcome, value)
		if err != nil {
			writeCallError(w, r, h.logger, err)
			return
		}
	} else {
		shares, err := parseAmount(q.Get("shares"), "shares")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		quote, err = h.markets.QuoteBuy(id, outcome, shares)
		if err != nil {
			writeCallError(w, r, h.logger, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, buyQuoteResponse{BuyQuote: quote, CostCSPR: domain.FormatCSPR(quote.Cost)})
}

// QuoteSell prices a sale net of fee.
// GET /api/markets/{id}/quote/sell?outcome=0&shares=10
func (h *MarketHandler) QuoteSell(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	outcome, err := parseUint(q.Get("outcome"), "outcome")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	shares, err := parseAmount(q.Get("shares"), "shares")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	quote, err := h.markets.QuoteSell(id, outcome, shares)
	if err != nil {
		writeCallError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sellQuoteResponse{SellQuote: quote, RevenueCSPR: domain.FormatCSPR(quote.Revenue)})
}

// GetPositions returns a participant's holdings.
// GET /api/markets/{id}/positions/{address}
func (h *MarketHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := parseAddress(r.PathValue("address"), "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v, err := h.markets.Positions(id, user)
	if err != nil {
		writeCallError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Deploy creates a market. Operator only.
// POST /api/markets
func (h *MarketHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	var req deployRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind, err := domain.ParseMarketKind(strings.TrimSpace(req.Kind))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var resolver domain.Address
	if req.Resolver != "" {
		if resolver, err = parseAddress(req.Resolver, "resolver"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	v, err := h.markets.Deploy(r.Context(), caller, service.DeployRequest{
		Kind:             kind,
		Question:         req.Question,
		OutcomeNames:     req.OutcomeNames,
		EndTime:          req.EndTime,
		ResolutionSource: req.ResolutionSource,
		Category:         req.Category,
		Resolver:         resolver,
		PlatformFeeBPS:   req.PlatformFeeBPS,
	})
	if err != nil {
		writeCallError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, marketResponse{MarketView: v, TotalLiquidityCSPR: domain.FormatCSPR(v.Info.TotalLiquidity)})
}

// Buy spends value on shares.
// POST /api/markets/{id}/buy
func (h *MarketHandler) Buy(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.mutation(w, r)
	if !ok {
		return
	}
	var req buyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	minShares, err := parseAmount(req.MinShares, "min_shares")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	value, err := parseAmount(req.Value, "value")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := h.markets.Buy(r.Context(), caller, id, req.OutcomeID, minShares, value)
	h.respond(w, r, recs, err)
}

// Sell returns shares to the curve.
// POST /api/markets/{id}/sell
func (h *MarketHandler) Sell(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.mutation(w, r)
	if !ok {
		return
	}
	var req sellRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	shares, err := parseAmount(req.Shares, "shares")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	minReceive, err := parseAmount(req.MinReceive, "min_receive")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := h.markets.Sell(r.Context(), caller, id, req.OutcomeID, shares, minReceive)
	h.respond(w, r, recs, err)
}

// Resolve records the winning outcome.
// POST /api/markets/{id}/resolve
func (h *MarketHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.mutation(w, r)
	if !ok {
		return
	}
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := h.markets.Resolve(r.Context(), caller, id, req.WinningOutcome, req.Proof)
	h.respond(w, r, recs, err)
}

// ClaimWinnings pays out a resolved position.
// POST /api/markets/{id}/claim
func (h *MarketHandler) ClaimWinnings(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.mutation(w, r)
	if !ok {
		return
	}
	recs, err := h.markets.ClaimWinnings(r.Context(), caller, id)
	h.respond(w, r, recs, err)
}

// ClaimRefund returns the cost basis of a cancelled market.
// POST /api/markets/{id}/refund
func (h *MarketHandler) ClaimRefund(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.mutation(w, r)
	if !ok {
		return
	}
	recs, err := h.markets.ClaimRefund(r.Context(), caller, id)
	h.respond(w, r, recs, err)
}

// Close stops trading.
// POST /api/markets/{id}/close
func (h *MarketHandler) Close(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.mutation(w, r)
	if !ok {
		return
	}
	recs, err := h.markets.Close(r.Context(), caller, id)
	h.respond(w, r, recs, err)
}

// Cancel voids the market.
// POST /api/markets/{id}/cancel
func (h *MarketHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.mutation(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := h.markets.Cancel(r.Context(), caller, id, req.Reason)
	h.respond(w, r, recs, err)
}

// UpdateResolver replaces the resolver.
// POST /api/markets/{id}/resolver
func (h *MarketHandler) UpdateResolver(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.mutation(w, r)
	if !ok {
		return
	}
	var req resolverRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resolver, err := parseAddress(req.Resolver, "resolver")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := h.markets.UpdateResolver(r.Context(), caller, id, resolver)
	h.respond(w, r, recs, err)
}

func (h *MarketHandler) mutation(w http.ResponseWriter, r *http.Request) (domain.Address, uint64, bool) {
	caller, ok := callerOf(w, r)
	if !ok {
		return domain.Address{}, 0, false
	}
	id, ok := pathID(w, r)
	return caller, id, ok
}

func (h *MarketHandler) respond(w http.ResponseWriter, r *http.Request, recs []domain.EventRecord, err error) {
	if err != nil {
		writeCallError(w, r, h.logger, err)
		return
	}
	writeEvents(w, http.StatusOK, recs)
}
