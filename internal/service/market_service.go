package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/holiman/uint256"

	"github.com/alanyoungcy/curvemarket/internal/curve"
	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/host"
	"github.com/alanyoungcy/curvemarket/internal/market"
	"github.com/alanyoungcy/curvemarket/internal/safe"
)

// Policy holds the limits applied when the operator deploys a market.
type Policy struct {
	Operator      domain.Address
	DefaultFeeBPS uint64
	MaxFeeBPS     uint64
	MinDuration   time.Duration
	MaxDuration   time.Duration
	Curve         curve.Params
}

// DeployRequest describes a market to deploy. A zero Resolver defaults to
// the operator; a nil PlatformFeeBPS to the policy default.
type DeployRequest struct {
	Kind             domain.MarketKind
	Question         string
	OutcomeNames     []string
	EndTime          uint64
	ResolutionSource string
	Category         string
	Resolver         domain.Address
	PlatformFeeBPS   *uint64
}

// MarketView is the full read model of one market.
type MarketView struct {
	Info           domain.MarketInfo     `json:"info"`
	Metadata       domain.MarketMetadata `json:"metadata"`
	Config         domain.MarketConfig   `json:"config"`
	Curve          curve.Params          `json:"curve"`
	Ended          bool                  `json:"ended"`
	WinningOutcome *uint64               `json:"winning_outcome,omitempty"`
}

// OutcomeView is one outcome's ledger and quote.
type OutcomeView struct {
	ID        uint64       `json:"id"`
	Name      string       `json:"name"`
	Shares    *uint256.Int `json:"shares"`
	Liquidity *uint256.Int `json:"liquidity"`
	Price     *uint256.Int `json:"price"`
	OddsBPS   uint64       `json:"odds_bps"`
}

// PositionsView is everything a participant holds in one market.
type PositionsView struct {
	User         domain.Address    `json:"user"`
	Positions    []domain.Position `json:"positions"`
	Participated bool              `json:"participated"`
	Claimed      bool              `json:"claimed"`
}

// BuyQuote prices a purchase. When quoted by value, Shares is how many the
// value buys and Cost what they cost.
type BuyQuote struct {
	OutcomeID uint64       `json:"outcome_id"`
	Shares    *uint256.Int `json:"shares"`
	Cost      *uint256.Int `json:"cost"`
}

// SellQuote prices a sale net of the platform fee.
type SellQuote struct {
	OutcomeID uint64       `json:"outcome_id"`
	Shares    *uint256.Int `json:"shares"`
	Revenue   *uint256.Int `json:"revenue"`
}

// MarketService deploys markets and exposes their trading operations and
// views by market id.
type MarketService struct {
	ledger *Ledger
	policy Policy
	quotes domain.QuoteCache
	logger *slog.Logger
}

// NewMarketService creates a MarketService.
func NewMarketService(ledger *Ledger, policy Policy, logger *slog.Logger) *MarketService {
	return &MarketService{
		ledger: ledger,
		policy: policy,
		logger: logger.With(slog.String("component", "market_service")),
	}
}

// WithQuoteCache makes Quotes read through the cache.
func (s *MarketService) WithQuoteCache(q domain.QuoteCache) *MarketService {
	s.quotes = q
	return s
}

// Policy returns the deployment policy.
func (s *MarketService) Policy() Policy { return s.policy }

// Deploy creates and initializes a market. Only the operator may deploy.
func (s *MarketService) Deploy(ctx context.Context, caller domain.Address, req DeployRequest) (MarketView, error) {
	if caller != s.policy.Operator {
		return MarketView{}, domain.ErrAccessDenied
	}
	fee := s.policy.DefaultFeeBPS
	if req.PlatformFeeBPS != nil {
		fee = *req.PlatformFeeBPS
	}
	if fee > s.policy.MaxFeeBPS || fee > domain.MaxFeeBPS {
		return MarketView{}, domain.ErrFeeTooHigh
	}
	if err := s.checkDuration(req.EndTime); err != nil {
		return MarketView{}, err
	}
	// A curve with no floor and no slope hands out shares for nothing.
	if safe.OrZero(s.policy.Curve.InitialPrice).IsZero() && safe.OrZero(s.policy.Curve.K).IsZero() {
		return MarketView{}, domain.ErrInvalidInitParams
	}

	resolver := req.Resolver
	if resolver == domain.ZeroAddress {
		resolver = s.policy.Operator
	}
	id, err := s.ledger.DeployMarket(ctx, caller, market.InitArgs{
		Kind:             req.Kind,
		Question:         req.Question,
		OutcomeNames:     req.OutcomeNames,
		Creator:          caller,
		EndTime:          req.EndTime,
		ResolutionSource: req.ResolutionSource,
		Category:         req.Category,
		Admin:            s.policy.Operator,
		Resolver:         resolver,
		PlatformFeeBPS:   fee,
		Vault:            domain.VaultAddress(),
		Factory:          s.policy.Operator,
		Curve:            s.policy.Curve,
	})
	if err != nil {
		return MarketView{}, err
	}

	s.logger.InfoContext(ctx, "market_service: deployed market",
		slog.Uint64("market_id", id),
		slog.String("kind", string(req.Kind)),
		slog.Int("outcomes", len(req.OutcomeNames)),
	)
	return s.Get(id)
}

func (s *MarketService) checkDuration(endTime uint64) error {
	now := s.ledger.BlockTime()
	if endTime <= now {
		return domain.ErrInvalidMarketDuration
	}
	d := time.Duration(endTime-now) * time.Second
	if d < s.policy.MinDuration || (s.policy.MaxDuration > 0 && d > s.policy.MaxDuration) {
		return domain.ErrInvalidMarketDuration
	}
	return nil
}

// Buy spends value on shares of outcome.
func (s *MarketService) Buy(ctx context.Context, caller domain.Address, id, outcome uint64, minShares, value *uint256.Int) ([]domain.EventRecord, error) {
	return s.ledger.CallMarket(ctx, "market.buy", caller, id, value, func(m *market.Market, f host.Frame) error {
		return m.BuyShares(f, outcome, minShares)
	})
}

// Sell returns shares of outcome to the curve.
func (s *MarketService) Sell(ctx context.Context, caller domain.Address, id, outcome uint64, shares, minReceive *uint256.Int) ([]domain.EventRecord, error) {
	return s.ledger.CallMarket(ctx, "market.sell", caller, id, nil, func(m *market.Market, f host.Frame) error {
		return m.SellShares(f, outcome, shares, minReceive)
	})
}

// Resolve records the winning outcome.
func (s *MarketService) Resolve(ctx context.Context, caller domain.Address, id, winner uint64, proof string) ([]domain.EventRecord, error) {
	return s.ledger.CallMarket(ctx, "market.resolve", caller, id, nil, func(m *market.Market, f host.Frame) error {
		return m.ResolveMarket(f, winner, proof)
	})
}

// ClaimWinnings pays out the caller's share of a resolved market.
func (s *MarketService) ClaimWinnings(ctx context.Context, caller domain.Address, id uint64) ([]domain.EventRecord, error) {
	return s.ledger.CallMarket(ctx, "market.claim", caller, id, nil, func(m *market.Market, f host.Frame) error {
		return m.ClaimWinnings(f)
	})
}

// ClaimRefund returns the caller's cost basis from a cancelled market.
func (s *MarketService) ClaimRefund(ctx context.Context, caller domain.Address, id uint64) ([]domain.EventRecord, error) {
	return s.ledger.CallMarket(ctx, "market.refund", caller, id, nil, func(m *market.Market, f host.Frame) error {
		return m.ClaimRefund(f)
	})
}

// Close stops trading.
func (s *MarketService) Close(ctx context.Context, caller domain.Address, id uint64) ([]domain.EventRecord, error) {
	return s.ledger.CallMarket(ctx, "market.close", caller, id, nil, func(m *market.Market, f host.Frame) error {
		return m.CloseMarket(f)
	})
}

// Cancel voids the market so participants can claim refunds.
func (s *MarketService) Cancel(ctx context.Context, caller domain.Address, id uint64, reason string) ([]domain.EventRecord, error) {
	return s.ledger.CallMarket(ctx, "market.cancel", caller, id, nil, func(m *market.Market, f host.Frame) error {
		return m.CancelMarket(f, reason)
	})
}

// UpdateResolver replaces the market's resolver.
func (s *MarketService) UpdateResolver(ctx context.Context, caller domain.Address, id uint64, resolver domain.Address) ([]domain.EventRecord, error) {
	return s.ledger.CallMarket(ctx, "market.update_resolver", caller, id, nil, func(m *market.Market, f host.Frame) error {
		return m.UpdateResolver(f, resolver)
	})
}

// List summarizes every market in id order.
func (s *MarketService) List() []domain.MarketInfo {
	ids := s.ledger.MarketIDs()
	out := make([]domain.MarketInfo, 0, len(ids))
	for _, id := range ids {
		_ = s.ledger.ViewMarket(id, func(m *market.Market, _ uint64) {
			out = append(out, m.Info())
		})
	}
	return out
}

// Get returns the full read model of market id.
func (s *MarketService) Get(id uint64) (MarketView, error) {
	var v MarketView
	err := s.ledger.ViewMarket(id, func(m *market.Market, now uint64) {
		v = MarketView{
			Info:     m.Info(),
			Metadata: m.Metadata(),
			Config:   m.Config(),
			Curve:    m.Curve(),
			Ended:    m.IsEnded(now),
		}
		if w, ok := m.WinningOutcome(); ok {
			v.WinningOutcome = &w
		}
	})
	return v, err
}

// Outcomes returns every outcome's ledger and live quote.
func (s *MarketService) Outcomes(id uint64) ([]OutcomeView, error) {
	var out []OutcomeView
	err := s.ledger.ViewMarket(id, func(m *market.Market, _ uint64) {
		for _, o := range m.Odds() {
			name, _ := m.OutcomeName(o.OutcomeID)
			out = append(out, OutcomeView{
				ID:        o.OutcomeID,
				Name:      name,
				Shares:    m.OutcomeShares(o.OutcomeID),
				Liquidity: m.OutcomeLiquidity(o.OutcomeID),
				Price:     m.CurrentPrice(o.OutcomeID),
				OddsBPS:   o.BPS,
			})
		}
	})
	return out, err
}

// Quotes returns the price and odds of every outcome, from the cache when
// one is configured.
func (s *MarketService) Quotes(ctx context.Context, id uint64) ([]domain.Quote, error) {
	if s.quotes != nil {
		if cached, err := s.quotes.GetQuotes(ctx, id); err == nil {
			return cached, nil
		}
	}

	var quotes []domain.Quote
	if err := s.ledger.ViewMarket(id, func(m *market.Market, _ uint64) {
		quotes = buildQuotes(id, m)
	}); err != nil {
		return nil, err
	}

	if s.quotes != nil {
		if err := s.quotes.SetQuotes(ctx, id, quotes); err != nil {
			s.logger.WarnContext(ctx, "market_service: quote cache set failed",
				slog.Uint64("market_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return quotes, nil
}

// QuoteBuy prices buying shares of outcome.
func (s *MarketService) QuoteBuy(id, outcome uint64, shares *uint256.Int) (BuyQuote, error) {
	q := BuyQuote{OutcomeID: outcome, Shares: safe.OrZero(shares)}
	err := s.viewOutcome(id, outcome, func(m *market.Market) {
		q.Cost = m.BuyCost(outcome, shares)
	})
	return q, err
}

// QuoteBuyValue is how many shares of outcome value buys.
func (s *MarketService) QuoteBuyValue(id, outcome uint64, value *uint256.Int) (BuyQuote, error) {
	q := BuyQuote{OutcomeID: outcome}
	err := s.viewOutcome(id, outcome, func(m *market.Market) {
		q.Shares, q.Cost = m.SharesForValue(outcome, value)
	})
	return q, err
}

// QuoteSell prices selling shares of outcome, net of fee.
func (s *MarketService) QuoteSell(id, outcome uint64, shares *uint256.Int) (SellQuote, error) {
	q := SellQuote{OutcomeID: outcome, Shares: safe.OrZero(shares)}
	err := s.viewOutcome(id, outcome, func(m *market.Market) {
		q.Revenue = m.SellRevenue(outcome, shares)
	})
	return q, err
}

func (s *MarketService) viewOutcome(id, outcome uint64, fn func(m *market.Market)) error {
	var valid bool
	err := s.ledger.ViewMarket(id, func(m *market.Market, _ uint64) {
		if outcome >= m.OutcomeCount() {
			return
		}
		valid = true
		fn(m)
	})
	if err != nil {
		return err
	}
	if !valid {
		return domain.ErrInvalidOutcome
	}
	return nil
}

// Positions returns user's holdings in market id.
func (s *MarketService) Positions(id uint64, user domain.Address) (PositionsView, error) {
	v := PositionsView{User: user}
	err := s.ledger.ViewMarket(id, func(m *market.Market, _ uint64) {
		v.Positions = m.Positions(user)
		v.Participated = m.HasParticipated(user)
		v.Claimed = m.HasClaimed(user)
	})
	if v.Positions == nil {
		v.Positions = []domain.Position{}
	}
	return v, err
}

// Expired lists Active markets whose end time has passed.
func (s *MarketService) Expired() []uint64 {
	var ids []uint64
	for _, id := range s.ledger.MarketIDs() {
		_ = s.ledger.ViewMarket(id, func(m *market.Market, now uint64) {
			if m.Status() == domain.MarketStatusActive && m.IsEnded(now) {
				ids = append(ids, id)
			}
		})
	}
	return ids
}

// String renders the policy for logs.
func (p Policy) String() string {
	return fmt.Sprintf("fee=%d/%d duration=%s..%s", p.DefaultFeeBPS, p.MaxFeeBPS, p.MinDuration, p.MaxDuration)
}
