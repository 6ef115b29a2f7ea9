// Package market implements a single prediction market: outcome ledgers
// priced by a bonding curve, participant positions, and the lifecycle
// Active -> Closed -> Resolved with a side exit to Cancelled.
//
// A Market is a host.Contract. Every mutating operation takes the call's
// host.Frame and returns a *domain.Error on failure; the host rolls back
// whatever the operation wrote before failing.
package market

import (
	"strings"

	"github.com/holiman/uint256"

	"github.com/alanyoungcy/curvemarket/internal/curve"
	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/host"
	"github.com/alanyoungcy/curvemarket/internal/safe"
)

// InitArgs are the one-time parameters of a market.
type InitArgs struct {
	MarketID         uint64
	Kind             domain.MarketKind
	Question         string
	OutcomeNames     []string
	Creator          domain.Address
	EndTime          uint64
	ResolutionSource string
	Category         string
	Admin            domain.Address
	Resolver         domain.Address
	PlatformFeeBPS   uint64
	Vault            domain.Address
	Factory          domain.Address
	Curve            curve.Params
}

// Outcome is the ledger of one outcome.
type Outcome struct {
	Shares    *uint256.Int `json:"shares"`
	Liquidity *uint256.Int `json:"liquidity"`
}

type positionKey struct {
	user    domain.Address
	outcome uint64
}

// state is everything the host snapshots and restores.
type state struct {
	initialized    bool
	metadata       domain.MarketMetadata
	config         domain.MarketConfig
	curve          curve.Params
	status         domain.MarketStatus
	outcomes       []Outcome
	totalLiquidity *uint256.Int
	winner         uint64
	positions      map[positionKey]domain.Position
	participated   map[domain.Address]bool
	claimed        map[domain.Address]bool
}

func newState() *state {
	return &state{
		status:         domain.MarketStatusActive,
		totalLiquidity: safe.Zero(),
		positions:      make(map[positionKey]domain.Position),
		participated:   make(map[domain.Address]bool),
		claimed:        make(map[domain.Address]bool),
	}
}

func (s *state) clone() *state {
	c := &state{
		initialized:    s.initialized,
		metadata:       s.metadata,
		config:         s.config,
		curve:          s.curve.Clone(),
		status:         s.status,
		outcomes:       make([]Outcome, len(s.outcomes)),
		totalLiquidity: safe.OrZero(s.totalLiquidity),
		winner:         s.winner,
		positions:      make(map[positionKey]domain.Position, len(s.positions)),
		participated:   make(map[domain.Address]bool, len(s.participated)),
		claimed:        make(map[domain.Address]bool, len(s.claimed)),
	}
	c.metadata.OutcomeNames = append([]string(nil), s.metadata.OutcomeNames...)
	for i, o := range s.outcomes {
		c.outcomes[i] = Outcome{Shares: safe.OrZero(o.Shares), Liquidity: safe.OrZero(o.Liquidity)}
	}
	for k, p := range s.positions {
		c.positions[k] = p.Clone()
	}
	for k, v := range s.participated {
		c.participated[k] = v
	}
	for k, v := range s.claimed {
		c.claimed[k] = v
	}
	return c
}

// Market is one prediction market contract.
type Market struct {
	st    *state
	guard host.Guard
}

// New returns an uninitialized market.
func New() *Market {
	return &Market{st: newState()}
}

// Snapshot implements host.Contract.
func (m *Market) Snapshot() any { return m.st.clone() }

// Restore implements host.Contract.
func (m *Market) Restore(snapshot any) { m.st = snapshot.(*state).clone() }

// Init sets up the market. It can run once.
func (m *Market) Init(f host.Frame, args InitArgs) error {
	if m.st.initialized {
		return domain.ErrAlreadyInitialized
	}

	count := uint64(len(args.OutcomeNames))
	if !args.Kind.AllowsOutcomeCount(count) {
		return domain.ErrInvalidOutcomeCount
	}
	if strings.TrimSpace(args.Question) == "" {
		return domain.ErrInvalidQuestion
	}
	for _, name := range args.OutcomeNames {
		if strings.TrimSpace(name) == "" {
			return domain.ErrInvalidInitParams
		}
	}
	if args.PlatformFeeBPS > domain.MaxFeeBPS {
		return domain.ErrFeeTooHigh
	}

	st := newState()
	st.metadata = domain.MarketMetadata{
		ID:               args.MarketID,
		Kind:             args.Kind,
		Question:         args.Question,
		OutcomeNames:     append([]string(nil), args.OutcomeNames...),
		OutcomeCount:     count,
		Creator:          args.Creator,
		CreatedAt:        f.BlockTime(),
		EndTime:          args.EndTime,
		ResolutionSource: args.ResolutionSource,
		Category:         args.Category,
	}
	st.config = domain.MarketConfig{
		Admin:          args.Admin,
		Resolver:       args.Resolver,
		PlatformFeeBPS: args.PlatformFeeBPS,
		Vault:          args.Vault,
		Factory:        args.Factory,
	}
	st.curve = args.Curve.Clone()
	st.outcomes = make([]Outcome, count)
	for i := range st.outcomes {
		st.outcomes[i] = Outcome{Shares: safe.Zero(), Liquidity: safe.Zero()}
	}
	st.status = domain.MarketStatusActive
	st.initialized = true
	m.st = st
	return nil
}

func (m *Market) requireInitialized() error {
	if !m.st.initialized {
		return domain.ErrNotInitialized
	}
	return nil
}

func (m *Market) requireActive() error {
	if m.st.status != domain.MarketStatusActive {
		return domain.ErrMarketNotActive
	}
	return nil
}

func (m *Market) requireNotEnded(now uint64) error {
	if m.ended(now) {
		return domain.ErrMarketAlreadyEnded
	}
	return nil
}

func (m *Market) requireAdmin(caller domain.Address) error {
	if caller != m.st.config.Admin {
		return domain.ErrNotAdmin
	}
	return nil
}

func (m *Market) ended(now uint64) bool {
	return now >= m.st.metadata.EndTime
}

func (m *Market) validOutcome(id uint64) bool {
	return id < m.st.metadata.OutcomeCount
}

func (m *Market) position(user domain.Address, outcome uint64) domain.Position {
	if p, ok := m.st.positions[positionKey{user, outcome}]; ok {
		return p.Clone()
	}
	return domain.NewPosition(outcome)
}

func (m *Market) setPosition(user domain.Address, p domain.Position) {
	m.st.positions[positionKey{user, p.OutcomeID}] = p
}

func (m *Market) fee(amount *uint256.Int) *uint256.Int {
	return safe.Bps(amount, m.st.config.PlatformFeeBPS)
}
