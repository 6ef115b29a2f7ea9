package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/host"
	"github.com/alanyoungcy/curvemarket/internal/market"
	"github.com/alanyoungcy/curvemarket/internal/vault"
)

// ErrPersist marks a call that committed in memory but whose state could
// not be written to the state store. The next successful call rewrites the
// full snapshot.
var ErrPersist = errors.New("ledger: state not persisted")

const (
	// EventStream is the durable stream every ledger event is appended to.
	EventStream = "stream:events"

	defaultLockTTL = 10 * time.Second
)

// EventChannel is the pub/sub channel carrying events of one contract.
func EventChannel(contract domain.Address) string {
	return "events." + contract.Hex()
}

// EventNotifier forwards ledger events to operators.
type EventNotifier interface {
	NotifyEvent(ctx context.Context, ev domain.Event) error
}

// Ledger owns the simulated platform together with the vault and every
// deployed market. Each mutating call runs inside the platform's atomic
// envelope and, once committed, is persisted, published, cached, notified
// and audited.
type Ledger struct {
	env *host.Env

	mu        sync.RWMutex
	markets   map[uint64]*market.Market
	vault     *vault.Vault
	deployMu  sync.Mutex
	listeners []func(domain.EventRecord)

	states domain.StateStore
	events domain.EventStore
	audit  domain.AuditStore

	quotes   domain.QuoteCache
	bus      domain.SignalBus
	locks    domain.LockManager
	notifier EventNotifier
	lockTTL  time.Duration

	logger *slog.Logger
}

// NewLedger creates a Ledger with an uninitialized vault registered on env.
func NewLedger(
	env *host.Env,
	states domain.StateStore,
	events domain.EventStore,
	audit domain.AuditStore,
	logger *slog.Logger,
) *Ledger {
	l := &Ledger{
		env:     env,
		markets: make(map[uint64]*market.Market),
		vault:   vault.New(),
		states:  states,
		events:  events,
		audit:   audit,
		lockTTL: defaultLockTTL,
		logger:  logger.With(slog.String("component", "ledger")),
	}
	env.Register(domain.VaultAddress(), l.vault)
	return l
}

// WithQuoteCache enables quote refreshes after market calls.
func (l *Ledger) WithQuoteCache(q domain.QuoteCache) *Ledger {
	l.quotes = q
	return l
}

// WithSignalBus enables event publishing.
func (l *Ledger) WithSignalBus(bus domain.SignalBus) *Ledger {
	l.bus = bus
	return l
}

// WithLockManager serializes calls per contract across processes.
func (l *Ledger) WithLockManager(locks domain.LockManager, ttl time.Duration) *Ledger {
	l.locks = locks
	if ttl > 0 {
		l.lockTTL = ttl
	}
	return l
}

// WithNotifier enables operator notifications.
func (l *Ledger) WithNotifier(n EventNotifier) *Ledger {
	l.notifier = n
	return l
}

// OnEvent registers fn to receive every committed event in this process.
func (l *Ledger) OnEvent(fn func(domain.EventRecord)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// BlockTime is the platform's current block time.
func (l *Ledger) BlockTime() uint64 { return l.env.BlockTime() }

// Balance is the native balance of addr.
func (l *Ledger) Balance(addr domain.Address) *uint256.Int { return l.env.Balance(addr) }

// MarketIDs lists every deployed market in ascending order.
func (l *Ledger) MarketIDs() []uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]uint64, 0, len(l.markets))
	for id := range l.markets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (l *Ledger) market(id uint64) (*market.Market, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.markets[id]
	if !ok {
		return nil, fmt.Errorf("ledger: market %d: %w", id, domain.ErrNotFound)
	}
	return m, nil
}

// ViewMarket runs fn against market id while no call is in progress.
func (l *Ledger) ViewMarket(id uint64, fn func(m *market.Market, now uint64)) error {
	m, err := l.market(id)
	if err != nil {
		return err
	}
	var found bool
	l.env.Read(func(now uint64) {
		if !m.Initialized() {
			return
		}
		found = true
		fn(m, now)
	})
	if !found {
		return fmt.Errorf("ledger: market %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ViewVault runs fn against the vault while no call is in progress.
func (l *Ledger) ViewVault(fn func(v *vault.Vault, now uint64)) {
	l.mu.RLock()
	v := l.vault
	l.mu.RUnlock()
	l.env.Read(func(now uint64) { fn(v, now) })
}

// CallMarket runs fn as caller against market id with value attached.
func (l *Ledger) CallMarket(
	ctx context.Context,
	op string,
	caller domain.Address,
	id uint64,
	value *uint256.Int,
	fn func(m *market.Market, f host.Frame) error,
) ([]domain.EventRecord, error) {
	m, err := l.market(id)
	if err != nil {
		return nil, err
	}
	return l.execute(ctx, op, caller, domain.MarketAddress(id), value, func(f host.Frame) error {
		return fn(m, f)
	})
}

// CallVault runs fn as caller against the vault with value attached.
func (l *Ledger) CallVault(
	ctx context.Context,
	op string,
	caller domain.Address,
	value *uint256.Int,
	fn func(v *vault.Vault, f host.Frame) error,
) ([]domain.EventRecord, error) {
	l.mu.RLock()
	v := l.vault
	l.mu.RUnlock()
	return l.execute(ctx, op, caller, domain.VaultAddress(), value, func(f host.Frame) error {
		return fn(v, f)
	})
}

// DeployMarket registers a new market under the next free id and
// initializes it with args. A market whose Init fails is removed again.
func (l *Ledger) DeployMarket(ctx context.Context, caller domain.Address, args market.InitArgs) (uint64, error) {
	l.deployMu.Lock()
	defer l.deployMu.Unlock()

	l.mu.Lock()
	var id uint64 = 1
	for existing := range l.markets {
		if existing >= id {
			id = existing + 1
		}
	}
	m := market.New()
	l.markets[id] = m
	l.mu.Unlock()

	addr := domain.MarketAddress(id)
	l.env.Register(addr, m)

	args.MarketID = id
	_, err := l.execute(ctx, "market.init", caller, addr, nil, func(f host.Frame) error {
		return m.Init(f, args)
	})
	if err != nil && !errors.Is(err, ErrPersist) {
		l.env.Unregister(addr)
		l.mu.Lock()
		delete(l.markets, id)
		l.mu.Unlock()
		return 0, err
	}
	return id, err
}

// BootstrapParams configures a ledger's first start.
type BootstrapParams struct {
	Operator     domain.Address
	Admin        domain.Address
	FeeRecipient domain.Address
	Genesis      map[domain.Address]*uint256.Int
}

// Bootstrap initializes the vault and credits the genesis balances, unless
// the vault was already restored from the state store.
func (l *Ledger) Bootstrap(ctx context.Context, p BootstrapParams) error {
	var initialized bool
	l.ViewVault(func(v *vault.Vault, _ uint64) { initialized = v.Initialized() })
	if initialized {
		return nil
	}

	admin, recipient := p.Admin, p.FeeRecipient
	if admin == domain.ZeroAddress {
		admin = p.Operator
	}
	if recipient == domain.ZeroAddress {
		recipient = p.Operator
	}
	for addr, amount := range p.Genesis {
		l.env.Mint(addr, amount)
	}

	_, err := l.CallVault(ctx, "vault.init", p.Operator, nil, func(v *vault.Vault, f host.Frame) error {
		return v.Init(f, admin, recipient)
	})
	if err != nil {
		return fmt.Errorf("ledger: bootstrap vault: %w", err)
	}
	l.logger.InfoContext(ctx, "ledger: bootstrapped",
		slog.String("admin", admin.Hex()),
		slog.String("fee_recipient", recipient.Hex()),
		slog.Int("genesis_accounts", len(p.Genesis)),
	)
	return nil
}

// Restore reloads every persisted contract, the balances and the event
// sequence. It must run before the ledger serves calls.
func (l *Ledger) Restore(ctx context.Context) (int, error) {
	states, err := l.states.LoadContracts(ctx)
	if err != nil {
		return 0, fmt.Errorf("ledger: load contracts: %w", err)
	}
	balances, err := l.states.LoadBalances(ctx)
	if err != nil {
		return 0, fmt.Errorf("ledger: load balances: %w", err)
	}
	seq, err := l.events.LastSeq(ctx)
	if err != nil {
		return 0, fmt.Errorf("ledger: last event seq: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, st := range states {
		switch st.Kind {
		case domain.ContractKindVault:
			v := vault.New()
			if err := json.Unmarshal(st.State, v); err != nil {
				return 0, fmt.Errorf("ledger: decode vault: %w", err)
			}
			l.vault = v
			l.env.Register(domain.VaultAddress(), v)
		case domain.ContractKindMarket:
			m := market.New()
			if err := json.Unmarshal(st.State, m); err != nil {
				return 0, fmt.Errorf("ledger: decode market %d: %w", st.MarketID, err)
			}
			l.markets[st.MarketID] = m
			l.env.Register(domain.MarketAddress(st.MarketID), m)
		default:
			return 0, fmt.Errorf("ledger: unknown contract kind %q", st.Kind)
		}
	}
	l.env.SetBalances(balances)
	l.env.SetSeq(seq)

	l.logger.InfoContext(ctx, "ledger: restored",
		slog.Int("contracts", len(states)),
		slog.Int("accounts", len(balances)),
		slog.Uint64("last_seq", seq),
	)
	return len(states), nil
}

// Events returns persisted events after seq.
func (l *Ledger) Events(ctx context.Context, afterSeq uint64, limit int) ([]domain.EventRecord, error) {
	recs, err := l.events.ListSince(ctx, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list events: %w", err)
	}
	return recs, nil
}

func (l *Ledger) execute(
	ctx context.Context,
	op string,
	caller, contract domain.Address,
	value *uint256.Int,
	fn func(host.Frame) error,
) ([]domain.EventRecord, error) {
	if l.locks != nil {
		unlock, err := l.locks.Acquire(ctx, "contract:"+contract.Hex(), l.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("ledger: %s: %w", op, err)
		}
		defer unlock()
	}

	recs, err := l.env.Call(caller, contract, value, fn)
	if err != nil {
		l.logger.DebugContext(ctx, "ledger: call rejected",
			slog.String("op", op),
			slog.String("caller", caller.Hex()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	records, err := toEventRecords(recs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPersist, op, err)
	}
	if err := l.persist(ctx, contract, records); err != nil {
		l.logger.ErrorContext(ctx, "ledger: persist failed",
			slog.String("op", op),
			slog.String("contract", contract.Hex()),
			slog.String("error", err.Error()),
		)
		return records, fmt.Errorf("%w: %s: %w", ErrPersist, op, err)
	}

	l.publish(ctx, records)
	l.refreshQuotes(ctx, contract)
	l.notify(ctx, recs)
	l.record(ctx, op, caller, contract, value, records)
	l.fanout(records)

	l.logger.InfoContext(ctx, "ledger: call committed",
		slog.String("op", op),
		slog.String("contract", contract.Hex()),
		slog.String("caller", caller.Hex()),
		slog.Int("events", len(records)),
		slog.String("request_id", domain.RequestID(ctx)),
	)
	return records, nil
}

func toEventRecords(recs []host.Record) ([]domain.EventRecord, error) {
	now := time.Now().UTC()
	out := make([]domain.EventRecord, 0, len(recs))
	for _, r := range recs {
		payload, err := json.Marshal(r.Event)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", r.Event.EventName(), err)
		}
		out = append(out, domain.EventRecord{
			Seq:       r.Seq,
			Contract:  r.Contract,
			Name:      r.Event.EventName(),
			BlockTime: r.BlockTime,
			Payload:   payload,
			CreatedAt: now,
		})
	}
	return out, nil
}

// persist writes the state of the called contract and of every contract
// that emitted an event, then the balances, then the events.
func (l *Ledger) persist(ctx context.Context, contract domain.Address, records []domain.EventRecord) error {
	touched := map[domain.Address]bool{contract: true}
	for _, r := range records {
		touched[r.Contract] = true
	}
	for addr := range touched {
		st, ok, err := l.contractState(addr)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := l.states.SaveContract(ctx, st); err != nil {
			return fmt.Errorf("save %s: %w", addr.Hex(), err)
		}
	}
	if err := l.states.SaveBalances(ctx, l.env.Balances()); err != nil {
		return fmt.Errorf("save balances: %w", err)
	}
	if len(records) > 0 {
		if err := l.events.Append(ctx, records); err != nil {
			return fmt.Errorf("append events: %w", err)
		}
	}
	return nil
}

func (l *Ledger) contractState(addr domain.Address) (domain.ContractState, bool, error) {
	st := domain.ContractState{Address: addr, UpdatedAt: time.Now().UTC()}
	var target json.Marshaler

	l.mu.RLock()
	if addr == domain.VaultAddress() {
		st.Kind = domain.ContractKindVault
		target = l.vault
	} else {
		for id, m := range l.markets {
			if domain.MarketAddress(id) == addr {
				st.Kind = domain.ContractKindMarket
				st.MarketID = id
				target = m
				break
			}
		}
	}
	l.mu.RUnlock()
	if target == nil {
		return st, false, nil
	}

	var err error
	l.env.Read(func(uint64) { st.State, err = target.MarshalJSON() })
	if err != nil {
		return st, false, fmt.Errorf("encode %s: %w", addr.Hex(), err)
	}
	return st, true, nil
}

func (l *Ledger) publish(ctx context.Context, records []domain.EventRecord) {
	if l.bus == nil {
		return
	}
	for _, r := range records {
		payload, err := json.Marshal(r)
		if err != nil {
			continue
		}
		if err := l.bus.Publish(ctx, EventChannel(r.Contract), payload); err != nil {
			l.logger.WarnContext(ctx, "ledger: publish failed",
				slog.Uint64("seq", r.Seq),
				slog.String("error", err.Error()),
			)
		}
		if err := l.bus.StreamAppend(ctx, EventStream, payload); err != nil {
			l.logger.WarnContext(ctx, "ledger: stream append failed",
				slog.Uint64("seq", r.Seq),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (l *Ledger) refreshQuotes(ctx context.Context, contract domain.Address) {
	if l.quotes == nil || contract == domain.VaultAddress() {
		return
	}
	var id uint64
	var m *market.Market
	l.mu.RLock()
	for mid, candidate := range l.markets {
		if domain.MarketAddress(mid) == contract {
			id, m = mid, candidate
			break
		}
	}
	l.mu.RUnlock()
	if m == nil {
		return
	}

	var quotes []domain.Quote
	l.env.Read(func(uint64) { quotes = buildQuotes(id, m) })
	if err := l.quotes.SetQuotes(ctx, id, quotes); err != nil {
		l.logger.WarnContext(ctx, "ledger: quote refresh failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
	}
}

func buildQuotes(id uint64, m *market.Market) []domain.Quote {
	now := time.Now().UTC()
	odds := m.Odds()
	quotes := make([]domain.Quote, 0, len(odds))
	for _, o := range odds {
		quotes = append(quotes, domain.Quote{
			MarketID:  id,
			OutcomeID: o.OutcomeID,
			Price:     m.CurrentPrice(o.OutcomeID),
			OddsBPS:   o.BPS,
			UpdatedAt: now,
		})
	}
	return quotes
}

func (l *Ledger) notify(ctx context.Context, recs []host.Record) {
	if l.notifier == nil {
		return
	}
	for _, r := range recs {
		if err := l.notifier.NotifyEvent(ctx, r.Event); err != nil {
			l.logger.WarnContext(ctx, "ledger: notify failed",
				slog.String("event", r.Event.EventName()),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (l *Ledger) record(
	ctx context.Context,
	op string,
	caller, contract domain.Address,
	value *uint256.Int,
	records []domain.EventRecord,
) {
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Name
	}
	detail := map[string]any{
		"contract": contract.Hex(),
		"caller":   caller.Hex(),
		"events":   names,
	}
	if value != nil && !value.IsZero() {
		detail["value"] = value.Dec()
	}
	if id := domain.RequestID(ctx); id != "" {
		detail["request_id"] = id
	}
	if err := l.audit.Log(ctx, op, detail); err != nil {
		l.logger.WarnContext(ctx, "ledger: audit failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
	}
}

func (l *Ledger) fanout(records []domain.EventRecord) {
	l.mu.RLock()
	listeners := slices.Clone(l.listeners)
	l.mu.RUnlock()
	for _, r := range records {
		for _, fn := range listeners {
			fn(r)
		}
	}
}
