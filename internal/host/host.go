// Package host simulates the ledger platform that markets and the vault run
// on. It provides account balances, a monotonic block clock, caller
// identity, value transfers, an append-only event log and an all-or-nothing
// envelope around every call: a call that returns an error leaves no trace.
package host

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/safe"
)

var (
	ErrInsufficientBalance = errors.New("host: insufficient balance")
	ErrUnknownContract     = errors.New("host: unknown contract")
	ErrReentrantCall       = errors.New("host: reentrant call")
)

// Contract is ledger-hosted state the Env can roll back. Snapshot must
// return a deep copy that Restore accepts.
type Contract interface {
	Snapshot() any
	Restore(snapshot any)
}

// Receiver is an account that runs code when it is paid. It executes inside
// the paying call, so whatever it does is rolled back with that call.
type Receiver interface {
	Receive(f Frame, amount *uint256.Int) error
}

// Frame is the view a contract has of the platform during one call.
type Frame interface {
	Caller() domain.Address
	Self() domain.Address
	AttachedValue() *uint256.Int
	BlockTime() uint64
	Balance(addr domain.Address) *uint256.Int
	Emit(ev domain.Event)
	Transfer(to domain.Address, amount *uint256.Int) error
	Call(target domain.Address, value *uint256.Int, fn func(Frame) error) error
}

// Record is one entry of the event log.
type Record struct {
	Seq       uint64
	Contract  domain.Address
	Event     domain.Event
	BlockTime uint64
}

// Env is the simulated platform. Top-level calls are serialized.
type Env struct {
	mu sync.Mutex

	clock    func() time.Time
	pinned   bool
	lastTime uint64

	balances  map[domain.Address]*uint256.Int
	contracts map[domain.Address]Contract
	receivers map[domain.Address]Receiver
	events    []Record
	seq       uint64
}

// Option configures an Env.
type Option func(*Env)

// WithClock sets the wall clock used for block time.
func WithClock(clock func() time.Time) Option {
	return func(e *Env) { e.clock = clock }
}

// New creates an empty Env.
func New(opts ...Option) *Env {
	e := &Env{
		clock:     time.Now,
		balances:  make(map[domain.Address]*uint256.Int),
		contracts: make(map[domain.Address]Contract),
		receivers: make(map[domain.Address]Receiver),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register makes a contract callable at addr.
func (e *Env) Register(addr domain.Address, c Contract) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.contracts[addr] = c
}

// Unregister removes the contract at addr. Balances held by addr stay.
func (e *Env) Unregister(addr domain.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.contracts, addr)
}

// SetReceiver installs code that runs whenever addr is paid.
func (e *Env) SetReceiver(addr domain.Address, r Receiver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r == nil {
		delete(e.receivers, addr)
		return
	}
	e.receivers[addr] = r
}

// Mint credits an account outside of any call. Used for genesis funding.
func (e *Env) Mint(addr domain.Address, amount *uint256.Int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.balances[addr] = safe.Add(e.balances[addr], amount)
}

// Balance returns a copy of addr's balance.
func (e *Env) Balance(addr domain.Address) *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return safe.OrZero(e.balances[addr])
}

// Balances returns a copy of every non-zero balance.
func (e *Env) Balances() map[domain.Address]*uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyBalances(e.balances)
}

// SetBalances replaces all balances. Used when restoring persisted state.
func (e *Env) SetBalances(balances map[domain.Address]*uint256.Int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.balances = copyBalances(balances)
}

// SetBlockTime pins the block clock to t. Block time never decreases, so
// a t earlier than the last observed time is ignored.
func (e *Env) SetBlockTime(t uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pinned = true
	if t > e.lastTime {
		e.lastTime = t
	}
}

// AdvanceTime moves a pinned clock forward by d seconds.
func (e *Env) AdvanceTime(d uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pinned = true
	e.lastTime += d
}

// BlockTime returns the current block time without advancing it.
func (e *Env) BlockTime() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick()
}

// SetSeq resumes event numbering after seq.
func (e *Env) SetSeq(seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq = seq
}

// Events returns a copy of the in-memory event log.
func (e *Env) Events() []Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Record(nil), e.events...)
}

// Read runs fn while no call is in progress, passing the current block
// time. Views go through Read so they never observe a half-applied call.
func (e *Env) Read(fn func(now uint64)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.tick())
}

// Call runs fn as caller against the contract at addr with value attached.
// The value moves to the contract before fn runs. If fn fails, every
// balance, every contract and the event log are restored. On success the
// events emitted by the call are returned.
func (e *Env) Call(caller, addr domain.Address, value *uint256.Int, fn func(Frame) error) ([]Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.tick()
	start := len(e.events)
	if err := e.invoke(caller, addr, value, now, fn); err != nil {
		return nil, err
	}
	return append([]Record(nil), e.events[start:]...), nil
}

func (e *Env) tick() uint64 {
	if !e.pinned {
		if now := uint64(e.clock().Unix()); now > e.lastTime {
			e.lastTime = now
		}
	}
	return e.lastTime
}

type envSnapshot struct {
	contracts map[domain.Address]any
	balances  map[domain.Address]*uint256.Int
	events    int
	seq       uint64
}

func (e *Env) snapshot() envSnapshot {
	s := envSnapshot{
		contracts: make(map[domain.Address]any, len(e.contracts)),
		balances:  copyBalances(e.balances),
		events:    len(e.events),
		seq:       e.seq,
	}
	for addr, c := range e.contracts {
		s.contracts[addr] = c.Snapshot()
	}
	return s
}

func (e *Env) restore(s envSnapshot) {
	for addr, c := range e.contracts {
		if snap, ok := s.contracts[addr]; ok {
			c.Restore(snap)
		}
	}
	e.balances = s.balances
	e.events = e.events[:s.events]
	e.seq = s.seq
}

func (e *Env) invoke(caller, addr domain.Address, value *uint256.Int, now uint64, fn func(Frame) error) error {
	if _, ok := e.contracts[addr]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownContract, addr.Hex())
	}
	snap := e.snapshot()
	v := safe.OrZero(value)
	if err := e.move(caller, addr, v); err != nil {
		e.restore(snap)
		return err
	}
	f := &frame{env: e, caller: caller, self: addr, value: v, now: now}
	if err := fn(f); err != nil {
		e.restore(snap)
		return err
	}
	return nil
}

func (e *Env) move(from, to domain.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	have := safe.OrZero(e.balances[from])
	if have.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from.Hex(), have.Dec(), amount.Dec())
	}
	e.balances[from] = safe.Sub(have, amount)
	e.balances[to] = safe.Add(e.balances[to], amount)
	return nil
}

func copyBalances(in map[domain.Address]*uint256.Int) map[domain.Address]*uint256.Int {
	out := make(map[domain.Address]*uint256.Int, len(in))
	for addr, bal := range in {
		if bal == nil || bal.IsZero() {
			continue
		}
		out[addr] = bal.Clone()
	}
	return out
}
