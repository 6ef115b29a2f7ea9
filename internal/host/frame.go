package host

import (
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/safe"
)

type frame struct {
	env    *Env
	caller domain.Address
	self   domain.Address
	value  *uint256.Int
	now    uint64
}

func (f *frame) Caller() domain.Address      { return f.caller }
func (f *frame) Self() domain.Address        { return f.self }
func (f *frame) AttachedValue() *uint256.Int { return f.value.Clone() }
func (f *frame) BlockTime() uint64           { return f.now }

func (f *frame) Balance(addr domain.Address) *uint256.Int {
	return safe.OrZero(f.env.balances[addr])
}

func (f *frame) Emit(ev domain.Event) {
	e := f.env
	e.seq++
	e.events = append(e.events, Record{Seq: e.seq, Contract: f.self, Event: ev, BlockTime: f.now})
}

// Transfer pays amount from the running contract to addr. If addr has a
// Receiver it runs before Transfer returns, with the paying contract as its
// caller.
func (f *frame) Transfer(to domain.Address, amount *uint256.Int) error {
	v := safe.OrZero(amount)
	if err := f.env.move(f.self, to, v); err != nil {
		return err
	}
	r, ok := f.env.receivers[to]
	if !ok {
		return nil
	}
	return r.Receive(&frame{env: f.env, caller: f.self, self: to, value: v, now: f.now}, v)
}

// Call invokes another contract with the running contract (or receiver) as
// caller. A failed nested call is rolled back on its own; the outer call
// decides whether to propagate the error.
func (f *frame) Call(target domain.Address, value *uint256.Int, fn func(Frame) error) error {
	return f.env.invoke(f.self, target, value, f.now, fn)
}
