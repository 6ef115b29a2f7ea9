package host

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/curvemarket/internal/domain"
)

// counter is a minimal contract used to exercise the envelope.
type counter struct {
	n int
}

func (c *counter) Snapshot() any        { return c.n }
func (c *counter) Restore(snapshot any) { c.n = snapshot.(int) }

type pinged struct{ N int }

func (pinged) EventName() string { return "Pinged" }

var (
	alice    = common.HexToAddress("0xA11CE")
	bob      = common.HexToAddress("0xB0B")
	contract = common.HexToAddress("0xC0FFEE")
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func newEnv(t *testing.T) (*Env, *counter) {
	t.Helper()
	env := New()
	env.SetBlockTime(1_000)
	c := &counter{}
	env.Register(contract, c)
	env.Mint(alice, u(1_000))
	return env, c
}

func TestCallMovesAttachedValue(t *testing.T) {
	env, c := newEnv(t)

	records, err := env.Call(alice, contract, u(300), func(f Frame) error {
		assert.Equal(t, alice, f.Caller())
		assert.Equal(t, contract, f.Self())
		assert.Equal(t, uint64(300), f.AttachedValue().Uint64())
		assert.Equal(t, uint64(1_000), f.BlockTime())
		c.n++
		f.Emit(pinged{N: c.n})
		return nil
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(1), records[0].Seq)
	assert.Equal(t, "Pinged", records[0].Event.EventName())
	assert.Equal(t, uint64(700), env.Balance(alice).Uint64())
	assert.Equal(t, uint64(300), env.Balance(contract).Uint64())
}

func TestFailedCallRollsBackEverything(t *testing.T) {
	env, c := newEnv(t)
	boom := errors.New("boom")

	_, err := env.Call(alice, contract, u(300), func(f Frame) error {
		c.n = 42
		f.Emit(pinged{N: 42})
		require.NoError(t, f.Transfer(bob, u(100)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 0, c.n)
	assert.Empty(t, env.Events())
	assert.Equal(t, uint64(1_000), env.Balance(alice).Uint64())
	assert.True(t, env.Balance(bob).IsZero())
	assert.True(t, env.Balance(contract).IsZero())

	// Sequence numbers are reused after a rollback.
	records, err := env.Call(alice, contract, nil, func(f Frame) error {
		f.Emit(pinged{})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), records[0].Seq)
}

func TestCallRequiresFunds(t *testing.T) {
	env, _ := newEnv(t)
	_, err := env.Call(bob, contract, u(1), func(Frame) error { return nil })
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestUnknownContract(t *testing.T) {
	env, _ := newEnv(t)
	_, err := env.Call(alice, bob, nil, func(Frame) error { return nil })
	assert.ErrorIs(t, err, ErrUnknownContract)
}

func TestTransferFromContract(t *testing.T) {
	env, _ := newEnv(t)
	_, err := env.Call(alice, contract, u(100), func(f Frame) error {
		return f.Transfer(bob, u(150))
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, uint64(1_000), env.Balance(alice).Uint64())
}

type receiverFunc func(f Frame, amount *uint256.Int) error

func (r receiverFunc) Receive(f Frame, amount *uint256.Int) error { return r(f, amount) }

func TestReceiverRunsInsideCall(t *testing.T) {
	env, c := newEnv(t)
	var guard Guard
	var nestedErr error

	env.SetReceiver(bob, receiverFunc(func(f Frame, amount *uint256.Int) error {
		assert.Equal(t, contract, f.Caller())
		assert.Equal(t, bob, f.Self())
		nestedErr = f.Call(contract, nil, func(Frame) error {
			release, err := guard.Enter()
			if err != nil {
				return err
			}
			defer release()
			return nil
		})
		return nil
	}))

	_, err := env.Call(alice, contract, u(100), func(f Frame) error {
		release, err := guard.Enter()
		if err != nil {
			return err
		}
		defer release()
		c.n++
		return f.Transfer(bob, u(100))
	})
	require.NoError(t, err)
	assert.ErrorIs(t, nestedErr, ErrReentrantCall)
	assert.Equal(t, 1, c.n)
	assert.Equal(t, uint64(100), env.Balance(bob).Uint64())

	// The guard is released once the outer call returns.
	_, err = env.Call(alice, contract, nil, func(Frame) error {
		release, err := guard.Enter()
		if err != nil {
			return err
		}
		release()
		return nil
	})
	assert.NoError(t, err)
}

func TestReceiverFailureRevertsPayer(t *testing.T) {
	env, c := newEnv(t)
	env.SetReceiver(bob, receiverFunc(func(Frame, *uint256.Int) error {
		return errors.New("rejected")
	}))

	_, err := env.Call(alice, contract, u(100), func(f Frame) error {
		c.n++
		return f.Transfer(bob, u(100))
	})
	require.Error(t, err)
	assert.Equal(t, 0, c.n)
	assert.Equal(t, uint64(1_000), env.Balance(alice).Uint64())
}

func TestBlockTimeIsMonotonic(t *testing.T) {
	wall := time.Unix(5_000, 0)
	env := New(WithClock(func() time.Time { return wall }))
	assert.Equal(t, uint64(5_000), env.BlockTime())

	wall = time.Unix(4_000, 0)
	assert.Equal(t, uint64(5_000), env.BlockTime())

	env.SetBlockTime(6_000)
	env.SetBlockTime(5_500)
	assert.Equal(t, uint64(6_000), env.BlockTime())

	env.AdvanceTime(10)
	assert.Equal(t, uint64(6_010), env.BlockTime())
}

func TestBalancesCopy(t *testing.T) {
	env, _ := newEnv(t)
	b := env.Balances()
	b[alice].SetUint64(1)
	assert.Equal(t, uint64(1_000), env.Balance(alice).Uint64())

	env.SetBalances(map[domain.Address]*uint256.Int{bob: u(5)})
	assert.True(t, env.Balance(alice).IsZero())
	assert.Equal(t, uint64(5), env.Balance(bob).Uint64())
}
