package vault

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/host"
)

var (
	admin     = common.HexToAddress("0xAD")
	treasury  = common.HexToAddress("0xFEE")
	factory   = common.HexToAddress("0xFAC")
	stranger  = common.HexToAddress("0x5E")
	user      = common.HexToAddress("0xA1")
	marketOne = domain.MarketAddress(1)
	marketTwo = domain.MarketAddress(2)
	vaultAddr = domain.VaultAddress()
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

type fixture struct {
	t   *testing.T
	env *host.Env
	v   *Vault
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := host.New()
	env.SetBlockTime(1_000)
	v := New()
	env.Register(vaultAddr, v)
	for _, a := range []domain.Address{admin, treasury, factory, stranger, marketOne, marketTwo} {
		env.Mint(a, u(10_000))
	}
	fx := &fixture{t: t, env: env, v: v}
	require.NoError(t, fx.call(admin, nil, func(f host.Frame) error { return v.Init(f, admin, treasury) }))
	return fx
}

// call runs fn against the vault and checks the ledger invariant afterwards
// whatever the outcome.
func (fx *fixture) call(caller domain.Address, value *uint256.Int, fn func(host.Frame) error) error {
	fx.t.Helper()
	_, err := fx.env.Call(caller, vaultAddr, value, fn)
	require.NoError(fx.t, fx.v.CheckInvariant())
	return err
}

func (fx *fixture) authorize(market domain.Address) {
	fx.t.Helper()
	require.NoError(fx.t, fx.call(admin, nil, func(f host.Frame) error { return fx.v.AuthorizeMarket(f, market) }))
}

func (fx *fixture) deposit(from domain.Address, id, amount uint64) error {
	return fx.call(from, u(amount), func(f host.Frame) error { return fx.v.Deposit(f, id) })
}

func (fx *fixture) withdraw(from domain.Address, id uint64, to domain.Address, amount uint64) error {
	return fx.call(from, nil, func(f host.Frame) error { return fx.v.Withdraw(f, id, to, u(amount)) })
}

func (fx *fixture) collect(from domain.Address, id, amount uint64) error {
	return fx.call(from, nil, func(f host.Frame) error { return fx.v.CollectPlatformFees(f, id, u(amount)) })
}

func TestInit(t *testing.T) {
	fx := newFixture(t)
	assert.True(t, fx.v.Initialized())
	assert.Equal(t, admin, fx.v.Admin())
	assert.Equal(t, treasury, fx.v.FeeRecipient())
	assert.False(t, fx.v.IsPaused())
	assert.True(t, fx.v.TotalLocked().IsZero())
	_, ok := fx.v.Factory()
	assert.False(t, ok)

	err := fx.call(admin, nil, func(f host.Frame) error { return fx.v.Init(f, stranger, stranger) })
	assert.ErrorIs(t, err, domain.ErrAlreadyInitialized)
	assert.Equal(t, admin, fx.v.Admin())
}

func TestUninitializedVaultRejectsCalls(t *testing.T) {
	env := host.New()
	v := New()
	env.Register(vaultAddr, v)
	env.Mint(admin, u(100))

	_, err := env.Call(admin, vaultAddr, u(10), func(f host.Frame) error { return v.Deposit(f, 1) })
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	_, err = env.Call(admin, vaultAddr, nil, func(f host.Frame) error { return v.Pause(f) })
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	assert.Equal(t, u(100), env.Balance(admin))
}

func TestDepositWithdrawCollectClaim(t *testing.T) {
	fx := newFixture(t)
	fx.authorize(marketOne)

	require.NoError(t, fx.deposit(marketOne, 1, 500))
	assert.Equal(t, u(500), fx.v.MarketBalance(1))
	assert.Equal(t, u(500), fx.v.TotalLocked())
	assert.Equal(t, u(500), fx.env.Balance(vaultAddr))

	require.NoError(t, fx.withdraw(marketOne, 1, user, 200))
	assert.Equal(t, u(300), fx.v.MarketBalance(1))
	assert.Equal(t, u(300), fx.v.TotalLocked())
	assert.Equal(t, u(200), fx.env.Balance(user))

	assert.ErrorIs(t, fx.withdraw(marketOne, 1, user, 400), domain.ErrExceedsMarketBalance)
	assert.Equal(t, u(300), fx.v.MarketBalance(1))

	require.NoError(t, fx.collect(marketOne, 1, 50))
	assert.Equal(t, u(250), fx.v.MarketBalance(1))
	assert.Equal(t, u(50), fx.v.PlatformFees())
	assert.Equal(t, u(300), fx.v.TotalLocked())

	err := fx.call(stranger, nil, func(f host.Frame) error { return fx.v.ClaimPlatformFees(f) })
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	before := fx.env.Balance(treasury)
	require.NoError(t, fx.call(treasury, nil, func(f host.Frame) error { return fx.v.ClaimPlatformFees(f) }))
	assert.Equal(t, u(50), new(uint256.Int).Sub(fx.env.Balance(treasury), before))
	assert.True(t, fx.v.PlatformFees().IsZero())
	assert.Equal(t, u(250), fx.v.TotalLocked())
	assert.Equal(t, u(250), fx.env.Balance(vaultAddr))

	err = fx.call(treasury, nil, func(f host.Frame) error { return fx.v.ClaimPlatformFees(f) })
	assert.ErrorIs(t, err, domain.ErrNothingToClaim)
}

func TestDepositEmitsEvent(t *testing.T) {
	fx := newFixture(t)
	fx.authorize(marketOne)

	recs, err := fx.env.Call(marketOne, vaultAddr, u(70), func(f host.Frame) error { return fx.v.Deposit(f, 1) })
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.FundsDeposited{MarketID: 1, Amount: u(70), FromContract: marketOne}, recs[0].Event)
	assert.Equal(t, vaultAddr, recs[0].Contract)
}

func TestBalancesAreIsolatedPerMarket(t *testing.T) {
	fx := newFixture(t)
	fx.authorize(marketOne)
	fx.authorize(marketTwo)

	require.NoError(t, fx.deposit(marketOne, 1, 100))
	require.NoError(t, fx.deposit(marketTwo, 2, 40))

	assert.ErrorIs(t, fx.withdraw(marketTwo, 2, user, 41), domain.ErrExceedsMarketBalance)
	assert.ErrorIs(t, fx.collect(marketTwo, 2, 41), domain.ErrExceedsMarketBalance)
	assert.Equal(t, u(100), fx.v.MarketBalance(1))
	assert.Equal(t, u(140), fx.v.TotalLocked())
}

func TestCallerAuthorization(t *testing.T) {
	fx := newFixture(t)

	assert.ErrorIs(t, fx.deposit(stranger, 1, 10), domain.ErrUnauthorizedMarket)
	assert.ErrorIs(t, fx.withdraw(stranger, 1, stranger, 1), domain.ErrUnauthorizedMarket)
	assert.ErrorIs(t, fx.collect(stranger, 1, 1), domain.ErrUnauthorizedMarket)
	assert.Equal(t, u(10_000), fx.env.Balance(stranger))

	// The admin is always an authorized caller.
	require.NoError(t, fx.deposit(admin, 7, 10))

	require.NoError(t, fx.call(admin, nil, func(f host.Frame) error { return fx.v.SetFactory(f, factory) }))
	require.NoError(t, fx.deposit(factory, 7, 5))
	assert.Equal(t, u(15), fx.v.MarketBalance(7))
}

func TestValidationOrder(t *testing.T) {
	fx := newFixture(t)
	fx.authorize(marketOne)

	// Authorization is checked before the amount.
	assert.ErrorIs(t, fx.deposit(stranger, 1, 0), domain.ErrUnauthorizedMarket)
	assert.ErrorIs(t, fx.deposit(marketOne, 1, 0), domain.ErrZeroAmount)
	assert.ErrorIs(t, fx.withdraw(marketOne, 1, user, 0), domain.ErrZeroAmount)

	require.NoError(t, fx.call(admin, nil, func(f host.Frame) error { return fx.v.Pause(f) }))
	// Pause is checked before everything else.
	assert.ErrorIs(t, fx.deposit(stranger, 1, 0), domain.ErrVaultPaused)
}

func TestCollectZeroIsNoop(t *testing.T) {
	fx := newFixture(t)
	fx.authorize(marketOne)

	recs, err := fx.env.Call(marketOne, vaultAddr, nil, func(f host.Frame) error {
		return fx.v.CollectPlatformFees(f, 1, u(0))
	})
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.True(t, fx.v.PlatformFees().IsZero())
}

func TestPause(t *testing.T) {
	fx := newFixture(t)
	fx.authorize(marketOne)
	require.NoError(t, fx.deposit(marketOne, 1, 100))
	require.NoError(t, fx.collect(marketOne, 1, 10))

	err := fx.call(stranger, nil, func(f host.Frame) error { return fx.v.Pause(f) })
	assert.ErrorIs(t, err, domain.ErrNotAdmin)

	recs, err := fx.env.Call(admin, vaultAddr, nil, func(f host.Frame) error { return fx.v.Pause(f) })
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.VaultPauseStatusChanged{Paused: true}, recs[0].Event)
	assert.True(t, fx.v.IsPaused())

	assert.ErrorIs(t, fx.deposit(marketOne, 1, 1), domain.ErrVaultPaused)
	assert.ErrorIs(t, fx.withdraw(marketOne, 1, user, 1), domain.ErrVaultPaused)
	assert.ErrorIs(t, fx.collect(marketOne, 1, 1), domain.ErrVaultPaused)
	err = fx.call(treasury, nil, func(f host.Frame) error { return fx.v.ClaimPlatformFees(f) })
	assert.ErrorIs(t, err, domain.ErrVaultPaused)

	// Admin functions keep working while paused.
	fx.authorize(marketTwo)

	require.NoError(t, fx.call(admin, nil, func(f host.Frame) error { return fx.v.Unpause(f) }))
	assert.False(t, fx.v.IsPaused())
	require.NoError(t, fx.withdraw(marketOne, 1, user, 90))
}

func TestAuthorizeAndRevoke(t *testing.T) {
	fx := newFixture(t)

	err := fx.call(stranger, nil, func(f host.Frame) error { return fx.v.AuthorizeMarket(f, marketOne) })
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	fx.authorize(marketOne)
	assert.True(t, fx.v.IsAuthorized(marketOne))
	err = fx.call(admin, nil, func(f host.Frame) error { return fx.v.AuthorizeMarket(f, marketOne) })
	assert.ErrorIs(t, err, domain.ErrMarketAlreadyAuthorized)

	require.NoError(t, fx.call(admin, nil, func(f host.Frame) error { return fx.v.SetFactory(f, factory) }))
	require.NoError(t, fx.call(factory, nil, func(f host.Frame) error { return fx.v.AuthorizeMarket(f, marketTwo) }))
	assert.Equal(t, []domain.Address{marketOne, marketTwo}, fx.v.AuthorizedMarkets())

	err = fx.call(factory, nil, func(f host.Frame) error { return fx.v.RevokeMarket(f, marketTwo) })
	assert.ErrorIs(t, err, domain.ErrNotAdmin)

	recs, err := fx.env.Call(admin, vaultAddr, nil, func(f host.Frame) error { return fx.v.RevokeMarket(f, marketTwo) })
	require.NoError(t, err)
	assert.Equal(t, domain.MarketRevoked{Market: marketTwo}, recs[0].Event)
	assert.False(t, fx.v.IsAuthorized(marketTwo))
	assert.ErrorIs(t, fx.deposit(marketTwo, 2, 1), domain.ErrUnauthorizedMarket)

	err = fx.call(admin, nil, func(f host.Frame) error { return fx.v.RevokeMarket(f, marketTwo) })
	assert.ErrorIs(t, err, domain.ErrMarketNotAuthorized)
}

func TestTransferAdmin(t *testing.T) {
	fx := newFixture(t)

	err := fx.call(stranger, nil, func(f host.Frame) error { return fx.v.TransferAdmin(f, stranger) })
	assert.ErrorIs(t, err, domain.ErrNotAdmin)

	recs, err := fx.env.Call(admin, vaultAddr, nil, func(f host.Frame) error { return fx.v.TransferAdmin(f, stranger) })
	require.NoError(t, err)
	assert.Equal(t, domain.AdminTransferred{PreviousAdmin: admin, NewAdmin: stranger}, recs[0].Event)
	assert.Equal(t, stranger, fx.v.Admin())

	err = fx.call(admin, nil, func(f host.Frame) error { return fx.v.Pause(f) })
	assert.ErrorIs(t, err, domain.ErrNotAdmin)
}

func TestUpdateFeeRecipient(t *testing.T) {
	fx := newFixture(t)
	fx.authorize(marketOne)
	require.NoError(t, fx.deposit(marketOne, 1, 100))
	require.NoError(t, fx.collect(marketOne, 1, 30))

	err := fx.call(treasury, nil, func(f host.Frame) error { return fx.v.UpdateFeeRecipient(f, treasury) })
	assert.ErrorIs(t, err, domain.ErrNotAdmin)

	require.NoError(t, fx.call(admin, nil, func(f host.Frame) error { return fx.v.UpdateFeeRecipient(f, user) }))
	err = fx.call(treasury, nil, func(f host.Frame) error { return fx.v.ClaimPlatformFees(f) })
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	require.NoError(t, fx.call(user, nil, func(f host.Frame) error { return fx.v.ClaimPlatformFees(f) }))
	assert.Equal(t, u(30), fx.env.Balance(user))
}

type rejectingReceiver struct{}

func (rejectingReceiver) Receive(host.Frame, *uint256.Int) error { return assert.AnError }

func TestFailedPayoutRestoresBalances(t *testing.T) {
	fx := newFixture(t)
	fx.authorize(marketOne)
	require.NoError(t, fx.deposit(marketOne, 1, 100))
	fx.env.SetReceiver(user, rejectingReceiver{})

	assert.ErrorIs(t, fx.withdraw(marketOne, 1, user, 60), assert.AnError)
	assert.Equal(t, u(100), fx.v.MarketBalance(1))
	assert.Equal(t, u(100), fx.env.Balance(vaultAddr))
}

func TestEncodingRoundTrip(t *testing.T) {
	fx := newFixture(t)
	fx.authorize(marketOne)
	require.NoError(t, fx.call(admin, nil, func(f host.Frame) error { return fx.v.SetFactory(f, factory) }))
	require.NoError(t, fx.deposit(marketOne, 1, 100))
	require.NoError(t, fx.deposit(admin, 9, 7))
	require.NoError(t, fx.collect(marketOne, 1, 25))

	data, err := json.Marshal(fx.v)
	require.NoError(t, err)

	restored := New()
	require.NoError(t, json.Unmarshal(data, restored))
	assert.Equal(t, fx.v.TotalLocked(), restored.TotalLocked())
	assert.Equal(t, fx.v.PlatformFees(), restored.PlatformFees())
	assert.Equal(t, u(75), restored.MarketBalance(1))
	assert.Equal(t, u(7), restored.MarketBalance(9))
	assert.True(t, restored.IsAuthorized(marketOne))
	got, ok := restored.Factory()
	assert.True(t, ok)
	assert.Equal(t, factory, got)

	again, err := json.Marshal(restored)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
}

func TestDecodeRejectsBrokenTotals(t *testing.T) {
	bad := `{"initialized":true,"balances":[{"market_id":1,"amount":"10"}],"total_locked":"11","platform_fees":"0"}`
	err := json.Unmarshal([]byte(bad), New())
	assert.Error(t, err)
}
