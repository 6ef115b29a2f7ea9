package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/curvemarket/internal/config"
	"github.com/alanyoungcy/curvemarket/internal/crypto"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	signer, err := crypto.GenerateSigner()
	require.NoError(t, err)
	cfg := config.Defaults()
	cfg.Operator.PrivateKey = signer.PrivateKeyHex()
	cfg.Ledger.GenesisBalances = map[string]string{
		"0x00000000000000000000000000000000000000a1": "5000000000",
	}
	return &cfg
}

func TestGenesisBalances(t *testing.T) {
	got, err := genesisBalances(map[string]string{
		"0x00000000000000000000000000000000000000a1": "42",
	})
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(42), got[common.HexToAddress("0xa1")])

	_, err = genesisBalances(map[string]string{"nope": "1"})
	assert.Error(t, err)
	_, err = genesisBalances(map[string]string{"0x00000000000000000000000000000000000000a1": "-1"})
	assert.Error(t, err)
}

func TestMarketPolicyFromConfig(t *testing.T) {
	cfg := config.Defaults()
	op := common.HexToAddress("0x0F")
	p, err := marketPolicy(cfg.Market, op)
	require.NoError(t, err)
	assert.Equal(t, op, p.Operator)
	assert.Equal(t, cfg.Market.DefaultFeeBPS, p.DefaultFeeBPS)
	assert.Equal(t, uint256.NewInt(10_000_000), p.Curve.InitialPrice)

	cfg.Market.KConstant = "x"
	_, err = marketPolicy(cfg.Market, op)
	assert.Error(t, err)
}

func TestBuildRuntimeBootstrapsMemoryLedger(t *testing.T) {
	cfg := testConfig(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(cfg, logger)
	ctx := context.Background()

	deps, cleanup, err := Wire(ctx, cfg, logger)
	require.NoError(t, err)
	defer cleanup()
	assert.Nil(t, deps.SignalBus)
	assert.Nil(t, deps.Archiver)
	assert.Empty(t, deps.Health)

	rt, err := a.buildRuntime(ctx, deps)
	require.NoError(t, err)

	v := rt.vault.Summary()
	assert.True(t, v.Initialized)
	assert.Equal(t, deps.Signer.Address(), v.Admin)
	assert.Equal(t, uint256.NewInt(5_000_000_000), rt.ledger.Balance(common.HexToAddress("0xa1")))
	assert.Empty(t, rt.ledger.MarketIDs())
}
