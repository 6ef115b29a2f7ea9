package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/curvemarket/internal/safe"
)

func TestPositionAddRemove(t *testing.T) {
	pos := NewPosition(0)
	pos.AddShares(safe.U64(100), safe.U64(1000))
	assert.Equal(t, uint64(100), pos.Shares.Uint64())
	assert.Equal(t, uint64(1000), pos.TotalCost.Uint64())

	require.True(t, pos.RemoveShares(safe.U64(50)))
	assert.Equal(t, uint64(50), pos.Shares.Uint64())
	assert.Equal(t, uint64(500), pos.TotalCost.Uint64())

	require.False(t, pos.RemoveShares(safe.U64(51)))
	assert.Equal(t, uint64(50), pos.Shares.Uint64())

	require.True(t, pos.RemoveShares(safe.U64(50)))
	assert.True(t, pos.Shares.IsZero())
	assert.True(t, pos.TotalCost.IsZero())
}

func TestPositionRoundingResidueCleared(t *testing.T) {
	pos := NewPosition(1)
	pos.AddShares(safe.U64(3), safe.U64(10))

	require.True(t, pos.RemoveShares(safe.U64(1)))
	// 10 - 10*1/3 = 7
	assert.Equal(t, uint64(7), pos.TotalCost.Uint64())

	require.True(t, pos.RemoveShares(safe.U64(2)))
	assert.True(t, pos.TotalCost.IsZero())
}

func TestPositionCloneIsDeep(t *testing.T) {
	pos := NewPosition(0)
	pos.AddShares(safe.U64(5), safe.U64(5))
	cp := pos.Clone()
	pos.AddShares(safe.U64(1), safe.U64(1))
	assert.Equal(t, uint64(5), cp.Shares.Uint64())
}

func TestMarketKindOutcomeCounts(t *testing.T) {
	tests := []struct {
		kind MarketKind
		n    uint64
		want bool
	}{
		{MarketKindBinary, 2, true},
		{MarketKindBinary, 3, false},
		{MarketKindMultipleChoice, 1, false},
		{MarketKindMultipleChoice, 5, true},
		{MarketKindCompound, 0, true},
		{MarketKind("other"), 2, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.AllowsOutcomeCount(tt.n), "%s/%d", tt.kind, tt.n)
	}
}

func TestErrorClass(t *testing.T) {
	assert.Equal(t, ClassAccess, ErrNotAdmin.Class())
	assert.Equal(t, ClassState, ErrMarketNotActive.Class())
	assert.Equal(t, ClassTrading, ErrSlippageExceeded.Class())
	assert.Equal(t, ClassVault, ErrVaultPaused.Class())
	assert.Equal(t, ClassClaims, ErrAlreadyClaimed.Class())
	assert.Equal(t, ClassInit, ErrAlreadyInitialized.Class())
	assert.Equal(t, ClassUnknown, ClassOf(ErrNotFound))

	le, ok := AsLedgerError(fmt.Errorf("buy: %w", ErrZeroAmount))
	require.True(t, ok)
	assert.Equal(t, uint16(24), le.Code)
}
