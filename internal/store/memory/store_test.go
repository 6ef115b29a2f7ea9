package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/curvemarket/internal/domain"
)

func TestStateStoreContracts(t *testing.T) {
	ctx := context.Background()
	s := NewStateStore()

	raw := json.RawMessage(`{"initialized":true}`)
	require.NoError(t, s.SaveContract(ctx, domain.ContractState{Address: domain.MarketAddress(2), Kind: domain.ContractKindMarket, MarketID: 2, State: raw}))
	require.NoError(t, s.SaveContract(ctx, domain.ContractState{Address: domain.MarketAddress(1), Kind: domain.ContractKindMarket, MarketID: 1, State: raw}))
	require.NoError(t, s.SaveContract(ctx, domain.ContractState{Address: domain.VaultAddress(), Kind: domain.ContractKindVault, State: raw}))

	// Mutating the caller's buffer must not leak into the store.
	raw[2] = 'X'

	got, err := s.LoadContracts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, domain.ContractKindVault, got[0].Kind)
	assert.Equal(t, uint64(1), got[1].MarketID)
	assert.Equal(t, uint64(2), got[2].MarketID)
	assert.JSONEq(t, `{"initialized":true}`, string(got[1].State))
	assert.False(t, got[1].UpdatedAt.IsZero())

	// Upsert replaces.
	require.NoError(t, s.SaveContract(ctx, domain.ContractState{Address: domain.MarketAddress(1), Kind: domain.ContractKindMarket, MarketID: 1, State: json.RawMessage(`{}`)}))
	got, err = s.LoadContracts(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestStateStoreBalances(t *testing.T) {
	ctx := context.Background()
	s := NewStateStore()
	a := domain.MarketAddress(1)

	in := map[domain.Address]*uint256.Int{a: uint256.NewInt(42)}
	require.NoError(t, s.SaveBalances(ctx, in))
	in[a].SetUint64(7)

	out, err := s.LoadBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(42), out[a])

	out[a].SetUint64(0)
	again, err := s.LoadBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(42), again[a])
}

func records(seqs ...uint64) []domain.EventRecord {
	out := make([]domain.EventRecord, len(seqs))
	for i, seq := range seqs {
		out[i] = domain.EventRecord{Seq: seq, Name: "SharesPurchased", Payload: json.RawMessage(`{}`)}
	}
	return out
}

func TestEventStoreAppendAndList(t *testing.T) {
	ctx := context.Background()
	s := NewEventStore()

	last, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Zero(t, last)

	require.NoError(t, s.Append(ctx, records(1, 2, 3)))
	require.NoError(t, s.Append(ctx, records(5, 4)))

	last, err = s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), last)

	got, err := s.ListSince(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(3), got[0].Seq)
	assert.Equal(t, uint64(4), got[1].Seq)

	got, err = s.ListSince(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, got, 5)

	got, err = s.ListSince(ctx, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEventStoreRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewEventStore()
	require.NoError(t, s.Append(ctx, records(1)))

	assert.ErrorIs(t, s.Append(ctx, records(2, 1)), domain.ErrAlreadyExists)
	assert.ErrorIs(t, s.Append(ctx, records(3, 3)), domain.ErrAlreadyExists)

	got, err := s.ListSince(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1, "a failed batch stores nothing")
}

func TestEventStoreListBefore(t *testing.T) {
	ctx := context.Background()
	s := NewEventStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	recs := records(1, 2, 3)
	for i := range recs {
		recs[i].CreatedAt = base.Add(time.Duration(i) * time.Hour)
	}
	require.NoError(t, s.Append(ctx, recs))

	got, err := s.ListBefore(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestAuditStore(t *testing.T) {
	ctx := context.Background()
	s := NewAuditStore()

	for _, ev := range []string{"deploy", "buy", "sell"} {
		require.NoError(t, s.Log(ctx, ev, map[string]any{"caller": "0xA1"}))
	}

	all, err := s.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "sell", all[0].Event)
	assert.Equal(t, int64(3), all[0].ID)

	page, err := s.List(ctx, domain.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "buy", page[0].Event)

	future := time.Now().Add(time.Hour)
	none, err := s.List(ctx, domain.ListOpts{Since: &future})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReplayGuardExpiry(t *testing.T) {
	ctx := context.Background()
	g := NewReplayGuard()
	now := time.Unix(1_700_000_000, 0)
	g.now = func() time.Time { return now }

	ok, err := g.MarkSeen(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.MarkSeen(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second sighting within ttl")

	ok, err = g.MarkSeen(ctx, "b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(time.Minute)
	ok, err = g.MarkSeen(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired key is accepted again")
}
