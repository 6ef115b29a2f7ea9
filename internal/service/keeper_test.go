package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubArchiver struct {
	before []time.Time
	n      int64
	err    error
}

func (a *stubArchiver) ArchiveEvents(_ context.Context, before time.Time) (int64, error) {
	a.before = append(a.before, before)
	return a.n, a.err
}

func TestKeeperArchiveHorizon(t *testing.T) {
	fx := newFixture(t)
	arch := &stubArchiver{n: 12}
	k := NewKeeper(fx.markets, arch, KeeperConfig{Operator: operator, ArchiveAfter: 7 * 24 * time.Hour}, discardLogger())
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	k.now = func() time.Time { return now }

	n, err := k.Archive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	require.Len(t, arch.before, 1)
	assert.Equal(t, now.Add(-7*24*time.Hour), arch.before[0])

	arch.err = errors.New("bucket gone")
	_, err = k.Archive(context.Background())
	assert.Error(t, err)
}

func TestKeeperWithoutArchiver(t *testing.T) {
	fx := newFixture(t)
	k := NewKeeper(fx.markets, nil, KeeperConfig{Operator: operator}, discardLogger())

	n, err := k.Archive(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestKeeperRunStopsOnCancel(t *testing.T) {
	fx := newFixture(t)
	id := fx.deploy()
	fx.env.AdvanceTime(3 * 3600)

	k := NewKeeper(fx.markets, nil, KeeperConfig{Operator: operator, Interval: 5 * time.Millisecond}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- k.Run(ctx) }()

	require.Eventually(t, func() bool {
		v, err := fx.markets.Get(id)
		return err == nil && v.Info.Status == "closed"
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("keeper did not stop")
	}
}
