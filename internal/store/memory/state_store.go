// Package memory implements the domain store interfaces in process memory.
// It backs local runs and service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/safe"
)

// StateStore is an in-memory implementation of domain.StateStore.
type StateStore struct {
	mu        sync.RWMutex
	contracts map[domain.Address]domain.ContractState
	balances  map[domain.Address]*uint256.Int
}

// NewStateStore creates an empty state store.
func NewStateStore() *StateStore {
	return &StateStore{
		contracts: make(map[domain.Address]domain.ContractState),
		balances:  make(map[domain.Address]*uint256.Int),
	}
}

// SaveContract upserts the snapshot of one contract.
func (s *StateStore) SaveContract(_ context.Context, st domain.ContractState) error {
	st.State = append([]byte(nil), st.State...)
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts[st.Address] = st
	return nil
}

// LoadContracts returns every snapshot, vault first and markets by id.
func (s *StateStore) LoadContracts(_ context.Context) ([]domain.ContractState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ContractState, 0, len(s.contracts))
	for _, st := range s.contracts {
		st.State = append([]byte(nil), st.State...)
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == domain.ContractKindVault
		}
		return out[i].MarketID < out[j].MarketID
	})
	return out, nil
}

// SaveBalances replaces the stored account balances.
func (s *StateStore) SaveBalances(_ context.Context, balances map[domain.Address]*uint256.Int) error {
	next := make(map[domain.Address]*uint256.Int, len(balances))
	for a, b := range balances {
		next[a] = safe.OrZero(b)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances = next
	return nil
}

// LoadBalances returns a copy of the stored balances.
func (s *StateStore) LoadBalances(_ context.Context) (map[domain.Address]*uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[domain.Address]*uint256.Int, len(s.balances))
	for a, b := range s.balances {
		out[a] = safe.OrZero(b)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.StateStore = (*StateStore)(nil)
