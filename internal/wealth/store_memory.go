package wealth

import (
	"context"
	"sort"
	"sync"
	"time"

	id "mizan/pkg/domain"
	"mizan/pkg/platform/sentinel"
)

// InMemoryAssetStore is the non-distributed AssetStore used in development
// and unit tests.
type InMemoryAssetStore struct {
	mu     sync.RWMutex
	assets map[id.AssetID]*Asset
}

// NewInMemoryAssetStore creates an empty asset store.
func NewInMemoryAssetStore() *InMemoryAssetStore {
	return &InMemoryAssetStore{assets: make(map[id.AssetID]*Asset)}
}

func (s *InMemoryAssetStore) Save(_ context.Context, asset *Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *asset
	s.assets[asset.ID] = &cp
	return nil
}

func (s *InMemoryAssetStore) FindByID(_ context.Context, userID id.UserID, assetID id.AssetID) (*Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asset, ok := s.assets[assetID]
	if !ok || asset.UserID != userID {
		return nil, sentinel.ErrNotFound
	}
	cp := *asset
	return &cp, nil
}

func (s *InMemoryAssetStore) ListByUser(_ context.Context, userID id.UserID, includeDeleted bool) ([]*Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Asset
	for _, asset := range s.assets {
		if asset.UserID != userID {
			continue
		}
		if asset.Deleted() && !includeDeleted {
			continue
		}
		cp := *asset
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryAssetStore) SoftDelete(_ context.Context, userID id.UserID, assetID id.AssetID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset, ok := s.assets[assetID]
	if !ok || asset.UserID != userID {
		return sentinel.ErrNotFound
	}
	t := at
	asset.DeletedAt = &t
	return nil
}

func (s *InMemoryAssetStore) Restore(_ context.Context, userID id.UserID, assetID id.AssetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset, ok := s.assets[assetID]
	if !ok || asset.UserID != userID {
		return sentinel.ErrNotFound
	}
	asset.DeletedAt = nil
	return nil
}

func (s *InMemoryAssetStore) ForceDelete(_ context.Context, userID id.UserID, assetID id.AssetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset, ok := s.assets[assetID]
	if !ok || asset.UserID != userID {
		return sentinel.ErrNotFound
	}
	delete(s.assets, assetID)
	return nil
}

// InMemoryLiabilityStore is the non-distributed LiabilityStore.
type InMemoryLiabilityStore struct {
	mu          sync.RWMutex
	liabilities map[id.LiabilityID]*Liability
}

// NewInMemoryLiabilityStore creates an empty liability store.
func NewInMemoryLiabilityStore() *InMemoryLiabilityStore {
	return &InMemoryLiabilityStore{liabilities: make(map[id.LiabilityID]*Liability)}
}

func (s *InMemoryLiabilityStore) Save(_ context.Context, liability *Liability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *liability
	s.liabilities[liability.ID] = &cp
	return nil
}

func (s *InMemoryLiabilityStore) FindByID(_ context.Context, userID id.UserID, liabilityID id.LiabilityID) (*Liability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	liability, ok := s.liabilities[liabilityID]
	if !ok || liability.UserID != userID {
		return nil, sentinel.ErrNotFound
	}
	cp := *liability
	return &cp, nil
}

func (s *InMemoryLiabilityStore) ListByUser(_ context.Context, userID id.UserID) ([]*Liability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Liability
	for _, liability := range s.liabilities {
		if liability.UserID != userID {
			continue
		}
		cp := *liability
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryLiabilityStore) Delete(_ context.Context, userID id.UserID, liabilityID id.LiabilityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	liability, ok := s.liabilities[liabilityID]
	if !ok || liability.UserID != userID {
		return sentinel.ErrNotFound
	}
	delete(s.liabilities, liabilityID)
	return nil
}
