package memory

import (
	"context"
	"mountains-server/core"
	"sync"

	"github.com/sirupsen/logrus"
)

// memStore implements AssetStore and SnapshotStore for in-memory storage.
// Everything is gone after a restart; it is the default for local runs.
type memStore struct {
	mu        sync.RWMutex
	assets    map[string][]byte
	snapshots map[string][]byte
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		assets:    make(map[string][]byte),
		snapshots: make(map[string][]byte),
	}
}

func (s *memStore) PutAsset(ctx context.Context, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	s.assets[id] = stored

	logrus.WithFields(logrus.Fields{
		"asset_id":    id,
		"data_length": len(data),
	}).Info("Asset stored")
	return nil
}

func (s *memStore) GetAsset(ctx context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.assets[id]
	if !ok {
		logrus.WithField("asset_id", id).Warn("Asset with specified ID not found")
		return nil, core.ErrAssetNotFound
	}
	return data, nil
}

func (s *memStore) SaveRoomSnapshot(ctx context.Context, roomID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	s.snapshots[roomID] = stored

	logrus.WithFields(logrus.Fields{
		"room_id":     roomID,
		"data_length": len(data),
	}).Info("Room snapshot saved")
	return nil
}

func (s *memStore) GetRoomSnapshot(ctx context.Context, roomID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.snapshots[roomID]
	if !ok {
		return nil, core.ErrRoomNotFound
	}
	return data, nil
}
