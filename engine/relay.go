// Package engine provides the default document engine: a relay that treats
// every frame as an opaque full-document update, broadcasts it unchanged, and
// persists the latest one as the room snapshot. Real merge semantics live
// behind the rooms.DocumentEngine seam and can replace this wholesale.
package engine

import (
	"context"
	"errors"
	"fmt"
	"mountains-server/core"
	"mountains-server/rooms"
	"sync"

	"github.com/sirupsen/logrus"
)

type relayEngine struct {
	snapshots core.SnapshotStore
}

// NewRelay creates a relay engine persisting room snapshots in the given store.
func NewRelay(snapshots core.SnapshotStore) rooms.DocumentEngine {
	return &relayEngine{snapshots: snapshots}
}

func (e *relayEngine) Load(ctx context.Context, roomID string) (rooms.DocumentState, error) {
	data, err := e.snapshots.GetRoomSnapshot(ctx, roomID)
	if err != nil {
		if errors.Is(err, core.ErrRoomNotFound) {
			logrus.WithField("room", roomID).Info("No persisted state, starting empty room")
			return &relayState{roomID: roomID, snapshots: e.snapshots}, nil
		}
		return nil, fmt.Errorf("load snapshot for room %s: %w", roomID, err)
	}

	logrus.WithFields(logrus.Fields{
		"room":  roomID,
		"bytes": len(data),
	}).Info("Loaded persisted room state")
	return &relayState{roomID: roomID, snapshots: e.snapshots, latest: data}, nil
}

type relayState struct {
	roomID    string
	snapshots core.SnapshotStore

	mu     sync.Mutex
	latest []byte
}

func (s *relayState) Apply(sessionID string, frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("empty frame from session %s", sessionID)
	}

	s.mu.Lock()
	s.latest = frame
	s.mu.Unlock()
	return frame, nil
}

func (s *relayState) Snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

func (s *relayState) Release(ctx context.Context) error {
	s.mu.Lock()
	latest := s.latest
	s.mu.Unlock()

	if latest == nil {
		return nil
	}
	return s.snapshots.SaveRoomSnapshot(ctx, s.roomID, latest)
}
