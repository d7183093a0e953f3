package rooms

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Registry hands out at most one live Room per id. Concurrent first-time
// resolves for the same id attach to a single in-flight load via the
// singleflight group; a duplicate instance would silently split participants
// into two broadcast groups, so the in-flight load itself is what is cached,
// not just the finished result. A failed load leaves nothing behind and later
// callers retry from scratch.
type Registry struct {
	engine DocumentEngine

	mu    sync.Mutex
	rooms map[string]*Room
	loads singleflight.Group
}

// NewRegistry creates a registry backed by the given document engine.
func NewRegistry(engine DocumentEngine) *Registry {
	return &Registry{
		engine: engine,
		rooms:  make(map[string]*Room),
	}
}

// Resolve returns the live Room for an id, loading it on first use. Loads are
// not cancellable once started: a caller hanging up must not abort a load
// that other callers are attached to.
func (g *Registry) Resolve(ctx context.Context, roomID string) (*Room, error) {
	g.mu.Lock()
	if room, ok := g.rooms[roomID]; ok && !room.Closed() {
		g.mu.Unlock()
		return room, nil
	}
	g.mu.Unlock()

	v, err, shared := g.loads.Do(roomID, func() (any, error) {
		// Re-check: the room may have been registered between the miss
		// above and entering the group.
		g.mu.Lock()
		if room, ok := g.rooms[roomID]; ok && !room.Closed() {
			g.mu.Unlock()
			return room, nil
		}
		g.mu.Unlock()

		logrus.WithField("room", roomID).Info("Loading room")
		state, err := g.engine.Load(context.WithoutCancel(ctx), roomID)
		if err != nil {
			return nil, fmt.Errorf("load room %s: %w", roomID, err)
		}

		room := newRoom(roomID, state, g.drop)
		g.mu.Lock()
		g.rooms[roomID] = room
		g.mu.Unlock()
		return room, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logrus.WithField("room", roomID).Debug("Attached to in-flight room load")
	}
	return v.(*Room), nil
}

// drop removes a released room. The identity check keeps a concurrently
// reloaded instance from being evicted by its predecessor's release.
func (g *Registry) drop(room *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if current, ok := g.rooms[room.id]; ok && current == room {
		delete(g.rooms, room.id)
	}
}

// ActiveRooms returns participant counts for all live rooms.
func (g *Registry) ActiveRooms() map[string]int {
	g.mu.Lock()
	snapshot := make([]*Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		snapshot = append(snapshot, room)
	}
	g.mu.Unlock()

	counts := make(map[string]int, len(snapshot))
	for _, room := range snapshot {
		counts[room.id] = room.ParticipantCount()
	}
	return counts
}

// Shutdown releases every live room, persisting snapshots.
func (g *Registry) Shutdown() {
	g.mu.Lock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		rooms = append(rooms, room)
	}
	g.mu.Unlock()

	for _, room := range rooms {
		room.Shutdown()
	}
}
