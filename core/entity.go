package core

import (
	"context"
	"errors"
)

var (
	// ErrAssetNotFound is returned when no blob exists for the requested id.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrRoomNotFound is returned when no persisted state exists for a room id.
	ErrRoomNotFound = errors.New("room not found")
	// ErrSessionNotFound is returned when a token does not map to an active session.
	ErrSessionNotFound = errors.New("session not found")
)

type (
	// BookmarkMetadata is the result of unfurling a URL. Fields are empty
	// strings when the page could not be fetched or parsed.
	BookmarkMetadata struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Image       string `json:"image"`
		Favicon     string `json:"favicon"`
	}

	// AssetStore persists opaque uploaded blobs keyed by a caller-chosen id.
	// Ids are expected (not guaranteed) unique; PutAsset overwrites.
	AssetStore interface {
		PutAsset(ctx context.Context, id string, data []byte) error
		GetAsset(ctx context.Context, id string) ([]byte, error)
	}

	// SnapshotStore persists the latest serialized document state per room.
	SnapshotStore interface {
		SaveRoomSnapshot(ctx context.Context, roomID string, data []byte) error
		GetRoomSnapshot(ctx context.Context, roomID string) ([]byte, error)
	}
)
