package filesystem

import (
	"context"
	"fmt"
	"log"
	"mountains-server/core"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based store. Assets live under
// <base>/assets, room snapshots under <base>/rooms.
func NewStore(basePath string) *fsStore {
	for _, dir := range []string{filepath.Join(basePath, "assets"), filepath.Join(basePath, "rooms")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("failed to create storage directory: %v", err)
		}
	}
	return &fsStore{basePath: basePath}
}

// safePath joins an untrusted id under a storage subdirectory, refusing ids
// that would escape it.
func (s *fsStore) safePath(subdir, id string) (string, error) {
	if id == "" || id == "." || id == ".." {
		return "", fmt.Errorf("invalid id: must not be empty or a dot directory")
	}
	if filepath.Base(id) != id || strings.ContainsAny(id, "/\\") {
		return "", fmt.Errorf("invalid id: must not be a path")
	}
	return filepath.Join(s.basePath, subdir, id), nil
}

func (s *fsStore) PutAsset(ctx context.Context, id string, data []byte) error {
	filePath, err := s.safePath("assets", id)
	if err != nil {
		return err
	}

	log := logrus.WithFields(logrus.Fields{
		"asset_id":  id,
		"file_path": filePath,
	})
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write asset file")
		return err
	}
	log.Info("Asset stored")
	return nil
}

func (s *fsStore) GetAsset(ctx context.Context, id string) ([]byte, error) {
	filePath, err := s.safePath("assets", id)
	if err != nil {
		return nil, err
	}

	log := logrus.WithField("asset_id", id)
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Asset with specified ID not found")
			return nil, core.ErrAssetNotFound
		}
		log.WithError(err).Error("Failed to read asset file")
		return nil, err
	}
	return data, nil
}

func (s *fsStore) SaveRoomSnapshot(ctx context.Context, roomID string, data []byte) error {
	filePath, err := s.safePath("rooms", roomID)
	if err != nil {
		return err
	}

	log := logrus.WithFields(logrus.Fields{
		"room_id":   roomID,
		"file_path": filePath,
	})
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write room snapshot")
		return err
	}
	log.Info("Room snapshot saved")
	return nil
}

func (s *fsStore) GetRoomSnapshot(ctx context.Context, roomID string) ([]byte, error) {
	filePath, err := s.safePath("rooms", roomID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrRoomNotFound
		}
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to read room snapshot")
		return nil, err
	}
	return data, nil
}
