package sqlite

import (
	"context"
	"database/sql"
	"log"
	"mountains-server/core"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	assetTableStmt := `
	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		data BLOB,
		updated_at DATETIME
	);`
	if _, err = db.Exec(assetTableStmt); err != nil {
		log.Fatalf("failed to create assets table: %v", err)
	}

	snapshotTableStmt := `
	CREATE TABLE IF NOT EXISTS room_snapshots (
		room_id TEXT PRIMARY KEY,
		data BLOB,
		updated_at DATETIME
	);`
	if _, err = db.Exec(snapshotTableStmt); err != nil {
		log.Fatalf("failed to create room_snapshots table: %v", err)
	}

	return &sqliteStore{db}
}

func (s *sqliteStore) PutAsset(ctx context.Context, id string, data []byte) error {
	log := logrus.WithFields(logrus.Fields{
		"asset_id":    id,
		"data_length": len(data),
	})

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assets (id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		id, data, time.Now())
	if err != nil {
		log.WithError(err).Error("Failed to store asset")
		return err
	}
	log.Info("Asset stored")
	return nil
}

func (s *sqliteStore) GetAsset(ctx context.Context, id string) ([]byte, error) {
	log := logrus.WithField("asset_id", id)

	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM assets WHERE id = ?", id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Warn("Asset with specified ID not found")
			return nil, core.ErrAssetNotFound
		}
		log.WithError(err).Error("Failed to retrieve asset")
		return nil, err
	}
	return data, nil
}

func (s *sqliteStore) SaveRoomSnapshot(ctx context.Context, roomID string, data []byte) error {
	log := logrus.WithFields(logrus.Fields{
		"room_id":     roomID,
		"data_length": len(data),
	})

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO room_snapshots (room_id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(room_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		roomID, data, time.Now())
	if err != nil {
		log.WithError(err).Error("Failed to save room snapshot")
		return err
	}
	log.Info("Room snapshot saved")
	return nil
}

func (s *sqliteStore) GetRoomSnapshot(ctx context.Context, roomID string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM room_snapshots WHERE room_id = ?", roomID).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrRoomNotFound
		}
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to retrieve room snapshot")
		return nil, err
	}
	return data, nil
}
