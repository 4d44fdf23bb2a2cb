package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quantfabric/analystd/internal/core"
)

// SnapshotStore provides idempotent chunk persistence.
type SnapshotStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSnapshotStore creates a SnapshotStore.
func NewSnapshotStore(db *gorm.DB, logger *zap.Logger) *SnapshotStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotStore{db: db, logger: logger}
}

// Upsert persists a chunk, reporting whether a new row was inserted.
//
// Safe to call arbitrarily many times with the same chunk: a conflict
// on (date, source_id) is a no-op and returns inserted=false, which is
// what makes pipeline restarts safe. A storage error is returned as-is;
// the caller treats it as fatal rather than retrying, because upstream
// side effects (marking mail read) are not idempotent.
func (s *SnapshotStore) Upsert(ctx context.Context, chunk core.Chunk) (bool, error) {
	row := Snapshot{
		SourceID:   chunk.SourceID,
		Date:       chunk.Date,
		ChunkHash:  chunk.ContentHash,
		Sender:     chunk.Sender,
		Subject:    chunk.Subject,
		Content:    chunk.Content,
		IngestedAt: chunk.IngestedAt,
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_id"}, {Name: "date"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return false, fmt.Errorf("upserting snapshot %s: %w", chunk.SourceID, result.Error)
	}

	inserted := result.RowsAffected > 0
	if !inserted {
		s.logger.Debug("snapshot already present, skipping",
			zap.String("source_id", chunk.SourceID),
		)
	}
	return inserted, nil
}

// Count returns the number of stored snapshots.
func (s *SnapshotStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Snapshot{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting snapshots: %w", err)
	}
	return n, nil
}
