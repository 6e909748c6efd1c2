package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// SnapshotStore records an immutable row per successful autosave flush.
// History only; the documents table stays the source of truth.
type SnapshotStore struct{ db *sql.DB }

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) SaveDocumentSnapshot(ctx context.Context, docID, savedBy uint64, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO document_snapshots (document_id, saved_by, content)
		VALUES (?, ?, ?)`,
		docID,
		savedBy,
		content,
	)
	if err != nil {
		// Two flushes landing in the same instant can collide on the
		// (document_id, created_at) key; the history row is best effort.
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return nil
		}
		return err
	}
	return nil
}
