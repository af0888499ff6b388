package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ SnapshotsModel = (*defaultSnapshotsModel)(nil)

type (
	// SnapshotsModel persists frozen market snapshot documents.
	SnapshotsModel interface {
		Insert(ctx context.Context, data *Snapshots) error
		FindOne(ctx context.Context, id string) (*Snapshots, error)
		ListIds(ctx context.Context) ([]string, error)
		Delete(ctx context.Context, id string) error
	}

	defaultSnapshotsModel struct {
		conn sqlx.SqlConn
	}

	// Snapshots mirrors the snapshots table. Doc holds the msgpack-encoded
	// snapshot document.
	Snapshots struct {
		Id        string         `db:"id"`
		BaseId    sql.NullString `db:"base_id"`
		Doc       []byte         `db:"doc"`
		CreatedAt time.Time      `db:"created_at"`
	}
)

// NewSnapshotsModel returns a model for the snapshots table.
func NewSnapshotsModel(conn sqlx.SqlConn) SnapshotsModel {
	return &defaultSnapshotsModel{conn: conn}
}

func (m *defaultSnapshotsModel) Insert(ctx context.Context, data *Snapshots) error {
	query := `INSERT INTO public.snapshots (id, base_id, doc, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO NOTHING`
	createdAt := data.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := m.conn.ExecCtx(ctx, query, data.Id, data.BaseId, data.Doc, createdAt)
	return err
}

func (m *defaultSnapshotsModel) FindOne(ctx context.Context, id string) (*Snapshots, error) {
	query := `SELECT id, base_id, doc, created_at FROM public.snapshots WHERE id = $1 LIMIT 1`
	var resp Snapshots
	err := m.conn.QueryRowCtx(ctx, &resp, query, id)
	switch {
	case err == nil:
		return &resp, nil
	case errors.Is(err, sqlx.ErrNotFound):
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (m *defaultSnapshotsModel) ListIds(ctx context.Context) ([]string, error) {
	query := `SELECT id FROM public.snapshots ORDER BY id`
	var ids []string
	if err := m.conn.QueryRowsCtx(ctx, &ids, query); err != nil {
		return nil, err
	}
	return ids, nil
}

func (m *defaultSnapshotsModel) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM public.snapshots WHERE id = $1`
	_, err := m.conn.ExecCtx(ctx, query, id)
	return err
}
