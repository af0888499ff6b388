// Package engine persists analytics artifacts to Postgres: frozen snapshot
// documents and scored sentiment readings.
package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "pfolio-api/internal/cache"
	"pfolio-api/internal/model"
	"pfolio-api/pkg/sentiment"
	"pfolio-api/pkg/snapshot"
)

var _ snapshot.Persistence = (*Service)(nil)

// Service wires the Postgres collaborators behind the snapshot store and the
// sentiment engine.
type Service struct {
	sqlConn        sqlx.SqlConn
	snapshotsModel model.SnapshotsModel
	sentimentModel model.SentimentCacheModel
	ttl            cachekeys.TTLSet
	now            func() time.Time
}

// Config enumerates dependencies needed to persist analytics artifacts.
type Config struct {
	SQLConn        sqlx.SqlConn
	SnapshotsModel model.SnapshotsModel
	SentimentModel model.SentimentCacheModel
	TTL            cachekeys.TTLSet
}

// NewService returns a concrete persistence service when a database
// connection is present, nil otherwise. Callers treat a nil service as a
// disabled sink.
func NewService(cfg Config) *Service {
	if cfg.SQLConn == nil {
		return nil
	}
	return &Service{
		sqlConn:        cfg.SQLConn,
		snapshotsModel: cfg.SnapshotsModel,
		sentimentModel: cfg.SentimentModel,
		ttl:            cfg.TTL,
		now:            time.Now,
	}
}

// SaveSnapshot stores an encoded snapshot document. Snapshots are immutable,
// so a duplicate id is a no-op.
func (s *Service) SaveSnapshot(ctx context.Context, id string, doc []byte) error {
	if s == nil || s.snapshotsModel == nil {
		return nil
	}
	row := &model.Snapshots{
		Id:        id,
		Doc:       doc,
		CreatedAt: s.now().UTC(),
	}
	if snap, err := snapshot.Decode(doc); err == nil && snap.BaseID != "" {
		row.BaseId = sql.NullString{String: snap.BaseID, Valid: true}
	}
	return s.snapshotsModel.Insert(ctx, row)
}

// RestoreSnapshots rehydrates persisted snapshots into the in-memory store.
// Undecodable rows are skipped with a log line so one bad document cannot
// block startup.
func (s *Service) RestoreSnapshots(ctx context.Context, store *snapshot.Store) error {
	if s == nil || s.snapshotsModel == nil || store == nil {
		return nil
	}
	ids, err := s.snapshotsModel.ListIds(ctx)
	if err != nil {
		return err
	}
	restored := 0
	for _, id := range ids {
		row, err := s.snapshotsModel.FindOne(ctx, id)
		if err != nil {
			if err == model.ErrNotFound {
				continue
			}
			return err
		}
		snap, err := snapshot.Decode(row.Doc)
		if err != nil {
			logx.WithContext(ctx).Errorf("enginepersist: decode snapshot %s: %v", id, err)
			continue
		}
		store.Restore(snap)
		restored++
	}
	if restored > 0 {
		logx.WithContext(ctx).Infof("enginepersist: restored %d snapshots", restored)
	}
	return nil
}

// RecordSentiment mirrors a freshly scored reading to Postgres. Cached
// results are skipped so a hit does not rewrite the row it came from.
func (s *Service) RecordSentiment(ctx context.Context, res *sentiment.Result) error {
	if s == nil || s.sentimentModel == nil || res == nil || res.Cached {
		return nil
	}
	key := cachekeys.SentimentKey(res.Ticker, res.WindowDays, res.AsOf)
	row := &model.SentimentCache{
		Key:        key,
		Ticker:     res.Ticker,
		WindowDays: int64(res.WindowDays),
		Score:      res.Score,
		Confidence: res.Confidence,
		Articles:   int64(res.Articles),
		AsOf:       res.AsOf.UTC(),
		ExpiresAt:  s.now().UTC().Add(cachekeys.SentimentTTL(s.ttl)),
	}
	return s.sentimentModel.Upsert(ctx, row)
}

// LoadSentiment returns a previously persisted reading for the ticker and
// window on the given day, if one is still live.
func (s *Service) LoadSentiment(ctx context.Context, ticker string, windowDays int, day time.Time) (*sentiment.Result, bool) {
	if s == nil || s.sentimentModel == nil {
		return nil, false
	}
	key := cachekeys.SentimentKey(ticker, windowDays, day)
	row, err := s.sentimentModel.FindOne(ctx, key)
	if err != nil {
		if err != model.ErrNotFound {
			logx.WithContext(ctx).Errorf("enginepersist: load sentiment key=%s err=%v", key, err)
		}
		return nil, false
	}
	return &sentiment.Result{
		Ticker:     row.Ticker,
		WindowDays: int(row.WindowDays),
		Score:      row.Score,
		Confidence: row.Confidence,
		Articles:   int(row.Articles),
		AsOf:       row.AsOf,
		Cached:     true,
	}, true
}

// PurgeExpiredSentiment drops stale rows. Intended for a periodic job.
func (s *Service) PurgeExpiredSentiment(ctx context.Context) (int64, error) {
	if s == nil || s.sentimentModel == nil {
		return 0, nil
	}
	return s.sentimentModel.Purge(ctx, s.now().UTC())
}
