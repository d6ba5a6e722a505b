package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/bug-snapshot-service/internal/domain"
	"github.com/spec-kit/bug-snapshot-service/internal/events"
	"github.com/spec-kit/bug-snapshot-service/internal/observability"
	"github.com/spec-kit/bug-snapshot-service/internal/persistence"
	"github.com/spec-kit/bug-snapshot-service/internal/repository"
	"github.com/spec-kit/bug-snapshot-service/internal/snapshot"
)

// ChangeMatch is the serializable form of a rollback-boundary predicate:
// the first history change matching every non-empty field marks the
// boundary. The zero value targets creation time.
type ChangeMatch struct {
	FieldName string `json:"field_name"`
	Added     string `json:"added,omitempty"`
	Removed   string `json:"removed,omitempty"`
}

// IsZero reports whether the match targets creation time.
func (m ChangeMatch) IsZero() bool {
	return m.FieldName == "" && m.Added == "" && m.Removed == ""
}

// Predicate compiles the match for the rollback engine.
func (m ChangeMatch) Predicate() snapshot.Predicate {
	if m.IsZero() {
		return nil
	}
	return func(change domain.Change) bool {
		if m.FieldName != "" && change.FieldName != m.FieldName {
			return false
		}
		if m.Added != "" && change.Added != m.Added {
			return false
		}
		if m.Removed != "" && change.Removed != m.Removed {
			return false
		}
		return true
	}
}

func (m ChangeMatch) cacheKey() string {
	if m.IsZero() {
		return "creation"
	}
	return fmt.Sprintf("%s|%s|%s", m.FieldName, m.Added, m.Removed)
}

// SnapshotResult bundles a rolled-back record with the diagnostics its
// lenient replay produced.
type SnapshotResult struct {
	Bug         *domain.BugRecord
	Diagnostics []snapshot.Diagnostic
	FromCache   bool
}

// SnapshotService coordinates the corpus store, the rollback engine and
// the snapshot cache.
type SnapshotService struct {
	bugs       repository.BugRepository
	engine     *snapshot.Engine
	redis      *persistence.Redis
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cacheTTL   time.Duration
	products   []string
}

// SnapshotDependencies bundles collaborators for the snapshot service.
type SnapshotDependencies struct {
	BugRepo    repository.BugRepository
	Engine     *snapshot.Engine
	Redis      *persistence.Redis
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	CacheTTL   time.Duration
	Products   []string
}

// NewSnapshotService constructs the service.
func NewSnapshotService(deps SnapshotDependencies) *SnapshotService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotService{
		bugs:       deps.BugRepo,
		engine:     deps.Engine,
		redis:      deps.Redis,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		cacheTTL:   deps.CacheTTL,
		products:   deps.Products,
	}
}

// GetBug returns the raw corpus record.
func (s *SnapshotService) GetBug(ctx context.Context, id int64) (*domain.BugRecord, error) {
	return s.bugs.GetByID(ctx, id)
}

// Snapshot rolls the record back to the boundary the match selects.
// Lenient results are cached; strict calls always replay.
func (s *SnapshotService) Snapshot(ctx context.Context, id int64, match ChangeMatch, strict, useCache bool) (*SnapshotResult, error) {
	cacheable := !strict && useCache && s.cacheTTL > 0
	key := snapshotCacheKey(id, match)

	if cacheable {
		if cached, ok := s.cacheGet(ctx, key); ok {
			s.metrics.RecordCache(true)
			return &SnapshotResult{Bug: cached, FromCache: true}, nil
		}
		s.metrics.RecordCache(false)
	}

	bug, err := s.bugs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rolled, diags, err := s.engine.Rollback(bug.Clone(), match.Predicate(), strict)
	if err != nil {
		var inconsistency *snapshot.InconsistencyError
		if errors.As(err, &inconsistency) {
			s.metrics.RecordRollback(observability.OutcomeInconsistent)
			s.dispatchInconsistent(ctx, id, err, false)
		} else {
			s.metrics.RecordRollback(observability.OutcomeFailed)
		}
		return nil, err
	}
	s.metrics.RecordRollback(observability.OutcomeOK)

	if cacheable {
		s.cacheSet(ctx, key, rolled)
	}
	return &SnapshotResult{Bug: rolled, Diagnostics: diags}, nil
}

// ValidationReport summarizes a corpus sweep.
type ValidationReport struct {
	Checked  int
	Failures []snapshot.Failure
}

// ValidateCorpus runs the strict batch validator over the stored corpus.
// With purge set, failing records are deleted (via the purge handler) so
// they can be re-fetched upstream.
func (s *SnapshotService) ValidateCorpus(ctx context.Context, purge bool) (*ValidationReport, error) {
	var streamErr error
	checked := 0

	seq := func(yield func(*domain.BugRecord) bool) {
		for bug, err := range s.bugs.Stream(ctx, s.products) {
			if err != nil {
				streamErr = errors.Join(streamErr, err)
				continue
			}
			checked++
			if !yield(bug) {
				return
			}
		}
	}

	failures := s.engine.FindInconsistent(seq)
	if streamErr != nil {
		return nil, streamErr
	}

	for _, failure := range failures {
		s.dispatchInconsistent(ctx, failure.Bug.ID, failure.Err, purge)
	}
	s.publish(ctx, events.Event{
		Type:    events.EventCorpusValidated,
		Payload: events.CorpusValidatedPayload{Checked: checked, Failed: len(failures)},
	})

	return &ValidationReport{Checked: checked, Failures: failures}, nil
}

// Ingest upserts records into the corpus store.
func (s *SnapshotService) Ingest(ctx context.Context, bugs []*domain.BugRecord) (int, error) {
	stored := 0
	for _, bug := range bugs {
		if err := s.bugs.Upsert(ctx, bug); err != nil {
			return stored, fmt.Errorf("upsert bug %d: %w", bug.ID, err)
		}
		stored++
	}
	return stored, nil
}

// PurgeRecord deletes a record and its cached snapshots.
func (s *SnapshotService) PurgeRecord(ctx context.Context, id int64, reason string) error {
	if err := s.bugs.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateSnapshots(ctx, id)
	s.publish(ctx, events.Event{
		Type:    events.EventRecordPurged,
		BugID:   id,
		Payload: events.RecordPurgedPayload{Reason: reason},
	})
	s.logger.Info("purged record", zap.Int64("bug_id", id), zap.String("reason", reason))
	return nil
}

// RegisterHandlers subscribes the corpus-maintenance handlers. Called by
// the purge worker at startup.
func (s *SnapshotService) RegisterHandlers() {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Subscribe(events.EventRecordInconsistent, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.RecordInconsistentPayload)
		if !ok || !payload.Purge {
			return nil
		}
		return s.PurgeRecord(ctx, event.BugID, payload.Error)
	})
}

func (s *SnapshotService) dispatchInconsistent(ctx context.Context, id int64, cause error, purge bool) {
	s.publish(ctx, events.Event{
		Type:    events.EventRecordInconsistent,
		BugID:   id,
		Payload: events.RecordInconsistentPayload{Error: cause.Error(), Purge: purge},
	})
}

func (s *SnapshotService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now().UTC()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

func snapshotCacheKey(id int64, match ChangeMatch) string {
	return fmt.Sprintf("snapshot:%d:%s", id, match.cacheKey())
}

func (s *SnapshotService) cacheGet(ctx context.Context, key string) (*domain.BugRecord, bool) {
	if s.redis == nil || s.redis.Client == nil {
		return nil, false
	}
	data, err := s.redis.Client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("snapshot cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var bug domain.BugRecord
	if err := json.Unmarshal(data, &bug); err != nil {
		s.logger.Warn("snapshot cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &bug, true
}

func (s *SnapshotService) cacheSet(ctx context.Context, key string, bug *domain.BugRecord) {
	if s.redis == nil || s.redis.Client == nil {
		return
	}
	data, err := json.Marshal(bug)
	if err != nil {
		return
	}
	if err := s.redis.Client.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("snapshot cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *SnapshotService) invalidateSnapshots(ctx context.Context, id int64) {
	if s.redis == nil || s.redis.Client == nil {
		return
	}
	pattern := fmt.Sprintf("snapshot:%d:*", id)
	iter := s.redis.Client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.Client.Del(ctx, iter.Val()).Err(); err != nil {
			s.logger.Warn("snapshot cache delete failed", zap.String("key", iter.Val()), zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("snapshot cache scan failed", zap.Int64("bug_id", id), zap.Error(err))
	}
}
