// Package historian drains the session action feed into the Postgres archive and
// abandons sessions that go quiet.
package historian

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/partyrounds/internal/cache"
	"github.com/sirupsen/logrus"
)

// Source yields action records. cache.Feed implements it.
type Source interface {
	Pop(ctx context.Context, wait time.Duration) (cache.ActionRecord, bool, error)
}

// Sink persists action records. database.Archive implements it.
type Sink interface {
	WriteBatch(ctx context.Context, recs []cache.ActionRecord) error
	MarkAbandoned(ctx context.Context, lobbyID uuid.UUID) (bool, error)
}

type Config struct {
	// BatchSize is how many records are buffered before a write.
	BatchSize int
	// PollWait bounds each blocking pop. A pop that times out flushes what is buffered.
	PollWait time.Duration
	// IdleAfter is how long a session may go without actions before it is abandoned.
	IdleAfter time.Duration
	// IdleSweep is how often idle sessions are looked for.
	IdleSweep time.Duration
	// FlushAttempts bounds retries of a failed batch write before it is dropped.
	FlushAttempts uint
}

// Service moves records from a Source to a Sink. Run is its only loop, so its state
// needs no locking.
type Service struct {
	src Source
	dst Sink
	cfg Config
	log *logrus.Entry

	// Now is the service clock.
	Now func() time.Time

	batch        []cache.ActionRecord
	lastActivity map[uuid.UUID]time.Time
	lastSweep    time.Time
}

func NewService(src Source, dst Sink, cfg Config, logger *logrus.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.FlushAttempts == 0 {
		cfg.FlushAttempts = 3
	}
	return &Service{
		src:          src,
		dst:          dst,
		cfg:          cfg,
		log:          logger.WithField("component", "historian"),
		Now:          time.Now,
		batch:        make([]cache.ActionRecord, 0, cfg.BatchSize),
		lastActivity: make(map[uuid.UUID]time.Time),
	}
}

// Run drains until ctx is done, then writes whatever is still buffered.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info("historian started")
	s.lastSweep = s.Now()
	for ctx.Err() == nil {
		s.step(ctx)
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.flush(flushCtx)
	s.log.Info("historian stopped")
	return nil
}

// step performs one pop and whatever flushing or sweeping is due after it.
func (s *Service) step(ctx context.Context) {
	rec, ok, err := s.src.Pop(ctx, s.cfg.PollWait)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return
		}
		s.log.WithError(err).Warn("failed to pop action")
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
	case ok:
		s.track(rec)
		s.batch = append(s.batch, rec)
		if len(s.batch) >= s.cfg.BatchSize {
			s.flush(ctx)
		}
	default:
		s.flush(ctx)
	}

	if now := s.Now(); now.Sub(s.lastSweep) >= s.cfg.IdleSweep {
		s.lastSweep = now
		s.sweepIdle(ctx, now)
	}
}

func (s *Service) track(rec cache.ActionRecord) {
	switch rec.ActionType {
	case cache.ActionGameFinished, cache.ActionSessionClosed:
		delete(s.lastActivity, rec.LobbyID)
	default:
		s.lastActivity[rec.LobbyID] = s.Now()
	}
}

// flush writes the buffered batch, retrying with backoff. A batch that keeps failing is
// dropped so the feed keeps moving.
func (s *Service) flush(ctx context.Context) {
	if len(s.batch) == 0 {
		return
	}
	batch := s.batch
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.dst.WriteBatch(ctx, batch)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(s.cfg.FlushAttempts),
	)
	s.batch = make([]cache.ActionRecord, 0, s.cfg.BatchSize)
	if err != nil {
		s.log.WithError(err).WithField("dropped", len(batch)).Error("failed to write action batch")
		return
	}
	s.log.WithField("actions", len(batch)).Debug("flushed actions")
}

// sweepIdle abandons sessions with no activity for IdleAfter.
func (s *Service) sweepIdle(ctx context.Context, now time.Time) {
	var idle []uuid.UUID
	for id, last := range s.lastActivity {
		if now.Sub(last) > s.cfg.IdleAfter {
			idle = append(idle, id)
		}
	}
	if len(idle) == 0 {
		return
	}
	// The session row must exist before it can be abandoned.
	s.flush(ctx)
	for _, id := range idle {
		changed, err := s.dst.MarkAbandoned(ctx, id)
		if err != nil {
			s.log.WithError(err).WithField("lobby", id).Warn("failed to mark session abandoned")
			continue
		}
		delete(s.lastActivity, id)
		if changed {
			s.log.WithField("lobby", id).Info("marked session abandoned due to inactivity")
		}
	}
}
