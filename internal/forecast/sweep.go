package forecast

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultRetentionDays is the default max age of a servable artifact.
const DefaultRetentionDays = 14

// SweeperConfig holds the optional collaborators of a Sweeper.
type SweeperConfig struct {
	MaxAge   time.Duration
	Clock    Clock
	Logger   *zap.Logger
	Observer Observer
}

// Sweeper deletes servable artifacts older than a max age.
type Sweeper struct {
	store    Store
	maxAge   time.Duration
	clock    Clock
	log      *zap.Logger
	observer Observer
}

// NewSweeper creates a new Sweeper.
func NewSweeper(store Store, cfg SweeperConfig) *Sweeper {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultRetentionDays * 24 * time.Hour
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	return &Sweeper{
		store:    store,
		maxAge:   cfg.MaxAge,
		clock:    cfg.Clock,
		log:      cfg.Logger.Named("sweeper"),
		observer: cfg.Observer,
	}
}

// Sweep runs one retention pass and reports how many artifacts were deleted
// and how many remain.
func (s *Sweeper) Sweep() (SweepReport, error) {
	var report SweepReport

	deleted, deleteErr := s.store.DeleteOlderThan(s.clock.Now(), s.maxAge)
	report.Deleted = len(deleted)
	for _, st := range deleted {
		s.log.Debug("deleted expired snapshot", zap.Stringer("stamp", st))
	}

	remaining, err := s.store.ListServable()
	if err != nil {
		// Deletions that went through are still accounted for.
		s.observer.SweepCompleted(SweepReport{Deleted: report.Deleted, Remaining: -1})
		return report, fmt.Errorf("count servable: %w", errors.Join(err, deleteErr))
	}
	report.Remaining = len(remaining)
	s.observer.SweepCompleted(report)

	if deleteErr != nil {
		s.log.Warn("retention sweep partially failed",
			zap.Int("deleted", report.Deleted),
			zap.Int("remaining", report.Remaining),
			zap.Error(deleteErr))
		return report, fmt.Errorf("retention sweep: %w", deleteErr)
	}
	s.log.Info("retention sweep finished",
		zap.Int("deleted", report.Deleted),
		zap.Int("remaining", report.Remaining),
		zap.Duration("maxAge", s.maxAge))
	return report, nil
}
