// Package refresh keeps a resolved schedule current.
//
// Rolling and evergreen templates resolve against "now", so a schedule
// loaded on Monday is stale by Thursday. Service rebuilds the schedule on a
// cron cadence and swaps it in whole; readers never see a half-loaded one.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"webinarsched/internal/config"
	appLog "webinarsched/internal/log"
	"webinarsched/internal/schedule"
)

// Loader returns the configuration to rebuild from. It is called on every
// refresh, so it may re-read the config file.
type Loader func() (*config.Config, error)

// Snapshot is what readers get from Current. Both values must be treated
// as read-only.
type Snapshot struct {
	Config   *config.Config
	Schedule *schedule.Schedule
	LoadedAt time.Time
}

type Service struct {
	scheduler *cron.Cron
	load      Loader
	clock     schedule.Clock

	// cronSpec and cronZone are the cadence settings the scheduler runs on.
	cronSpec string
	cronZone string

	mu      sync.RWMutex
	current Snapshot
	entry   cron.EntryID
}

// NewService builds the first schedule from cfg. It fails only when that
// first build fails; later refresh failures keep the previous snapshot.
//
// load may be nil, in which case every refresh re-resolves cfg as given.
func NewService(cfg *config.Config, load Loader, clock schedule.Clock) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("refresh: config is nil")
	}
	if clock == nil {
		clock = schedule.SystemClock{}
	}
	s := &Service{
		load:  load,
		clock: clock,
	}
	snap, err := s.build(cfg)
	if err != nil {
		return nil, err
	}
	s.current = snap

	loc := snap.Schedule.Timezone()
	s.scheduler = cron.New(cron.WithLocation(loc))
	s.cronSpec = cfg.RefreshCron
	s.cronZone = loc.String()
	return s, nil
}

// Current returns the latest good snapshot.
func (s *Service) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Reload rebuilds the schedule now. On error the current snapshot is kept.
func (s *Service) Reload() error {
	cfg := s.Current().Config
	if s.load != nil {
		next, err := s.load()
		if err != nil {
			return fmt.Errorf("reload config: %w", err)
		}
		cfg = next
	}

	snap, err := s.build(cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()

	if cfg.RefreshCron != s.cronSpec || snap.Schedule.Timezone().String() != s.cronZone {
		appLog.Warn("refresh cadence keeps its startup settings until restart",
			"refresh", s.cronSpec,
			"timezone", s.cronZone,
		)
	}
	return nil
}

// Start registers the refresh job on cfg.RefreshCron and starts the
// scheduler. The cron expression and the zone it runs in are fixed here;
// a reload that changes refresh or timezone re-resolves the schedule in
// the new zone at once, but the cadence follows the old values until
// restart. Reload logs a warning when that happens.
func (s *Service) Start() error {
	spec := s.cronSpec

	id, err := s.scheduler.AddFunc(spec, s.reloadLogged)
	if err != nil {
		return fmt.Errorf("refresh: register %q: %w", spec, err)
	}

	s.mu.Lock()
	s.entry = id
	s.mu.Unlock()

	s.scheduler.Start()
	appLog.Info("schedule refresh started", "cron", spec)
	return nil
}

// Stop stops the scheduler and waits for a running refresh to finish or
// for ctx to end.
func (s *Service) Stop(ctx context.Context) {
	done := s.scheduler.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		appLog.Warn("schedule refresh did not stop in time")
	}
}

// Next reports when the next refresh is due. It is zero before Start.
func (s *Service) Next() time.Time {
	s.mu.RLock()
	id := s.entry
	s.mu.RUnlock()
	if id == 0 {
		return time.Time{}
	}
	return s.scheduler.Entry(id).Next
}

func (s *Service) reloadLogged() {
	start := time.Now()
	if err := s.Reload(); err != nil {
		appLog.Error("schedule refresh failed; keeping previous", err)
		return
	}
	snap := s.Current()
	appLog.Debug("schedule refreshed",
		"mode", snap.Schedule.Mode().Name(),
		"days", snap.Schedule.Canonical().Len(),
		"over", snap.Schedule.IsOver(),
		"took", time.Since(start),
	)
}

func (s *Service) build(cfg *config.Config) (Snapshot, error) {
	sched, err := cfg.NewSchedule(s.clock)
	if err != nil {
		return Snapshot{}, err
	}
	if err := sched.SetSchedule(cfg.Schedule); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Config:   cfg,
		Schedule: sched,
		LoadedAt: s.clock.Now(),
	}, nil
}
