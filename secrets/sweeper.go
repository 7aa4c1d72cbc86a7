package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultRotationSchedule runs the sweep daily at 03:00.
const DefaultRotationSchedule = "0 3 * * *"

// Sweeper drives the periodic rotation sweep on a cron schedule. It is the
// only background task that touches the secret store; request traffic never
// waits on it. Start ties the sweeper's lifetime to the given context so
// shutdown (and tests) can stop it deterministically.
type Sweeper struct {
	manager       *Manager
	schedule      string
	perKeyTimeout time.Duration
	cron          *cron.Cron
	logger        *slog.Logger

	mu      sync.Mutex
	running bool
}

func NewSweeper(manager *Manager, schedule string, perKeyTimeout time.Duration, logger *slog.Logger) *Sweeper {
	if schedule == "" {
		schedule = DefaultRotationSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		manager:       manager,
		schedule:      schedule,
		perKeyTimeout: perKeyTimeout,
		cron:          cron.New(),
		logger:        logger.With("component", "secrets.sweeper"),
	}
}

// Start schedules the sweep and begins running it. It returns an error only
// for an invalid cron expression.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid rotation schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.manager.RunSweep(ctx, s.perKeyTimeout)
	}); err != nil {
		return fmt.Errorf("schedule rotation sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("rotation sweeper started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts scheduling and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("rotation sweeper stopped")
}

// Running reports whether the sweeper is scheduled.
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
