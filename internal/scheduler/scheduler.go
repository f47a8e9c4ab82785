package scheduler

import (
	"errors"
	"strings"
	"sync"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyJobName  = errors.New("sweep name is required")
	ErrEmptyCronExpr = errors.New("cron expression is required")
	ErrNilSweeper    = errors.New("sweeper is required")
)

// Service runs the reservation sweeps on their cron cadence. It owns the
// gocron scheduler; callers build one with New, register sweeps, then Start.
type Service struct {
	scheduler gocron.Scheduler
	stopOnce  sync.Once
	stopErr   error
}

// New builds a stopped Service. A panicking sweep is logged and the cadence
// keeps running.
func New() (*Service, error) {
	sched, err := gocron.NewScheduler(
		gocron.WithGlobalJobOptions(
			gocron.WithEventListeners(
				gocron.AfterJobRunsWithPanic(func(jobID uuid.UUID, jobName string, recoverData any) {
					log.Error().
						Str("job_id", jobID.String()).
						Str("sweep", jobName).
						Interface("panic", recoverData).
						Msg("Sweep panicked")
				}),
			),
		),
	)
	if err != nil {
		return nil, err
	}
	return &Service{scheduler: sched}, nil
}

// Start begins running the registered sweeps.
func (s *Service) Start() {
	log.Info().Msg("Sweep scheduler starting")
	s.scheduler.Start()
}

// Stop shuts the scheduler down. Safe to call more than once; later calls
// return the first result.
func (s *Service) Stop() error {
	s.stopOnce.Do(func() {
		log.Info().Msg("Sweep scheduler stopping")
		s.stopErr = s.scheduler.Shutdown()
	})
	return s.stopErr
}

// addJob registers one sweep on its cron expression.
func (s *Service) addJob(name, cronExpr string, task func()) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyJobName
	}
	if strings.TrimSpace(cronExpr) == "" {
		return ErrEmptyCronExpr
	}
	jobLogger := log.With().Str("sweep", name).Str("cron", cronExpr).Logger()

	wrappedTask := func() {
		jobLogger.Debug().Msg("Sweep started")
		task()
		jobLogger.Debug().Msg("Sweep finished")
	}

	if _, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(wrappedTask),
		gocron.WithName(name),
	); err != nil {
		jobLogger.Error().Err(err).Msg("Failed to register sweep")
		return err
	}
	jobLogger.Info().Msg("Sweep registered")
	return nil
}
