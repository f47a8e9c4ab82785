package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclub/courtbook/internal/booking"
	"github.com/openclub/courtbook/internal/db"
	"github.com/openclub/courtbook/internal/events"
)

const (
	noShowSweepCron   = "*/5 * * * *"
	completeSweepCron = "*/15 * * * *"
	sweepTimeout      = 30 * time.Second

	// maxZoneSkew pads the SQL cutoffs. The datetime columns hold club-local
	// wall clock, so a club east of the server reaches its start time while
	// the server's wall clock still reads earlier. Candidates inside the pad
	// are re-checked against their club's zone before any transition.
	maxZoneSkew = 26 * time.Hour
)

// Sweeper drives the time-based reservation transitions: confirmed
// reservations nobody checked into become no_show, checked-in reservations
// whose end has passed become completed.
type Sweeper struct {
	store   *db.DB
	emitter events.Emitter
	grace   time.Duration
	now     func() time.Time

	locMu     sync.Mutex
	locations map[int64]*time.Location
}

func NewSweeper(store *db.DB, emitter events.Emitter, grace time.Duration) *Sweeper {
	if emitter == nil {
		emitter = events.LogEmitter{}
	}
	return &Sweeper{
		store:     store,
		emitter:   emitter,
		grace:     grace,
		now:       time.Now,
		locations: make(map[int64]*time.Location),
	}
}

// RegisterSweeps schedules both sweeps on the service.
func (s *Service) RegisterSweeps(sweeper *Sweeper) error {
	if sweeper == nil {
		return ErrNilSweeper
	}

	if err := s.addJob("noshow-sweep", noShowSweepCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := sweeper.MarkNoShows(ctx); err != nil {
			log.Error().Err(err).Msg("No-show sweep failed")
		}
	}); err != nil {
		return err
	}

	return s.addJob("complete-sweep", completeSweepCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := sweeper.CompleteFinished(ctx); err != nil {
			log.Error().Err(err).Msg("Completion sweep failed")
		}
	})
}

// MarkNoShows flips confirmed, never-checked-in reservations whose start plus
// the grace period has passed. Each transition frees the held slots, so a
// no-show court becomes bookable for the rest of its interval.
func (s *Sweeper) MarkNoShows(ctx context.Context) (int, error) {
	now := s.now()
	cutoff := now.Add(maxZoneSkew - s.grace).Format(booking.DateTimeLayout)
	candidates, err := s.store.Queries.ListNoShowCandidates(ctx, db.ListSweepCandidatesParams{CutoffAt: cutoff})
	if err != nil {
		return 0, fmt.Errorf("list no-show candidates: %w", err)
	}

	var swept int
	for _, reservation := range candidates {
		start, err := s.reservationInstant(ctx, reservation, reservation.StartTime)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).
				Int64("reservation_id", reservation.ID).
				Msg("No-show candidate skipped")
			continue
		}
		if now.Before(start.Add(s.grace)) {
			continue
		}
		err = s.store.RunInTx(ctx, func(txDB *db.DB) error {
			rows, err := txDB.Queries.MarkReservationNoShow(ctx, reservation.ID)
			if err != nil {
				return err
			}
			if rows == 0 {
				// Checked in or cancelled since we listed it.
				return nil
			}
			if err := txDB.Queries.DeleteReservationSlots(ctx, reservation.ID); err != nil {
				return err
			}
			swept++
			return nil
		})
		if err != nil {
			log.Ctx(ctx).Error().Err(err).
				Int64("reservation_id", reservation.ID).
				Msg("No-show transition failed")
			continue
		}

		s.emitter.Emit(ctx, events.New(events.KindReservationNoShow, map[string]any{
			"reservation_id": reservation.ID,
			"court_id":       reservation.CourtID,
			"date":           reservation.Date,
			"start_time":     reservation.StartTime,
		}))
	}

	if swept > 0 {
		log.Ctx(ctx).Info().Int("count", swept).Msg("No-show sweep marked reservations")
	}
	return swept, nil
}

// CompleteFinished flips confirmed, checked-in reservations whose end time
// has passed to completed and releases their slots.
func (s *Sweeper) CompleteFinished(ctx context.Context) (int, error) {
	now := s.now()
	cutoff := now.Add(maxZoneSkew).Format(booking.DateTimeLayout)
	candidates, err := s.store.Queries.ListCompletableReservations(ctx, db.ListSweepCandidatesParams{CutoffAt: cutoff})
	if err != nil {
		return 0, fmt.Errorf("list completable reservations: %w", err)
	}

	var swept int
	for _, reservation := range candidates {
		end, err := s.reservationInstant(ctx, reservation, reservation.EndTime)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).
				Int64("reservation_id", reservation.ID).
				Msg("Completion candidate skipped")
			continue
		}
		if now.Before(end) {
			continue
		}
		err = s.store.RunInTx(ctx, func(txDB *db.DB) error {
			rows, err := txDB.Queries.MarkReservationCompleted(ctx, reservation.ID)
			if err != nil {
				return err
			}
			if rows == 0 {
				return nil
			}
			if err := txDB.Queries.DeleteReservationSlots(ctx, reservation.ID); err != nil {
				return err
			}
			swept++
			return nil
		})
		if err != nil {
			log.Ctx(ctx).Error().Err(err).
				Int64("reservation_id", reservation.ID).
				Msg("Completion transition failed")
		}
	}

	if swept > 0 {
		log.Ctx(ctx).Info().Int("count", swept).Msg("Completion sweep closed reservations")
	}
	return swept, nil
}

// reservationInstant resolves a stored wall-clock field to the instant it
// names in the reservation's club zone.
func (s *Sweeper) reservationInstant(ctx context.Context, reservation db.Reservation, clock string) (time.Time, error) {
	loc, err := s.location(ctx, reservation.OrganizationID, reservation.ClubID)
	if err != nil {
		return time.Time{}, err
	}
	return time.ParseInLocation(booking.DateTimeLayout, reservation.Date+"T"+clock, loc)
}

func (s *Sweeper) location(ctx context.Context, organizationID, clubID int64) (*time.Location, error) {
	s.locMu.Lock()
	defer s.locMu.Unlock()
	if loc, ok := s.locations[clubID]; ok {
		return loc, nil
	}

	club, err := s.store.Queries.GetClub(ctx, db.GetClubParams{
		ID:             clubID,
		OrganizationID: organizationID,
	})
	if err != nil {
		return nil, fmt.Errorf("load club %d: %w", clubID, err)
	}
	loc := time.Local
	if club.Timezone != "" {
		loc, err = time.LoadLocation(club.Timezone)
		if err != nil {
			return nil, fmt.Errorf("club %d timezone %q: %w", clubID, club.Timezone, err)
		}
	}
	s.locations[clubID] = loc
	return loc, nil
}
