// Package reminder sends appointment reminders and trial notices on every
// tick of the scheduler.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pacigest/pacigest/internal/platform/notification"
	"github.com/pacigest/pacigest/internal/platform/scheduler"
)

type Mailer interface {
	SendTemplate(ctx context.Context, templateID, to string, data map[string]string) error
}

type Config struct {
	// Window is the tolerance around each reminder lead time. It should be
	// larger than the tick interval so no appointment falls between ticks.
	Window       time.Duration
	TrialWarning time.Duration
}

// Service is the reminder job. Every send is followed by marking the
// candidate, so a failed send is retried on the next tick.
type Service struct {
	store  Store
	mailer Mailer
	clock  scheduler.Clock
	cfg    Config
	logger zerolog.Logger
}

func NewService(store Store, mailer Mailer, clock scheduler.Clock, cfg Config, logger zerolog.Logger) *Service {
	if clock == nil {
		clock = scheduler.SystemClock{}
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.TrialWarning <= 0 {
		cfg.TrialWarning = 72 * time.Hour
	}
	return &Service{
		store:  store,
		mailer: mailer,
		clock:  clock,
		cfg:    cfg,
		logger: logger.With().Str("component", "reminder").Logger(),
	}
}

func (s *Service) Name() string { return "reminders" }

// Run implements scheduler.Job.
func (s *Service) Run(ctx context.Context) error {
	report, err := s.Tick(ctx)
	if err != nil {
		return err
	}
	if n := len(report.Failures); n > 0 {
		return fmt.Errorf("%d of %d reminder candidates failed", n, n+report.Sent())
	}
	return nil
}

// Tick runs every stage once. Candidate failures are collected in the
// report; the returned error covers stages whose candidates could not be
// loaded at all.
func (s *Service) Tick(ctx context.Context) (*TickReport, error) {
	now := s.clock.Now().UTC()
	report := &TickReport{At: now}

	var errs []error
	for _, kind := range []Kind{Kind24h, Kind2h} {
		if err := s.appointments(ctx, kind, now, report); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.expiredTrials(ctx, now, report); err != nil {
		errs = append(errs, err)
	}
	if err := s.endingTrials(ctx, now, report); err != nil {
		errs = append(errs, err)
	}

	s.logger.Info().
		Int("reminders_24h", report.Reminders24h).
		Int("reminders_2h", report.Reminders2h).
		Int("trials_expired", report.TrialsExpired).
		Int("trial_reminders", report.TrialReminders).
		Int("skipped", report.Skipped).
		Int("failures", len(report.Failures)).
		Msg("reminder tick finished")
	return report, errors.Join(errs...)
}

func (s *Service) appointments(ctx context.Context, kind Kind, now time.Time, report *TickReport) error {
	target := now.Add(kind.Lead())
	due, err := s.store.DueAppointments(ctx, kind, target.Add(-s.cfg.Window), target.Add(s.cfg.Window))
	if err != nil {
		return err
	}

	template := notification.TemplateAppointmentReminder24h
	if kind == Kind2h {
		template = notification.TemplateAppointmentReminder2h
	}
	stage := "appointment-" + string(kind)

	for _, d := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.PatientEmail == nil || *d.PatientEmail == "" {
			report.Skipped++
			continue
		}
		start := d.StartTime.UTC()
		data := map[string]string{
			"patient_name": d.PatientName,
			"doctor_name":  d.DoctorName,
			"type":         d.Type,
			"date":         start.Format("Monday, 2 January 2006"),
			"time":         start.Format("15:04") + " UTC",
		}
		if err := s.mailer.SendTemplate(ctx, template, *d.PatientEmail, data); err != nil {
			s.recordFailure(report, stage, d.AppointmentID, err)
			continue
		}
		if err := s.store.MarkAppointment(ctx, d.AppointmentID, kind, now); err != nil {
			s.recordFailure(report, stage, d.AppointmentID, err)
			continue
		}
		if kind == Kind2h {
			report.Reminders2h++
		} else {
			report.Reminders24h++
		}
	}
	return nil
}

func (s *Service) expiredTrials(ctx context.Context, now time.Time, report *TickReport) error {
	accounts, err := s.store.ExpiredTrials(ctx, now)
	if err != nil {
		return err
	}
	for _, a := range accounts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		data := map[string]string{"name": a.Name, "trial_ends": a.TrialEndsAt.UTC().Format("2 January 2006")}
		if err := s.mailer.SendTemplate(ctx, notification.TemplateTrialExpired, a.Email, data); err != nil {
			s.recordFailure(report, "trial-expired", a.UserID, err)
			continue
		}
		if err := s.store.MarkTrialExpired(ctx, a.UserID, now); err != nil {
			s.recordFailure(report, "trial-expired", a.UserID, err)
			continue
		}
		report.TrialsExpired++
	}
	return nil
}

func (s *Service) endingTrials(ctx context.Context, now time.Time, report *TickReport) error {
	accounts, err := s.store.EndingTrials(ctx, now, now.Add(s.cfg.TrialWarning))
	if err != nil {
		return err
	}
	for _, a := range accounts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		data := map[string]string{"name": a.Name, "trial_ends": a.TrialEndsAt.UTC().Format("2 January 2006")}
		if err := s.mailer.SendTemplate(ctx, notification.TemplateTrialReminder, a.Email, data); err != nil {
			s.recordFailure(report, "trial-reminder", a.UserID, err)
			continue
		}
		if err := s.store.MarkTrialReminded(ctx, a.UserID, now); err != nil {
			s.recordFailure(report, "trial-reminder", a.UserID, err)
			continue
		}
		report.TrialReminders++
	}
	return nil
}

func (s *Service) recordFailure(report *TickReport, stage string, id uuid.UUID, err error) {
	report.fail(stage, id, err)
	s.logger.Warn().Err(err).Str("stage", stage).Str("id", id.String()).Msg("reminder candidate failed")
}
