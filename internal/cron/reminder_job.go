package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	"github.com/carewellhq/carewell-backend/pkg/logger"
	"github.com/carewellhq/carewell-backend/pkg/outbox"
	"github.com/carewellhq/carewell-backend/pkg/outbox/payloads"
)

const defaultReminderLeadTime = 24 * time.Hour

type appointmentReader interface {
	ListScheduledBetween(ctx context.Context, from, to time.Time) ([]models.Appointment, error)
}

// ReminderJobParams configure the appointment reminder scanner.
type ReminderJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Appointments appointmentReader
	Outbox       outboxEmitter
	LeadTime     time.Duration
}

// NewReminderJob builds the cron job that queues reminders for appointments
// starting within the lead time.
func NewReminderJob(params ReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Appointments == nil {
		return nil, fmt.Errorf("appointments reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	leadTime := params.LeadTime
	if leadTime <= 0 {
		leadTime = defaultReminderLeadTime
	}
	return &reminderJob{
		logg:         params.Logger,
		db:           params.DB,
		appointments: params.Appointments,
		outbox:       params.Outbox,
		leadTime:     leadTime,
		now:          time.Now,
	}, nil
}

type reminderJob struct {
	logg         *logger.Logger
	db           txRunner
	appointments appointmentReader
	outbox       outboxEmitter
	leadTime     time.Duration
	now          func() time.Time
}

func (j *reminderJob) Name() string { return "appointment-reminders" }

func (j *reminderJob) Run(ctx context.Context) error {
	from := j.now().UTC()
	to := from.Add(j.leadTime)
	rows, err := j.appointments.ListScheduledBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("query upcoming appointments: %w", err)
	}

	var errs []error
	count := 0
	for _, row := range rows {
		if err := j.emitReminder(ctx, row); err != nil {
			errs = append(errs, fmt.Errorf("emit reminder for %s: %w", row.ID, err))
			continue
		}
		count++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "reminder scan complete")
	return multierr.Combine(errs...)
}

func (j *reminderJob) emitReminder(ctx context.Context, appointment models.Appointment) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		event := outbox.DomainEvent{
			EventType:     enums.EventAppointmentReminderDue,
			AggregateType: enums.AggregateAppointment,
			AggregateID:   appointment.ID,
			Version:       1,
			OccurredAt:    j.now().UTC(),
			Data: payloads.AppointmentReminderDueEvent{
				AppointmentID: appointment.ID,
				PatientID:     appointment.PatientID,
				DoctorID:      appointment.DoctorID,
				ScheduledAt:   appointment.ScheduledAt,
			},
		}
		return j.outbox.EmitIfNotExists(ctx, tx, event)
	})
}
