package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/allballa/dental-scheduler/pkg/logging"
)

var bookingTracer = otel.Tracer("scheduler.internal.store.slots")

// Sentinel errors for booking outcomes callers branch on.
var (
	ErrPatientNotFound = errors.New("store: patient not found")
	ErrSlotNotFound    = errors.New("store: slot not found")
	ErrSlotUnavailable = errors.New("store: slot no longer available")
)

// Store provides patient and appointment persistence on Postgres.
type Store struct {
	db      DB
	logger  *logging.Logger
	retries int
	delay   time.Duration
}

// New initializes a store backed by the given pool.
func New(db DB, logger *logging.Logger, retries int, delay time.Duration) *Store {
	if db == nil {
		panic("store: db required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if retries < 1 {
		retries = 1
	}
	return &Store{db: db, logger: logger, retries: retries, delay: delay}
}

const slotColumns = `id, to_char(slot_date, 'YYYY-MM-DD'), to_char(start_time, 'HH24:MI:SS'), to_char(end_time, 'HH24:MI:SS'), status`

// GetPatientByID fetches a patient row.
func (s *Store) GetPatientByID(ctx context.Context, id int64) (*Patient, error) {
	query := `
		SELECT id, name, phone, COALESCE(pending_action, ''), COALESCE(medical_history, ''), COALESCE(comments, '')
		FROM patients
		WHERE id = $1
	`
	var p Patient
	if err := s.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Phone,
		&p.Action,
		&p.MedicalHistory,
		&p.Comments,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("store: select patient: %w", err)
	}
	return &p, nil
}

// AvailableSlots lists open slots ordered by date and start time.
func (s *Store) AvailableSlots(ctx context.Context) ([]Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM doctor_slots
		WHERE status = 'Available'
		ORDER BY slot_date, start_time
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: select slots: %w", err)
	}
	defer rows.Close()

	var slots []Slot
	for rows.Next() {
		var slot Slot
		if err := rows.Scan(&slot.ID, &slot.Date, &slot.StartTime, &slot.EndTime, &slot.Status); err != nil {
			return nil, fmt.Errorf("store: scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate slots: %w", err)
	}
	return slots, nil
}

// BookSlot books one slot inside a single transaction. The slot is
// re-read and the appointment re-counted before commit; any failure
// rolls the whole transaction back, so the slot flips to Booked if
// and only if exactly one Confirmed appointment row exists for it.
func (s *Store) BookSlot(ctx context.Context, req BookingRequest) error {
	ctx, span := bookingTracer.Start(ctx, "store.slot.book")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("scheduler.slot_id", req.SlotID),
		attribute.Int64("scheduler.patient_id", req.PatientID),
	)

	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM doctor_slots WHERE id = $1`, req.SlotID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSlotNotFound
	}
	if err != nil {
		return fmt.Errorf("store: read slot: %w", err)
	}
	if status != SlotAvailable {
		return ErrSlotUnavailable
	}

	tag, err := tx.Exec(ctx,
		`UPDATE doctor_slots SET status = 'Booked' WHERE id = $1 AND status = 'Available'`,
		req.SlotID)
	if err != nil {
		return fmt.Errorf("store: update slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Lost the race to a concurrent booking.
		return ErrSlotUnavailable
	}

	tag, err = tx.Exec(ctx,
		`INSERT INTO doctor_appointments (doctor_id, slot_id, patient_id, status, created_at)
		 VALUES ($1, $2, $3, 'Confirmed', now())`,
		req.DoctorID, req.SlotID, req.PatientID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSlotUnavailable
		}
		return fmt.Errorf("store: insert appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: insert appointment: no row written")
	}

	var verifyStatus string
	if err := tx.QueryRow(ctx, `SELECT status FROM doctor_slots WHERE id = $1`, req.SlotID).Scan(&verifyStatus); err != nil {
		return fmt.Errorf("store: verify slot: %w", err)
	}
	var count int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM doctor_appointments WHERE slot_id = $1 AND status = 'Confirmed'`,
		req.SlotID).Scan(&count); err != nil {
		return fmt.Errorf("store: verify appointment: %w", err)
	}
	if verifyStatus != SlotBooked || count != 1 {
		return fmt.Errorf("store: booking verification failed: slot %q appointments %d", verifyStatus, count)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit booking: %w", err)
	}

	s.logger.Info("slot booked",
		"slot_id", req.SlotID,
		"patient_id", req.PatientID,
		"doctor_id", req.DoctorID)
	return nil
}

// AppointmentBySlot fetches the appointment covering a slot, if any.
func (s *Store) AppointmentBySlot(ctx context.Context, slotID int64) (*Appointment, error) {
	query := `
		SELECT id, doctor_id, slot_id, patient_id, status, created_at
		FROM doctor_appointments
		WHERE slot_id = $1
	`
	var a Appointment
	if err := s.db.QueryRow(ctx, query, slotID).Scan(
		&a.ID,
		&a.DoctorID,
		&a.SlotID,
		&a.PatientID,
		&a.Status,
		&a.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: select appointment: %w", err)
	}
	return &a, nil
}

// AppointmentsForPatient lists a patient's appointments, newest first.
func (s *Store) AppointmentsForPatient(ctx context.Context, patientID int64) ([]Appointment, error) {
	query := `
		SELECT id, doctor_id, slot_id, patient_id, status, created_at
		FROM doctor_appointments
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("store: select appointments: %w", err)
	}
	defer rows.Close()

	var appts []Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.DoctorID, &a.SlotID, &a.PatientID, &a.Status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan appointment: %w", err)
		}
		appts = append(appts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate appointments: %w", err)
	}
	return appts, nil
}
