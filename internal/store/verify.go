package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// VerifyReport summarizes a database access self-check.
type VerifyReport struct {
	Patients     int64 `json:"patients"`
	Slots        int64 `json:"slots"`
	Appointments int64 `json:"appointments"`
	WriteAccess  bool  `json:"write_access"`
}

// Verify confirms the database is reachable, the three tables are
// readable, and a slot status can be round-tripped. The write check
// flips one available slot to Testing and back inside a transaction,
// so no visible state survives the check.
func (s *Store) Verify(ctx context.Context) (*VerifyReport, error) {
	if err := s.db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("store: verify ping: %w", err)
	}

	report := &VerifyReport{}
	counts := []struct {
		table string
		dest  *int64
	}{
		{"patients", &report.Patients},
		{"doctor_slots", &report.Slots},
		{"doctor_appointments", &report.Appointments},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM `+c.table).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("store: verify read %s: %w", c.table, err)
		}
	}

	ok, err := s.verifyWrite(ctx)
	if err != nil {
		return nil, err
	}
	report.WriteAccess = ok
	return report, nil
}

func (s *Store) verifyWrite(ctx context.Context) (bool, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var slotID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM doctor_slots WHERE status = 'Available' ORDER BY slot_date, start_time LIMIT 1 FOR UPDATE`,
	).Scan(&slotID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Nothing to round-trip; read access already proven.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: verify pick slot: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE doctor_slots SET status = 'Testing' WHERE id = $1`, slotID); err != nil {
		return false, fmt.Errorf("store: verify mark slot: %w", err)
	}

	var status string
	if err := tx.QueryRow(ctx, `SELECT status FROM doctor_slots WHERE id = $1`, slotID).Scan(&status); err != nil {
		return false, fmt.Errorf("store: verify reread slot: %w", err)
	}
	if status != SlotTesting {
		return false, fmt.Errorf("store: verify round-trip: got status %q", status)
	}

	if _, err := tx.Exec(ctx, `UPDATE doctor_slots SET status = 'Available' WHERE id = $1`, slotID); err != nil {
		return false, fmt.Errorf("store: verify restore slot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("store: verify commit: %w", err)
	}
	return true, nil
}
