package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
)

// defaultQuarantineListLimit caps List when no limit is given.
const defaultQuarantineListLimit = 100

// quarantineRepo implements QuarantineRepository.
type quarantineRepo struct {
	db *DB
}

// NewQuarantineRepository creates a new QuarantineRepository.
func NewQuarantineRepository(db *DB) QuarantineRepository {
	return &quarantineRepo{db: db}
}

// Create inserts a quarantined call, assigning its id and creation time.
func (r *quarantineRepo) Create(ctx context.Context, q *models.QuarantinedCall) error {
	q.ID = uuid.NewString()
	q.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, r.db.rebind(
		`INSERT INTO quarantined_calls (id, location_id, kind, reason, step,
		 calling_number, called_number, start_time, duration, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		q.ID, q.LocationID, string(q.Kind), q.Reason, q.Step,
		q.CallingNumber, q.CalledNumber, q.StartTime.UTC(), q.Duration, q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting quarantined call: %w", err)
	}
	return nil
}

// List returns a page of quarantined calls, newest first.
func (r *quarantineRepo) List(ctx context.Context, limit, offset int) ([]models.QuarantinedCall, error) {
	if limit <= 0 {
		limit = defaultQuarantineListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return queryAll(ctx, r.db, "quarantined calls",
		`SELECT id, location_id, kind, reason, step, calling_number, called_number,
		 start_time, duration, created_at
		 FROM quarantined_calls ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		func(s scanner) (models.QuarantinedCall, error) {
			var (
				q    models.QuarantinedCall
				kind string
			)
			err := s.Scan(&q.ID, &q.LocationID, &kind, &q.Reason, &q.Step, &q.CallingNumber,
				&q.CalledNumber, &q.StartTime, &q.Duration, &q.CreatedAt)
			q.Kind = models.QuarantineKind(kind)
			return q, err
		}, limit, offset)
}

// CountByKind returns the number of stored quarantined calls per kind.
func (r *quarantineRepo) CountByKind(ctx context.Context) (map[models.QuarantineKind]int64, error) {
	type count struct {
		kind string
		n    int64
	}
	rows, err := queryAll(ctx, r.db, "quarantine counts",
		`SELECT kind, COUNT(*) FROM quarantined_calls GROUP BY kind`,
		func(s scanner) (count, error) {
			var c count
			err := s.Scan(&c.kind, &c.n)
			return c, err
		})
	if err != nil {
		return nil, err
	}

	out := make(map[models.QuarantineKind]int64, len(rows))
	for _, c := range rows {
		out[models.QuarantineKind(c.kind)] = c.n
	}
	return out, nil
}
