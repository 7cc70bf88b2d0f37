// Package postgres implements the Repository port on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"splitroom/internal/core"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &Repository{pool: pool}
	if err := r.bootstrap(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return r, nil
}

func (r *Repository) bootstrap(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS expenses (
			id          TEXT PRIMARY KEY,
			room_id     TEXT NOT NULL,
			description TEXT NOT NULL,
			amount      DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at  BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_expenses_room ON expenses (room_id, created_at DESC);
		CREATE TABLE IF NOT EXISTS participants (
			id          TEXT PRIMARY KEY,
			room_id     TEXT NOT NULL,
			name        TEXT NOT NULL,
			amount_paid DOUBLE PRECISION NOT NULL DEFAULT 0,
			mode        TEXT NOT NULL DEFAULT 'online',
			head_count  INTEGER NOT NULL DEFAULT 1,
			created_at  BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_participants_room ON participants (room_id, created_at DESC);
		CREATE TABLE IF NOT EXISTS room_settings (
			room_id    TEXT PRIMARY KEY,
			mode       TEXT NOT NULL DEFAULT 'auto',
			fixed_rate DOUBLE PRECISION NOT NULL DEFAULT 0
		);
	`)
	return err
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) ListExpenses(ctx context.Context, roomID string) ([]core.Expense, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, description, amount, created_at
		   FROM expenses WHERE room_id = $1 ORDER BY created_at DESC, id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var e core.Expense
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Description, &e.Amount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) CreateExpense(ctx context.Context, roomID string, e core.Expense) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO expenses (id, room_id, description, amount, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, roomID, e.Description, e.Amount, e.CreatedAt.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("create expense: %w", err)
	}
	return id, nil
}

func (r *Repository) UpdateExpense(ctx context.Context, roomID, id, description string, amount float64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE expenses SET description = $1, amount = $2 WHERE room_id = $3 AND id = $4`,
		description, amount, roomID, id)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrUnknownRecord
	}
	return nil
}

func (r *Repository) DeleteExpense(ctx context.Context, roomID, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM expenses WHERE room_id = $1 AND id = $2`, roomID, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrUnknownRecord
	}
	return nil
}

func (r *Repository) ListParticipants(ctx context.Context, roomID string) ([]core.Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, amount_paid, mode, head_count, created_at
		   FROM participants WHERE room_id = $1 ORDER BY created_at DESC, id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []core.Participant
	for rows.Next() {
		var p core.Participant
		var mode string
		var createdAt int64
		if err := rows.Scan(&p.ID, &p.Name, &p.AmountPaid, &mode, &p.HeadCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		p.Mode = core.PaymentMode(mode)
		p.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) CreateParticipant(ctx context.Context, roomID string, p core.Participant) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO participants (id, room_id, name, amount_paid, mode, head_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, roomID, p.Name, p.AmountPaid, string(p.Mode), p.Heads(), p.CreatedAt.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("create participant: %w", err)
	}
	return id, nil
}

func (r *Repository) UpdateParticipant(ctx context.Context, roomID, id, name string, amountPaid float64, mode core.PaymentMode, headCount int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE participants SET name = $1, amount_paid = $2, mode = $3, head_count = $4
		  WHERE room_id = $5 AND id = $6`,
		name, amountPaid, string(mode), headCount, roomID, id)
	if err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrUnknownRecord
	}
	return nil
}

func (r *Repository) DeleteParticipant(ctx context.Context, roomID, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM participants WHERE room_id = $1 AND id = $2`, roomID, id)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrUnknownRecord
	}
	return nil
}

func (r *Repository) GetSettings(ctx context.Context, roomID string) (core.Settings, error) {
	var s core.Settings
	var mode string
	err := r.pool.QueryRow(ctx,
		`SELECT mode, fixed_rate FROM room_settings WHERE room_id = $1`, roomID).
		Scan(&mode, &s.FixedRate)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.DefaultSettings(), nil
	}
	if err != nil {
		return core.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	s.Mode = core.SettlementMode(mode)
	return s, nil
}

func (r *Repository) MergeSettings(ctx context.Context, roomID string, patch core.SettingsPatch) error {
	current, err := r.GetSettings(ctx, roomID)
	if err != nil {
		return err
	}
	if patch.Mode != nil {
		current.Mode = *patch.Mode
	}
	if patch.FixedRate != nil {
		current.FixedRate = *patch.FixedRate
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO room_settings (room_id, mode, fixed_rate) VALUES ($1, $2, $3)
		 ON CONFLICT (room_id) DO UPDATE SET mode = excluded.mode, fixed_rate = excluded.fixed_rate`,
		roomID, string(current.Mode), current.FixedRate)
	if err != nil {
		return fmt.Errorf("merge settings: %w", err)
	}
	return nil
}
