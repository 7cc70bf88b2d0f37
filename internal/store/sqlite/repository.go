// Package sqlite implements the Repository port on an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"splitroom/internal/core"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) ListExpenses(ctx context.Context, roomID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, description, amount, created_at
		   FROM expenses WHERE room_id = ? ORDER BY created_at DESC, id`, roomID)
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
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, room_id, description, amount, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, roomID, e.Description, e.Amount, e.CreatedAt.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("create expense: %w", err)
	}
	return id, nil
}

func (r *Repository) UpdateExpense(ctx context.Context, roomID, id, description string, amount float64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET description = ?, amount = ? WHERE room_id = ? AND id = ?`,
		description, amount, roomID, id)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return requireRow(res)
}

func (r *Repository) DeleteExpense(ctx context.Context, roomID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE room_id = ? AND id = ?`, roomID, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return requireRow(res)
}

func (r *Repository) ListParticipants(ctx context.Context, roomID string) ([]core.Participant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, amount_paid, mode, head_count, created_at
		   FROM participants WHERE room_id = ? ORDER BY created_at DESC, id`, roomID)
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
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO participants (id, room_id, name, amount_paid, mode, head_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, roomID, p.Name, p.AmountPaid, string(p.Mode), p.Heads(), p.CreatedAt.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("create participant: %w", err)
	}
	return id, nil
}

func (r *Repository) UpdateParticipant(ctx context.Context, roomID, id, name string, amountPaid float64, mode core.PaymentMode, headCount int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE participants SET name = ?, amount_paid = ?, mode = ?, head_count = ?
		  WHERE room_id = ? AND id = ?`,
		name, amountPaid, string(mode), headCount, roomID, id)
	if err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	return requireRow(res)
}

func (r *Repository) DeleteParticipant(ctx context.Context, roomID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM participants WHERE room_id = ? AND id = ?`, roomID, id)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	return requireRow(res)
}

func (r *Repository) GetSettings(ctx context.Context, roomID string) (core.Settings, error) {
	var s core.Settings
	var mode string
	err := r.db.QueryRowContext(ctx,
		`SELECT mode, fixed_rate FROM room_settings WHERE room_id = ?`, roomID).
		Scan(&mode, &s.FixedRate)
	if errors.Is(err, sql.ErrNoRows) {
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
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO room_settings (room_id, mode, fixed_rate) VALUES (?, ?, ?)
		 ON CONFLICT (room_id) DO UPDATE SET mode = excluded.mode, fixed_rate = excluded.fixed_rate`,
		roomID, string(current.Mode), current.FixedRate)
	if err != nil {
		return fmt.Errorf("merge settings: %w", err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrUnknownRecord
	}
	return nil
}
