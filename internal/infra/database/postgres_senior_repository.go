package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"estirar/internal/domain/senior"
)

const seniorColumns = `id, phone_number, language, active, created_at, updated_at`

type PostgresSeniorRepository struct {
	db *sql.DB
}

func NewPostgresSeniorRepository(db *sql.DB) *PostgresSeniorRepository {
	return &PostgresSeniorRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSenior(row rowScanner) (*senior.Senior, error) {
	s := &senior.Senior{}
	var lang string
	if err := row.Scan(&s.ID, &s.PhoneNumber, &lang, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Language = senior.Language(lang)
	return s, nil
}

func (r *PostgresSeniorRepository) Upsert(ctx context.Context, s *senior.Senior) error {
	query := `INSERT INTO seniors (phone_number, language, active)
               VALUES ($1, $2, $3)
               ON CONFLICT (phone_number)
               DO UPDATE SET language = EXCLUDED.language, active = EXCLUDED.active, updated_at = NOW()
               RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, s.PhoneNumber, s.Language, s.IsActive).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error upserting senior: %w", err)
	}
	return nil
}

func (r *PostgresSeniorRepository) GetByID(ctx context.Context, id int64) (*senior.Senior, error) {
	query := `SELECT ` + seniorColumns + ` FROM seniors WHERE id = $1`
	s, err := scanSenior(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, senior.ErrSeniorNotFound
		}
		return nil, fmt.Errorf("error getting senior by ID: %w", err)
	}
	return s, nil
}

func (r *PostgresSeniorRepository) GetByPhone(ctx context.Context, phone string) (*senior.Senior, error) {
	query := `SELECT ` + seniorColumns + ` FROM seniors WHERE phone_number = $1`
	s, err := scanSenior(r.db.QueryRowContext(ctx, query, senior.NormalizePhone(phone)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, senior.ErrSeniorNotFound
		}
		return nil, fmt.Errorf("error getting senior by phone: %w", err)
	}
	return s, nil
}

func (r *PostgresSeniorRepository) Update(ctx context.Context, s *senior.Senior) error {
	query := `UPDATE seniors
               SET language = $1, active = $2, updated_at = NOW()
               WHERE id = $3
               RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, s.Language, s.IsActive, s.ID).Scan(&s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return senior.ErrSeniorNotFound
		}
		return fmt.Errorf("error updating senior: %w", err)
	}
	return nil
}

func (r *PostgresSeniorRepository) ListActive(ctx context.Context) ([]*senior.Senior, error) {
	return r.list(ctx, `SELECT `+seniorColumns+` FROM seniors WHERE active = TRUE ORDER BY id`)
}

func (r *PostgresSeniorRepository) ListAll(ctx context.Context) ([]*senior.Senior, error) {
	return r.list(ctx, `SELECT `+seniorColumns+` FROM seniors ORDER BY id`)
}

func (r *PostgresSeniorRepository) list(ctx context.Context, query string) ([]*senior.Senior, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing seniors: %w", err)
	}
	defer rows.Close()

	seniors := make([]*senior.Senior, 0)
	for rows.Next() {
		s, err := scanSenior(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning senior: %w", err)
		}
		seniors = append(seniors, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating seniors: %w", err)
	}
	return seniors, nil
}
