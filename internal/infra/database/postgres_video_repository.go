package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"estirar/internal/domain/senior"
	"estirar/internal/domain/video"

	"github.com/lib/pq" // For pq.Array
)

const videoColumns = `id, title, youtube_url, category, language, sequence_order`

type PostgresVideoRepository struct {
	db *sql.DB
}

func NewPostgresVideoRepository(db *sql.DB) *PostgresVideoRepository {
	return &PostgresVideoRepository{db: db}
}

func scanVideo(row rowScanner) (*video.Video, error) {
	v := &video.Video{}
	var lang string
	if err := row.Scan(&v.ID, &v.Title, &v.URL, &v.Category, &lang, &v.SequencePosition); err != nil {
		return nil, err
	}
	v.Language = senior.Language(lang)
	return v, nil
}

func (r *PostgresVideoRepository) getOne(ctx context.Context, what string, query string, args ...any) (*video.Video, error) {
	v, err := scanVideo(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, video.ErrVideoNotFound
		}
		return nil, fmt.Errorf("error getting video %s: %w", what, err)
	}
	return v, nil
}

func (r *PostgresVideoRepository) GetByID(ctx context.Context, id int64) (*video.Video, error) {
	return r.getOne(ctx, "by ID", `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
}

func (r *PostgresVideoRepository) GetBySequence(ctx context.Context, lang senior.Language, position int) (*video.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE language = $1 AND sequence_order = $2`
	return r.getOne(ctx, "by sequence", query, lang, position)
}

func (r *PostgresVideoRepository) GetNextInSequence(ctx context.Context, lang senior.Language, after int) (*video.Video, error) {
	query := `SELECT ` + videoColumns + `
               FROM videos
               WHERE language = $1 AND sequence_order > $2
               ORDER BY sequence_order ASC
               LIMIT 1`
	return r.getOne(ctx, "next in sequence", query, lang, after)
}

func (r *PostgresVideoRepository) ListByLanguages(ctx context.Context, langs []senior.Language) ([]*video.Video, error) {
	codes := make([]string, len(langs))
	for i, l := range langs {
		codes[i] = string(l)
	}

	query := `SELECT ` + videoColumns + `
               FROM videos
               WHERE language = ANY($1::varchar[])
               ORDER BY language, sequence_order`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(codes))
	if err != nil {
		return nil, fmt.Errorf("error listing videos: %w", err)
	}
	defer rows.Close()

	videos := make([]*video.Video, 0)
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning video: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating videos: %w", err)
	}
	return videos, nil
}

// Upsert inserts v or replaces the catalog entry at the same language and position.
func (r *PostgresVideoRepository) Upsert(ctx context.Context, v *video.Video) error {
	query := `INSERT INTO videos (title, youtube_url, category, language, sequence_order)
               VALUES ($1, $2, $3, $4, $5)
               ON CONFLICT (language, sequence_order)
               DO UPDATE SET title = EXCLUDED.title, youtube_url = EXCLUDED.youtube_url, category = EXCLUDED.category
               RETURNING id`
	err := r.db.QueryRowContext(ctx, query, v.Title, v.URL, v.Category, v.Language, v.SequencePosition).Scan(&v.ID)
	if err != nil {
		return fmt.Errorf("error upserting video %q: %w", v.Title, err)
	}
	return nil
}
