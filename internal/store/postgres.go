package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voyagen/worldtv/internal/models"
)

// Postgres implements Store using PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store from a DSN. Caller must call Close when done.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Ping checks the database connection.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) IsFavorite(ctx context.Context, userID, streamURL string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM favorites WHERE user_id = $1 AND stream_url = $2)`,
		userID, streamURL,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("IsFavorite: %w", err)
	}
	return exists, nil
}

func (p *Postgres) AddFavorite(ctx context.Context, userID string, ch models.Channel) error {
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO favorites (user_id, stream_url, name, logo, country, category, languages, tvg_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8,''))
		 ON CONFLICT (user_id, stream_url) DO NOTHING`,
		userID, ch.URL, ch.Name, ch.Logo, ch.Country, ch.Category, languages(ch), ch.TvgID,
	)
	if err != nil {
		return fmt.Errorf("AddFavorite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (p *Postgres) RemoveFavorite(ctx context.Context, userID, streamURL string) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND stream_url = $2`,
		userID, streamURL,
	)
	if err != nil {
		return fmt.Errorf("RemoveFavorite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ListFavorites(ctx context.Context, userID string) ([]models.Favorite, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT stream_url, name, logo, country, category, languages, COALESCE(tvg_id, ''), created_at
		 FROM favorites WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListFavorites: %w", err)
	}
	defer rows.Close()

	out := []models.Favorite{}
	for rows.Next() {
		var (
			ch models.Channel
			at time.Time
		)
		if err := rows.Scan(&ch.URL, &ch.Name, &ch.Logo, &ch.Country, &ch.Category, &ch.Languages, &ch.TvgID, &at); err != nil {
			return nil, fmt.Errorf("ListFavorites scan: %w", err)
		}
		out = append(out, models.Favorite{UserID: userID, Channel: ch, CreatedAt: &at})
	}
	return out, rows.Err()
}

func (p *Postgres) RecordWatch(ctx context.Context, userID string, ch models.Channel, at time.Time) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO recently_watched (user_id, stream_url, name, logo, country, category, languages, tvg_id, watched_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8,''), $9)
		 ON CONFLICT (user_id, stream_url) DO UPDATE SET
		   name = EXCLUDED.name, logo = EXCLUDED.logo, country = EXCLUDED.country,
		   category = EXCLUDED.category, languages = EXCLUDED.languages,
		   tvg_id = EXCLUDED.tvg_id,
		   watched_at = GREATEST(recently_watched.watched_at, EXCLUDED.watched_at)`,
		userID, ch.URL, ch.Name, ch.Logo, ch.Country, ch.Category, languages(ch), ch.TvgID, at,
	)
	if err != nil {
		return fmt.Errorf("RecordWatch: %w", err)
	}
	return nil
}

func (p *Postgres) ListRecent(ctx context.Context, userID string, limit int) ([]models.WatchEntry, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT stream_url, name, logo, country, category, languages, COALESCE(tvg_id, ''), watched_at
		 FROM recently_watched WHERE user_id = $1
		 ORDER BY watched_at DESC
		 LIMIT $2`,
		userID, recentLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.WatchEntry, error) {
		e := models.WatchEntry{UserID: userID}
		err := row.Scan(&e.Channel.URL, &e.Channel.Name, &e.Channel.Logo, &e.Channel.Country,
			&e.Channel.Category, &e.Channel.Languages, &e.Channel.TvgID, &e.WatchedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("ListRecent scan: %w", err)
	}
	return entries, nil
}

func (p *Postgres) ClearRecent(ctx context.Context, userID string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM recently_watched WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("ClearRecent: %w", err)
	}
	return nil
}

// languages keeps the column NOT NULL for channels without a language list.
func languages(ch models.Channel) []string {
	if ch.Languages == nil {
		return []string{}
	}
	return ch.Languages
}
