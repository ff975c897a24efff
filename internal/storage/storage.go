// internal/storage/storage.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"hoisting/internal/models"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyVoted = errors.New("already voted")
)

// SQLSTATE codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

const imageColumns = `id, photo, width, length, private, uploaded_at`

type Storage struct {
	pool *pgxpool.Pool
	db   *sql.DB // For migrations
}

func NewStorage(ctx context.Context, dsn string) (*Storage, error) {
	const op = "storage.NewStorage"

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := runMigrations(db); err != nil {
		db.Close()
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{pool: pool, db: db}, nil
}

func (s *Storage) Close() {
	s.db.Close()
	s.pool.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// SaveImage inserts img and fills in its ID and UploadedAt.
func (s *Storage) SaveImage(ctx context.Context, img *models.Image) error {
	const op = "storage.SaveImage"

	err := s.pool.QueryRow(ctx,
		`INSERT INTO images (photo, width, length, private)
		VALUES ($1, $2, $3, $4)
		RETURNING id, uploaded_at`,
		img.Photo, img.Width, img.Length, img.Private).Scan(&img.ID, &img.UploadedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) GetImage(ctx context.Context, id int64) (*models.Image, error) {
	const op = "storage.GetImage"

	row := s.pool.QueryRow(ctx, `SELECT `+imageColumns+` FROM images WHERE id = $1`, id)
	img, err := scanImage(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return img, nil
}

// FindExact returns the earliest uploaded image with exactly width x length.
func (s *Storage) FindExact(ctx context.Context, width, length int) (*models.Image, error) {
	const op = "storage.FindExact"

	row := s.pool.QueryRow(ctx,
		`SELECT `+imageColumns+` FROM images
		WHERE width = $1 AND length = $2
		ORDER BY uploaded_at, id
		LIMIT 1`,
		width, length)
	img, err := scanImage(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return img, nil
}

// FindNearest returns the image minimising |Δwidth| * |Δlength|, smallest id
// first on ties.
func (s *Storage) FindNearest(ctx context.Context, width, length int) (*models.Image, error) {
	const op = "storage.FindNearest"

	row := s.pool.QueryRow(ctx,
		`SELECT `+imageColumns+` FROM images
		ORDER BY abs(width::bigint - $1::bigint) * abs(length::bigint - $2::bigint), id
		LIMIT 1`,
		width, length)
	img, err := scanImage(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return img, nil
}

// SaveVote inserts v. A second vote from the same IP for the same image
// yields ErrAlreadyVoted.
func (s *Storage) SaveVote(ctx context.Context, v *models.Vote) error {
	const op = "storage.SaveVote"

	err := s.pool.QueryRow(ctx,
		`INSERT INTO votes (image_id, ip) VALUES ($1, $2) RETURNING id`,
		v.ImageID, v.IP).Scan(&v.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case uniqueViolation:
				return fmt.Errorf("%s: %w", op, ErrAlreadyVoted)
			case foreignKeyViolation:
				return fmt.Errorf("%s: image %d: %w", op, v.ImageID, ErrNotFound)
			}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) CountVotes(ctx context.Context, imageID int64) (int64, error) {
	const op = "storage.CountVotes"

	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM votes WHERE image_id = $1`, imageID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func scanImage(row pgx.Row) (*models.Image, error) {
	var img models.Image
	err := row.Scan(&img.ID, &img.Photo, &img.Width, &img.Length, &img.Private, &img.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &img, nil
}
