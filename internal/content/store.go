package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"clubsite/internal/db"
)

var ErrNotFound = errors.New("content not found")

type Store struct {
	db *db.DB
}

func NewStore(dbConn *db.DB) *Store {
	return &Store{db: dbConn}
}

func (s *Store) ListEvents(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, title, description, location, starts_at, ends_at, created_at, updated_at
		 FROM events
		 ORDER BY starts_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := make([]Event, 0, limit)
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.StartsAt, &e.EndsAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CreateEvent(ctx context.Context, e *Event) (*Event, error) {
	out := *e
	err := s.db.Pool.QueryRow(ctx,
		`INSERT INTO events (title, description, location, starts_at, ends_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		e.Title, e.Description, e.Location, e.StartsAt, e.EndsAt,
	).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return &out, nil
}

func (s *Store) UpdateEvent(ctx context.Context, id int64, e *Event) (*Event, error) {
	out := *e
	out.ID = id
	err := s.db.Pool.QueryRow(ctx,
		`UPDATE events
		 SET title = $1, description = $2, location = $3, starts_at = $4, ends_at = $5, updated_at = NOW()
		 WHERE id = $6
		 RETURNING created_at, updated_at`,
		e.Title, e.Description, e.Location, e.StartsAt, e.EndsAt, id,
	).Scan(&out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	return &out, nil
}

func (s *Store) DeleteEvent(ctx context.Context, id int64) error {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListPosts(ctx context.Context, limit int) ([]Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, title, content, is_team, created_at, updated_at
		 FROM posts
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	out := make([]Post, 0, limit)
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.IsTeam, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CreatePost(ctx context.Context, p *Post) (*Post, error) {
	out := *p
	err := s.db.Pool.QueryRow(ctx,
		`INSERT INTO posts (title, content, is_team)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		p.Title, p.Content, p.IsTeam,
	).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return &out, nil
}

func (s *Store) UpdatePost(ctx context.Context, id int64, p *Post) (*Post, error) {
	out := *p
	out.ID = id
	err := s.db.Pool.QueryRow(ctx,
		`UPDATE posts
		 SET title = $1, content = $2, is_team = $3, updated_at = NOW()
		 WHERE id = $4
		 RETURNING created_at, updated_at`,
		p.Title, p.Content, p.IsTeam, id,
	).Scan(&out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update post: %w", err)
	}
	return &out, nil
}

func (s *Store) DeletePost(ctx context.Context, id int64) error {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
