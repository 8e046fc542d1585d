package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

type Review struct {
	ID        int64
	Number    int
	GuildID   string
	UserID    string
	Username  string
	Message   string
	Stars     int
	ImageURL  string
	CreatedAt time.Time
}

// NextReviewNumber atomically bumps and returns the guild's running review
// total.
func (s *Store) NextReviewNumber(ctx context.Context, guildID string) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO review_counter (guild_id, total_reviews)
		VALUES ($1, 1)
		ON CONFLICT (guild_id) DO UPDATE
		SET total_reviews = review_counter.total_reviews + 1
		RETURNING total_reviews
	`, guildID).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ReviewTotal(ctx context.Context, guildID string) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `SELECT total_reviews FROM review_counter WHERE guild_id = $1`, guildID).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return total, nil
}

func (s *Store) SaveReview(ctx context.Context, review Review) (int64, error) {
	createdAt := review.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO reviews (guild_id, user_id, username, message, stars, image_url, review_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		review.GuildID,
		review.UserID,
		review.Username,
		review.Message,
		review.Stars,
		nullableString(review.ImageURL),
		nullableInt(review.Number),
		createdAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) ListReviews(ctx context.Context, guildID string, since time.Time) ([]Review, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, COALESCE(review_number, 0), guild_id, user_id, username, message, stars, COALESCE(image_url, ''), created_at
		FROM reviews
		WHERE guild_id = $1 AND created_at >= $2
		ORDER BY created_at ASC, id ASC
	`, guildID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.Number, &r.GuildID, &r.UserID, &r.Username, &r.Message, &r.Stars, &r.ImageURL, &r.CreatedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func nullableInt(value int) *int {
	if value <= 0 {
		return nil
	}
	return &value
}
