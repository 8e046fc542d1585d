package analytics

import (
	"context"
	"time"

	"voralith-bot/internal/storage"
)

type ReviewSource interface {
	ListReviews(ctx context.Context, guildID string, since time.Time) ([]storage.Review, error)
}

type Service struct {
	store ReviewSource
}

func New(store ReviewSource) *Service {
	return &Service{store: store}
}

type Report struct {
	Total   int
	ByStars map[int]int
	Average float64
}

func (s *Service) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	reviews, err := s.store.ListReviews(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{ByStars: make(map[int]int)}
	sum := 0
	for _, review := range reviews {
		report.Total++
		report.ByStars[review.Stars]++
		sum += review.Stars
	}
	if report.Total > 0 {
		report.Average = float64(sum) / float64(report.Total)
	}
	return report, nil
}
