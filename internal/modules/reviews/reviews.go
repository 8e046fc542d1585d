package reviews

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"voralith-bot/internal/storage"

	"go.uber.org/zap"
)

const (
	MinStars = 1
	MaxStars = 5
)

var (
	ErrInvalidStars  = errors.New("stars must be between 1 and 5")
	ErrEmptyMessage  = errors.New("review message is required")
	ErrDraftNotFound = errors.New("no review in progress")
	ErrDraftExpired  = errors.New("review draft expired")
)

// Store persists the review counter and the review log.
type Store interface {
	NextReviewNumber(ctx context.Context, guildID string) (int, error)
	SaveReview(ctx context.Context, review storage.Review) (int64, error)
}

// Draft is a review waiting for its star rating.
type Draft struct {
	GuildID   string
	ChannelID string
	UserID    string
	Username  string
	Message   string
	ImageURL  string
	CreatedAt time.Time
}

// Posted is a submitted review. Number is zero when the counter could not be
// read; the review is still published in that case.
type Posted struct {
	Review    storage.Review
	Number    int
	ChannelID string
}

type Service struct {
	mu       sync.Mutex
	drafts   map[string]Draft
	stickies map[string]string
	store    Store
	logger   *zap.Logger
	ttl      time.Duration
}

func New(store Store, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{
		drafts:   make(map[string]Draft),
		stickies: make(map[string]string),
		store:    store,
		logger:   logger,
		ttl:      ttl,
	}
}

// StartDraft records a review for userID, replacing any earlier draft.
func (s *Service) StartDraft(draft Draft) error {
	draft.Message = strings.TrimSpace(draft.Message)
	if draft.Message == "" {
		return ErrEmptyMessage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[draft.UserID] = draft
	return nil
}

func (s *Service) Draft(userID string) (Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, ok := s.drafts[userID]
	return draft, ok
}

// Submit finalizes the user's draft with a star rating. Counter or storage
// failures are logged and do not prevent publishing.
func (s *Service) Submit(ctx context.Context, userID string, stars int, now time.Time) (Posted, error) {
	if stars < MinStars || stars > MaxStars {
		return Posted{}, ErrInvalidStars
	}

	s.mu.Lock()
	draft, ok := s.drafts[userID]
	if ok {
		delete(s.drafts, userID)
	}
	s.mu.Unlock()

	if !ok {
		return Posted{}, ErrDraftNotFound
	}
	if s.ttl > 0 && now.Sub(draft.CreatedAt) > s.ttl {
		return Posted{}, ErrDraftExpired
	}

	review := storage.Review{
		GuildID:   draft.GuildID,
		UserID:    draft.UserID,
		Username:  draft.Username,
		Message:   draft.Message,
		Stars:     stars,
		ImageURL:  draft.ImageURL,
		CreatedAt: now,
	}

	number, err := s.store.NextReviewNumber(ctx, draft.GuildID)
	if err != nil {
		s.logger.Warn("review counter failed", zap.String("guild_id", draft.GuildID), zap.Error(err))
		number = 0
	}
	review.Number = number

	id, err := s.store.SaveReview(ctx, review)
	if err != nil {
		s.logger.Warn("review save failed", zap.String("guild_id", draft.GuildID), zap.String("user_id", userID), zap.Error(err))
	} else {
		review.ID = id
	}
	return Posted{Review: review, Number: number, ChannelID: draft.ChannelID}, nil
}

// PruneDrafts drops drafts older than the TTL.
func (s *Service) PruneDrafts(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for userID, draft := range s.drafts {
		if now.Sub(draft.CreatedAt) > s.ttl {
			delete(s.drafts, userID)
			removed++
		}
	}
	return removed
}

// EnableSticky marks a channel as carrying the review instructions message.
func (s *Service) EnableSticky(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stickies[channelID]; !ok {
		s.stickies[channelID] = ""
	}
}

// DisableSticky returns the id of the last posted sticky message, if any.
func (s *Service) DisableSticky(channelID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	messageID, ok := s.stickies[channelID]
	delete(s.stickies, channelID)
	return messageID, ok
}

func (s *Service) IsSticky(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.stickies[channelID]
	return ok
}

// SwapSticky records messageID as the channel's sticky and returns the one it
// replaces. It reports false when the channel is no longer sticky.
func (s *Service) SwapSticky(channelID, messageID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, ok := s.stickies[channelID]
	if !ok {
		return "", false
	}
	s.stickies[channelID] = messageID
	return previous, true
}

// Stars renders a rating as filled and empty stars.
func Stars(n int) string {
	if n < 0 {
		n = 0
	}
	if n > MaxStars {
		n = MaxStars
	}
	return strings.Repeat("⭐", n) + strings.Repeat("☆", MaxStars-n)
}
