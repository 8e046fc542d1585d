package reviews

import (
	"context"
	"errors"
	"testing"
	"time"

	"voralith-bot/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var epoch = time.Unix(1_700_000_000, 0)

type fakeStore struct {
	counter    map[string]int
	saved      []storage.Review
	counterErr error
	saveErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{counter: make(map[string]int)}
}

func (f *fakeStore) NextReviewNumber(_ context.Context, guildID string) (int, error) {
	if f.counterErr != nil {
		return 0, f.counterErr
	}
	f.counter[guildID]++
	return f.counter[guildID], nil
}

func (f *fakeStore) SaveReview(_ context.Context, review storage.Review) (int64, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.saved = append(f.saved, review)
	return int64(len(f.saved)), nil
}

func draft(user string) Draft {
	return Draft{GuildID: "g1", ChannelID: "c1", UserID: user, Username: "name-" + user, Message: " fast delivery ", CreatedAt: epoch}
}

func TestSubmitNumbersReviews(t *testing.T) {
	store := newFakeStore()
	svc := New(store, 5*time.Minute, zap.NewNop())

	require.NoError(t, svc.StartDraft(draft("u1")))
	first, err := svc.Submit(context.Background(), "u1", 5, epoch.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, "fast delivery", first.Review.Message)
	assert.Equal(t, int64(1), first.Review.ID)

	require.NoError(t, svc.StartDraft(draft("u2")))
	second, err := svc.Submit(context.Background(), "u2", 4, epoch.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, second.Number)
	require.Len(t, store.saved, 2)
	assert.Equal(t, 4, store.saved[1].Stars)

	_, err = svc.Submit(context.Background(), "u1", 5, epoch.Add(time.Minute))
	require.ErrorIs(t, err, ErrDraftNotFound, "drafts are consumed")
}

func TestSubmitValidatesStars(t *testing.T) {
	svc := New(newFakeStore(), 5*time.Minute, zap.NewNop())
	require.NoError(t, svc.StartDraft(draft("u1")))

	for _, stars := range []int{0, 6, -1} {
		_, err := svc.Submit(context.Background(), "u1", stars, epoch)
		require.ErrorIs(t, err, ErrInvalidStars)
	}
	_, ok := svc.Draft("u1")
	assert.True(t, ok, "invalid ratings keep the draft")
}

func TestSubmitExpiredDraft(t *testing.T) {
	svc := New(newFakeStore(), 5*time.Minute, zap.NewNop())
	require.NoError(t, svc.StartDraft(draft("u1")))
	_, err := svc.Submit(context.Background(), "u1", 3, epoch.Add(6*time.Minute))
	require.ErrorIs(t, err, ErrDraftExpired)
}

func TestSubmitSurvivesStoreFailures(t *testing.T) {
	store := newFakeStore()
	store.counterErr = errors.New("connection refused")
	store.saveErr = errors.New("connection refused")
	svc := New(store, 5*time.Minute, zap.NewNop())

	require.NoError(t, svc.StartDraft(draft("u1")))
	posted, err := svc.Submit(context.Background(), "u1", 5, epoch)
	require.NoError(t, err)
	assert.Equal(t, 0, posted.Number)
	assert.Equal(t, int64(0), posted.Review.ID)
}

func TestStartDraftRequiresMessage(t *testing.T) {
	svc := New(newFakeStore(), 5*time.Minute, zap.NewNop())
	d := draft("u1")
	d.Message = "   "
	require.ErrorIs(t, svc.StartDraft(d), ErrEmptyMessage)
}

func TestPruneDrafts(t *testing.T) {
	svc := New(newFakeStore(), 5*time.Minute, zap.NewNop())
	require.NoError(t, svc.StartDraft(draft("old")))
	fresh := draft("fresh")
	fresh.CreatedAt = epoch.Add(4 * time.Minute)
	require.NoError(t, svc.StartDraft(fresh))

	assert.Equal(t, 1, svc.PruneDrafts(epoch.Add(6*time.Minute)))
	_, ok := svc.Draft("fresh")
	assert.True(t, ok)
}

func TestStickyLifecycle(t *testing.T) {
	svc := New(newFakeStore(), time.Minute, zap.NewNop())
	assert.False(t, svc.IsSticky("c1"))

	_, ok := svc.SwapSticky("c1", "m0")
	assert.False(t, ok)

	svc.EnableSticky("c1")
	previous, ok := svc.SwapSticky("c1", "m1")
	require.True(t, ok)
	assert.Empty(t, previous)

	previous, ok = svc.SwapSticky("c1", "m2")
	require.True(t, ok)
	assert.Equal(t, "m1", previous)

	svc.EnableSticky("c1")
	last, ok := svc.DisableSticky("c1")
	require.True(t, ok)
	assert.Equal(t, "m2", last, "re-enabling keeps the tracked message")
	assert.False(t, svc.IsSticky("c1"))
}

func TestStars(t *testing.T) {
	assert.Equal(t, "⭐⭐⭐☆☆", Stars(3))
	assert.Equal(t, "⭐⭐⭐⭐⭐", Stars(9))
	assert.Equal(t, "☆☆☆☆☆", Stars(0))
}
