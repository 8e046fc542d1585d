package giveaway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(1_700_000_000, 0)

func create(t *testing.T, r *Registry, duration string) Giveaway {
	t.Helper()
	g, err := r.Create(CreateRequest{Prize: "Nitro", Duration: duration, HostID: "host", GuildID: "g1", ChannelID: "c1"}, epoch)
	require.NoError(t, err)
	return g
}

func TestCreateAssignsMonotonicIDs(t *testing.T) {
	r := NewRegistry()
	first := create(t, r, "1h")
	second := create(t, r, "30m")
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, 2, second.ID)
	assert.Equal(t, epoch.Add(time.Hour), first.EndsAt)

	_, ok := r.Conclude(first.ID)
	require.True(t, ok)
	third := create(t, r, "1d")
	assert.Equal(t, 3, third.ID, "ids are never reused")
}

func TestCreateRejectsInvalidDuration(t *testing.T) {
	r := NewRegistry()
	for _, expr := range []string{"5x", "", "h", "1h30m", "1.5h"} {
		_, err := r.Create(CreateRequest{Prize: "Nitro", Duration: expr}, epoch)
		require.ErrorIs(t, err, ErrInvalidDuration, expr)
	}
	_, err := r.Create(CreateRequest{Prize: "  ", Duration: "1h"}, epoch)
	require.ErrorIs(t, err, ErrEmptyPrize)

	g := create(t, r, "1h")
	assert.Equal(t, 1, g.ID, "rejected requests do not consume ids")
}

func TestJoin(t *testing.T) {
	r := NewRegistry()
	g := create(t, r, "1h")

	assert.Equal(t, Joined, r.Join(g.ID, "u1", epoch))
	assert.Equal(t, AlreadyJoined, r.Join(g.ID, "u1", epoch.Add(time.Minute)))
	assert.Equal(t, NotFound, r.Join(99, "u1", epoch))
	assert.Equal(t, AlreadyEnded, r.Join(g.ID, "u2", epoch.Add(time.Hour)), "end time is checked even before a sweep")

	current, ok := r.Get(g.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"u1"}, current.Participants)
}

func TestConcludeIsIdempotent(t *testing.T) {
	r := NewRegistry()
	g := create(t, r, "1h")
	r.Join(g.ID, "u1", epoch)

	draws := 0
	r.WithPicker(func(n int) int {
		draws++
		return 0
	})

	result, ok := r.Conclude(g.ID)
	require.True(t, ok)
	assert.Equal(t, "u1", result.Winner)

	_, ok = r.Conclude(g.ID)
	assert.False(t, ok)
	assert.Equal(t, 1, draws)
	_, found := r.Get(g.ID)
	assert.False(t, found)
}

func TestConcludeWithoutParticipants(t *testing.T) {
	r := NewRegistry()
	g := create(t, r, "1h")
	r.WithPicker(func(int) int {
		t.Fatal("picker must not be called without participants")
		return 0
	})

	result, ok := r.Conclude(g.ID)
	require.True(t, ok)
	assert.False(t, result.HasWinner())
	assert.Empty(t, result.Winner)
}

func TestWinnerComesFromParticipants(t *testing.T) {
	participants := []string{"a", "b", "c", "d"}
	for i := 0; i < 50; i++ {
		r := NewRegistry()
		g := create(t, r, "1h")
		for _, p := range participants {
			r.Join(g.ID, p, epoch)
		}
		result, ok := r.Conclude(g.ID)
		require.True(t, ok)
		assert.Contains(t, participants, result.Winner)
		assert.Len(t, result.Giveaway.Participants, 4)
	}
}

func TestSweepConcludesExpired(t *testing.T) {
	r := NewRegistry()
	short := create(t, r, "1s")
	long := create(t, r, "1h")

	results := r.Sweep(epoch.Add(2 * time.Second))
	require.Len(t, results, 1)
	assert.Equal(t, short.ID, results[0].Giveaway.ID)

	_, found := r.Get(short.ID)
	assert.False(t, found)
	_, found = r.Get(long.ID)
	assert.True(t, found)
	assert.Empty(t, r.Sweep(epoch.Add(2*time.Second)), "second sweep is a no-op")
}

func TestActiveFiltersByGuild(t *testing.T) {
	r := NewRegistry()
	create(t, r, "1h")
	_, err := r.Create(CreateRequest{Prize: "Key", Duration: "2h", GuildID: "g2"}, epoch)
	require.NoError(t, err)
	create(t, r, "3h")

	active := r.Active("g1")
	require.Len(t, active, 2)
	assert.Equal(t, 1, active[0].ID)
	assert.Equal(t, 3, active[1].ID)
	assert.Len(t, r.Active(""), 3)
}

func TestSnapshotsAreDetached(t *testing.T) {
	r := NewRegistry()
	g := create(t, r, "1h")
	r.Join(g.ID, "u1", epoch)

	snap, _ := r.Get(g.ID)
	snap.Participants[0] = "mallory"

	current, _ := r.Get(g.ID)
	assert.Equal(t, []string{"u1"}, current.Participants)
}
