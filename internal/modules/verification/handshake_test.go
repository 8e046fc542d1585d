package verification

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

var epoch = time.Unix(1_700_000_000, 0)

func proof() *oauth2.Token {
	return &oauth2.Token{AccessToken: "access", TokenType: "Bearer"}
}

func TestBeginCompleteRoundTrip(t *testing.T) {
	h := New(30*time.Minute, nil)

	token, err := h.Begin("111", "222", epoch)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "111_222_"))
	assert.Len(t, strings.TrimPrefix(token, "111_222_"), 64)

	grant, err := h.Complete("111", token, proof(), epoch.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, Grant{UserID: "111", GuildID: "222"}, grant)
	assert.True(t, h.IsVerified("111"))
	assert.Equal(t, 1, h.VerifiedCount())
	assert.Equal(t, 0, h.PendingCount())

	_, err = h.Complete("111", token, proof(), epoch.Add(time.Minute))
	require.ErrorIs(t, err, ErrNoPending)
	assert.Equal(t, 1, h.VerifiedCount())

	_, err = h.Begin("111", "222", epoch)
	require.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestInterleavedUsers(t *testing.T) {
	h := New(30*time.Minute, nil)
	tokenA, err := h.Begin("1", "9", epoch)
	require.NoError(t, err)
	tokenB, err := h.Begin("2", "9", epoch)
	require.NoError(t, err)

	_, err = h.Complete("1", tokenA, proof(), epoch)
	require.NoError(t, err)
	_, err = h.Begin("3", "9", epoch)
	require.NoError(t, err)
	_, err = h.Complete("2", tokenB, proof(), epoch)
	require.NoError(t, err)

	assert.Equal(t, 2, h.VerifiedCount())
	assert.Equal(t, 1, h.PendingCount())
}

func TestCompleteRejects(t *testing.T) {
	h := New(30*time.Minute, nil)

	_, err := h.Complete("1", "1_dm_x", proof(), epoch)
	require.ErrorIs(t, err, ErrNoPending)

	token, err := h.Begin("1", "", epoch)
	require.NoError(t, err)

	_, err = h.Complete("1", token+"tampered", proof(), epoch)
	require.ErrorIs(t, err, ErrTokenMismatch)

	_, err = h.Complete("1", token, nil, epoch)
	require.ErrorIs(t, err, ErrMissingProof)
	_, err = h.Complete("1", token, &oauth2.Token{}, epoch)
	require.ErrorIs(t, err, ErrMissingProof)

	assert.False(t, h.IsVerified("1"))
	_, pending := h.Pending("1")
	assert.True(t, pending, "rejections keep the pending state")
}

func TestBeginOverwritesPendingState(t *testing.T) {
	h := New(30*time.Minute, nil)
	first, err := h.Begin("1", "9", epoch)
	require.NoError(t, err)
	second, err := h.Begin("1", "9", epoch.Add(time.Second))
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, err = h.Complete("1", first, proof(), epoch)
	require.ErrorIs(t, err, ErrTokenMismatch)
	assert.Equal(t, 1, h.PendingCount())
}

func TestFallbackGuild(t *testing.T) {
	h := New(30*time.Minute, func() string { return "777" })
	token, err := h.Begin("1", "", epoch)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "1_dm_"))

	grant, err := h.Complete("1", token, proof(), epoch)
	require.NoError(t, err)
	assert.Equal(t, "777", grant.GuildID)
}

func TestCancelIsIdempotent(t *testing.T) {
	h := New(30*time.Minute, nil)
	token, err := h.Begin("1", "9", epoch)
	require.NoError(t, err)

	h.Cancel("1")
	h.Cancel("1")
	h.Cancel("nobody")

	_, err = h.Complete("1", token, proof(), epoch)
	require.ErrorIs(t, err, ErrNoPending)
	assert.False(t, h.IsVerified("1"))
}

func TestExpiry(t *testing.T) {
	h := New(30*time.Minute, nil)
	stale, err := h.Begin("1", "9", epoch)
	require.NoError(t, err)
	_, err = h.Begin("2", "9", epoch.Add(20*time.Minute))
	require.NoError(t, err)

	_, err = h.Complete("1", stale, proof(), epoch.Add(31*time.Minute))
	require.ErrorIs(t, err, ErrExpired)

	_, err = h.Begin("3", "9", epoch)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Prune(epoch.Add(31*time.Minute)))
	_, pending := h.Pending("2")
	assert.True(t, pending)
}

func TestDeterministicNonce(t *testing.T) {
	h := New(time.Minute, nil)
	h.WithRandom(bytes.NewReader(bytes.Repeat([]byte{0xab}, 32)))
	token, err := h.Begin("1", "2", epoch)
	require.NoError(t, err)
	assert.Equal(t, "1_2_"+strings.Repeat("ab", 32), token)

	_, err = h.Begin("5", "2", epoch)
	require.Error(t, err, "exhausted entropy source surfaces an error")
}

func TestParseState(t *testing.T) {
	user, guild, err := ParseState("123_456_abcdef")
	require.NoError(t, err)
	assert.Equal(t, "123", user)
	assert.Equal(t, "456", guild)

	user, guild, err = ParseState("123_dm_abcdef")
	require.NoError(t, err)
	assert.Equal(t, "123", user)
	assert.Equal(t, NoGuild, guild)

	_, guild, err = ParseState("123")
	require.NoError(t, err)
	assert.Equal(t, NoGuild, guild)

	for _, bad := range []string{"", "_456_x", "abc_456_x", "123_guild_x"} {
		_, _, err := ParseState(bad)
		require.ErrorIs(t, err, ErrMalformedState, bad)
	}
}
