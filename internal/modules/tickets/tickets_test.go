package tickets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelName(t *testing.T) {
	ticket, err := Lookup("purchase")
	require.NoError(t, err)
	order, err := Lookup("custom-order")
	require.NoError(t, err)

	assert.Equal(t, "ticket-john_doe", ChannelName(ticket, "John_Doe"))
	assert.Equal(t, "ticket-a-b", ChannelName(ticket, "a.. b!!"))
	assert.Equal(t, "custom-order-buyer", ChannelName(order, "Buyer"))
	assert.Equal(t, "ticket-user", ChannelName(ticket, "!!!"))
	assert.LessOrEqual(t, len(ChannelName(ticket, strings.Repeat("x", 200))), 90)
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("refund")
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestIsSupportChannel(t *testing.T) {
	assert.True(t, IsSupportChannel("ticket-alice"))
	assert.True(t, IsSupportChannel("Ticket-Bob"))
	assert.True(t, IsSupportChannel("vip-custom-order-carol"))
	assert.False(t, IsSupportChannel("general"))
	assert.False(t, IsSupportChannel("tickets"))
}

func TestMatchesCategory(t *testing.T) {
	keywords := []string{"ticket", "support", "aide"}
	assert.True(t, MatchesCategory("🎫 Tickets", keywords))
	assert.True(t, MatchesCategory("Centre d'aide", keywords))
	assert.False(t, MatchesCategory("Lounge", keywords))
}
