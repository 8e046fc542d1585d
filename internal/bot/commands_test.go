package bot

import (
	"net/http"
	"testing"

	"voralith-bot/internal/config"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandSyncFailureClosesSession(t *testing.T) {
	api := &fakeDiscord{}
	b := newSpamBot(t, api, config.DefaultConfig().AntiSpam)
	b.session.State.User = &discordgo.User{ID: "app1"}
	b.session.DataReady = true

	err := b.syncCommands()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register commands")
	assert.False(t, b.session.DataReady, "session left open after failed command sync")
	assert.NotEmpty(t, api.find(http.MethodPost, "/applications/app1/commands"))
}
