package bot

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"voralith-bot/internal/config"
	"voralith-bot/internal/modules/giveaway"
	"voralith-bot/internal/modules/reviews"
	"voralith-bot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBot() *Bot {
	return &Bot{cfg: config.DefaultConfig(), logger: zap.NewNop()}
}

func TestIsPermissionError(t *testing.T) {
	missing := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusBadRequest},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeMissingPermissions},
	}
	forbidden := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}
	notFound := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}

	assert.True(t, isPermissionError(missing))
	assert.True(t, isPermissionError(fmt.Errorf("timeout: %w", forbidden)))
	assert.False(t, isPermissionError(notFound))
	assert.False(t, isPermissionError(errors.New("boom")))
}

func TestHumanDuration(t *testing.T) {
	cases := map[time.Duration]string{
		time.Second:      "1 second",
		45 * time.Second: "45 seconds",
		5 * time.Minute:  "5 minutes",
		90 * time.Second: "90 seconds",
		time.Hour:        "1 hour",
		24 * time.Hour:   "24 hours",
	}
	for d, want := range cases {
		assert.Equal(t, want, humanDuration(d), d.String())
	}
}

func TestBulkDeletableSkipsOldMessages(t *testing.T) {
	now := time.Now()
	messages := []*discordgo.Message{
		{ID: "1", Timestamp: now.Add(-time.Minute)},
		nil,
		{ID: "2", Timestamp: now.Add(-15 * 24 * time.Hour)},
		{ID: "3", Timestamp: now.Add(-13 * 24 * time.Hour)},
	}
	assert.Equal(t, []string{"1", "3"}, bulkDeletable(messages, now))
}

func TestTimedOut(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	assert.False(t, timedOut(nil, now))
	assert.False(t, timedOut(&discordgo.Member{}, now))
	assert.False(t, timedOut(&discordgo.Member{CommunicationDisabledUntil: &past}, now))
	assert.True(t, timedOut(&discordgo.Member{CommunicationDisabledUntil: &future}, now))
}

func TestStatsWindow(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	since, label := statsWindow("day", now)
	assert.Equal(t, now.Add(-24*time.Hour), since)
	assert.Equal(t, "last 24 hours", label)

	since, _ = statsWindow("week", now)
	assert.Equal(t, now.Add(-7*24*time.Hour), since)

	since, label = statsWindow("", now)
	assert.True(t, since.IsZero())
	assert.Equal(t, "all time", label)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("  short ", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "ééé…", truncate("éééééé", 4))
}

func TestGiveawayComponentsCarryID(t *testing.T) {
	components := giveawayComponents(42)
	require.Len(t, components, 1)
	row, ok := components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	button, ok := row.Components[0].(discordgo.Button)
	require.True(t, ok)
	assert.Equal(t, giveawayJoinPrefix+"42", button.CustomID)
	assert.Equal(t, "Giveaway ID: 42", giveawayFooter(42))
}

func TestGiveawayEmbed(t *testing.T) {
	b := newTestBot()
	embed := b.giveawayEmbed(giveaway.Giveaway{ID: 3, Prize: "Nitro", HostID: "77", EndsAt: time.Unix(1700000000, 0)})
	assert.Contains(t, embed.Description, "Nitro")
	assert.Equal(t, "<t:1700000000:R>", embed.Fields[0].Value)
	assert.Equal(t, "<@77>", embed.Fields[1].Value)
	assert.Equal(t, "Giveaway ID: 3", embed.Footer.Text)
	assert.Equal(t, b.cfg.Notifications.EmbedColors.Giveaway, embed.Color)
}

func TestReviewEmbedNumbering(t *testing.T) {
	b := newTestBot()
	review := storage.Review{UserID: "5", Message: "great", Stars: 4, ImageURL: "https://cdn.discordapp.com/a.png"}

	embed := b.reviewEmbed(reviews.Posted{Review: review, Number: 12})
	assert.Equal(t, "📝 Vouch #12", embed.Title)
	assert.Equal(t, reviews.Stars(4), embed.Fields[0].Value)
	require.NotNil(t, embed.Image)
	assert.Equal(t, review.ImageURL, embed.Image.URL)

	embed = b.reviewEmbed(reviews.Posted{Review: review})
	assert.Equal(t, "📝 New Vouch", embed.Title)
}

func TestValidateReviewImage(t *testing.T) {
	b := newTestBot()
	data := discordgo.ApplicationCommandInteractionData{
		Resolved: &discordgo.ApplicationCommandInteractionDataResolved{
			Attachments: map[string]*discordgo.MessageAttachment{
				"ok":    {URL: "https://cdn.discordapp.com/attachments/1/2/a.png?ex=1#frag", ContentType: "image/png", Size: 1024},
				"text":  {URL: "https://cdn.discordapp.com/attachments/1/2/a.txt", ContentType: "text/plain", Size: 10},
				"large": {URL: "https://cdn.discordapp.com/attachments/1/2/b.png", ContentType: "image/png", Size: 11 * 1024 * 1024},
				"host":  {URL: "https://evil.example/a.png", ContentType: "image/png", Size: 10},
			},
		},
	}

	url, problem := b.validateReviewImage(data, "ok")
	assert.Empty(t, problem)
	assert.Equal(t, "https://cdn.discordapp.com/attachments/1/2/a.png?ex=1", url)

	for _, id := range []string{"text", "large", "host", "missing"} {
		url, problem := b.validateReviewImage(data, id)
		assert.Empty(t, url, id)
		assert.NotEmpty(t, problem, id)
	}
}

func TestCommandDefinitions(t *testing.T) {
	b := newTestBot()
	byName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range b.commandDefinitions() {
		byName[cmd.Name] = cmd
	}

	for _, name := range []string{"giveaway", "end_giveaway", "setup_verification", "verify_stats", "setup-reviews", "remove-sticky", "vouch_stats", "mute", "unmute", "clear", "setup-tickets", "announcement", "update_log"} {
		cmd := byName[name]
		require.NotNil(t, cmd, name)
		require.NotNil(t, cmd.DefaultMemberPermissions, name)
		assert.Equal(t, int64(discordgo.PermissionAdministrator), *cmd.DefaultMemberPermissions, name)
	}
	for _, name := range []string{"giveaway_info", "vouch"} {
		require.NotNil(t, byName[name], name)
		assert.Nil(t, byName[name].DefaultMemberPermissions, name)
	}

	clear := byName["clear"].Options[0]
	assert.Equal(t, float64(100), clear.MaxValue)
	assert.Equal(t, 1.0, *clear.MinValue)

	mute := byName["mute"].Options[1]
	assert.Equal(t, float64(86400), mute.MaxValue)
}

func TestIsAdmin(t *testing.T) {
	b := newTestBot()
	b.cfg.AdminUserID = "42"

	guildAdmin := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: &discordgo.User{ID: "1"}, Permissions: discordgo.PermissionAdministrator},
	}}
	guildMember := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: &discordgo.User{ID: "42"}},
	}}
	dmOwner := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{User: &discordgo.User{ID: "42"}}}
	dmStranger := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{User: &discordgo.User{ID: "7"}}}

	assert.True(t, b.isAdmin(guildAdmin))
	assert.False(t, b.isAdmin(guildMember), "guild permissions decide inside a guild")
	assert.True(t, b.isAdmin(dmOwner))
	assert.False(t, b.isAdmin(dmStranger))
}

func TestMemberHasAdmin(t *testing.T) {
	b := newTestBot()
	guild := &discordgo.Guild{
		ID:      "g",
		OwnerID: "owner",
		Roles: []*discordgo.Role{
			{ID: "g", Permissions: discordgo.PermissionSendMessages},
			{ID: "admins", Permissions: discordgo.PermissionAdministrator},
		},
	}
	assert.True(t, b.memberHasAdmin(guild, "owner", nil))
	assert.True(t, b.memberHasAdmin(guild, "u1", &discordgo.Member{Roles: []string{"admins"}}))
	assert.False(t, b.memberHasAdmin(guild, "u2", &discordgo.Member{}))
	assert.False(t, b.memberHasAdmin(nil, "owner", nil))
}

func TestOptionHelpers(t *testing.T) {
	options := optionMap([]*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "prize", Type: discordgo.ApplicationCommandOptionString, Value: "Nitro"},
		{Name: "amount", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(25)},
	})
	assert.Equal(t, "Nitro", stringOption(options, "prize"))
	assert.Empty(t, stringOption(options, "missing"))

	amount, ok := intOption(options, "amount")
	assert.True(t, ok)
	assert.Equal(t, int64(25), amount)
	_, ok = intOption(options, "prize")
	assert.False(t, ok)

	data := discordgo.ApplicationCommandInteractionData{
		Resolved: &discordgo.ApplicationCommandInteractionDataResolved{
			Users: map[string]*discordgo.User{"9": {ID: "9", Username: "nine"}},
		},
	}
	assert.Equal(t, "nine", resolvedUser(data, "9").Username)
	assert.Equal(t, "10", resolvedUser(data, "10").ID)
}
