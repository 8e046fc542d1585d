package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"voralith-bot/internal/analytics"
	"voralith-bot/internal/config"
	"voralith-bot/internal/dispatch"
	"voralith-bot/internal/modules/antispam"
	"voralith-bot/internal/modules/audit"
	"voralith-bot/internal/modules/giveaway"
	"voralith-bot/internal/modules/reviews"
	"voralith-bot/internal/modules/verification"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Bot wires the Discord session to the in-memory modules. Antispam,
// giveaways and verification state belong to the dispatch loop and are only
// touched from tasks posted to it.
type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	session   *discordgo.Session
	loop      *dispatch.Loop
	audit     *audit.Logger
	analytics *analytics.Service
	oauth     *oauth2.Config

	antispam  *antispam.Module
	giveaways *giveaway.Registry
	scheduler *giveaway.Scheduler
	verify    *verification.Handshake
	reviews   *reviews.Service
}

func New(cfg config.Config, logger *zap.Logger, loop *dispatch.Loop, reviewStore reviews.Store, auditLogger *audit.Logger, analyticsService *analytics.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent
	// Message handlers must observe events in arrival order.
	session.SyncEvents = true

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		session:   session,
		loop:      loop,
		audit:     auditLogger,
		analytics: analyticsService,
	}
	if cfg.OAuth.Enabled() {
		b.oauth = cfg.OAuth.OAuth2()
	}

	b.antispam = antispam.New(cfg.AntiSpam)
	b.giveaways = giveaway.NewRegistry()
	b.verify = verification.New(time.Duration(cfg.Verification.TTLMinutes)*time.Minute, b.firstGuildID)
	b.reviews = reviews.New(reviewStore, time.Duration(cfg.Reviews.DraftTTLSeconds)*time.Second, logger)
	b.scheduler = giveaway.NewScheduler(b.giveaways, loop, b.announceGiveaway, time.Duration(cfg.Giveaway.SweepIntervalSeconds)*time.Second, logger)
	b.scheduler.OnTick(func(now time.Time) {
		b.antispam.Prune(now)
		if removed := b.verify.Prune(now); removed > 0 {
			b.logger.Info("expired verification states pruned", zap.Int("count", removed))
		}
		b.reviews.PruneDrafts(now)
	})

	if b.audit != nil && cfg.Notifications.ModLogChannel != "" {
		b.audit.SetNotifier(b.notifyAudit)
	}

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.syncCommands(); err != nil {
		return err
	}

	b.scheduler.Start()
	return nil
}

// syncCommands registers the slash commands on an open session and closes
// the session again when that fails.
func (b *Bot) syncCommands() error {
	if err := b.registerCommands(); err != nil {
		_ = b.session.Close()
		return fmt.Errorf("register commands: %w", err)
	}
	return nil
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	b.scheduler.Stop()
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", event.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.Member == nil || event.User == nil || event.User.Bot {
		return
	}
	if !b.cfg.Notifications.WelcomeDMEnabled {
		return
	}
	userID := event.User.ID
	guildName := event.GuildID
	if guild, err := session.State.Guild(event.GuildID); err == nil {
		guildName = guild.Name
	}
	go func() {
		embed := b.commandEmbed(
			"👋 Welcome to "+guildName+"!",
			"Glad to have you here. Head to the verification channel and press **Verify** to unlock the rest of the server.",
			b.cfg.Notifications.EmbedColors.Action,
			nil,
		)
		if err := b.sendDM(userID, embed); err != nil {
			b.logger.Warn("welcome dm failed", zap.String("user_id", userID), zap.Error(err))
		}
	}()
}

// firstGuildID is the role-grant fallback for flows started in a DM.
func (b *Bot) firstGuildID() string {
	state := b.session.State
	state.RLock()
	defer state.RUnlock()
	for _, guild := range state.Guilds {
		if guild != nil {
			return guild.ID
		}
	}
	return ""
}

func (b *Bot) memberHasAdmin(guild *discordgo.Guild, userID string, member *discordgo.Member) bool {
	if guild == nil {
		return false
	}
	if guild.OwnerID != "" && guild.OwnerID == userID {
		return true
	}
	if member == nil {
		return false
	}
	perms := int64(0)
	roleMap := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roleMap[role.ID] = role
		if role.ID == guild.ID {
			perms |= role.Permissions
		}
	}
	for _, roleID := range member.Roles {
		if role := roleMap[roleID]; role != nil {
			perms |= role.Permissions
		}
	}
	return perms&discordgo.PermissionAdministrator != 0
}

func (b *Bot) memberHasRoleNamed(guildID string, member *discordgo.Member, name string) bool {
	if member == nil || name == "" {
		return false
	}
	guild, err := b.session.State.Guild(guildID)
	if err != nil {
		return false
	}
	for _, role := range guild.Roles {
		if role.Name != name {
			continue
		}
		for _, roleID := range member.Roles {
			if roleID == role.ID {
				return true
			}
		}
	}
	return false
}

// ensureRole returns the id of the named role, creating it when missing.
func (b *Bot) ensureRole(guildID, name string, color int) (string, error) {
	roles, err := b.session.GuildRoles(guildID)
	if err != nil {
		return "", err
	}
	for _, role := range roles {
		if role.Name == name {
			return role.ID, nil
		}
	}
	role, err := b.session.GuildRoleCreate(guildID, &discordgo.RoleParams{Name: name, Color: &color})
	if err != nil {
		return "", err
	}
	b.logger.Info("role created", zap.String("guild_id", guildID), zap.String("role", name))
	return role.ID, nil
}

func (b *Bot) sendDM(userID string, embed *discordgo.MessageEmbed) error {
	channel, err := b.session.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = b.session.ChannelMessageSendEmbed(channel.ID, embed)
	return err
}

func (b *Bot) notifyAudit(ctx context.Context, entry audit.Entry) {
	_ = ctx
	color := b.cfg.Notifications.EmbedColors.Action
	switch entry.Level {
	case audit.LevelWarn:
		color = b.cfg.Notifications.EmbedColors.Warning
	case audit.LevelCrit:
		color = b.cfg.Notifications.EmbedColors.Error
	}
	fields := []*discordgo.MessageEmbedField{{Name: "Event", Value: entry.Event, Inline: true}}
	if entry.UserID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "User", Value: mention(entry.UserID), Inline: true})
	}
	embed := b.commandEmbed("📋 "+entry.Level, entry.Details, color, fields)
	if _, err := b.session.ChannelMessageSendEmbed(b.cfg.Notifications.ModLogChannel, embed); err != nil {
		b.logger.Warn("mod log notify failed", zap.Error(err))
	}
}

// isPermissionError reports whether Discord refused an action for lack of
// permissions or role hierarchy.
func isPermissionError(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeMissingPermissions {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden
}

func mention(userID string) string {
	return "<@" + userID + ">"
}

func channelMention(channelID string) string {
	return "<#" + channelID + ">"
}

func relativeTime(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}
