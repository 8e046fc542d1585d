package bot

import "github.com/bwmarrin/discordgo"

var (
	adminPermission int64 = discordgo.PermissionAdministrator
	noDM                  = false
	oneMinValue           = 1.0
)

func localized(en, fr, es string) *map[discordgo.Locale]string {
	return &map[discordgo.Locale]string{
		discordgo.EnglishUS: en,
		discordgo.French:    fr,
		discordgo.SpanishES: es,
	}
}

func (b *Bot) commandDefinitions() []*discordgo.ApplicationCommand {
	maxMute := float64(b.cfg.Moderation.MaxMuteSeconds)
	if maxMute <= 0 {
		maxMute = 86400
	}
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "giveaway",
			Description:              "Start a giveaway",
			DescriptionLocalizations: localized("Start a giveaway", "Lancer un giveaway", "Iniciar un sorteo"),
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "prize",
					Description: "What is being given away",
					Required:    true,
					MaxLength:   256,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "duration",
					Description: "How long it runs, e.g. 30m, 2h, 1d or 1w",
					Required:    true,
				},
			},
		},
		{
			Name:                     "giveaway_info",
			Description:              "List active giveaways",
			DescriptionLocalizations: localized("List active giveaways", "Lister les giveaways actifs", "Listar sorteos activos"),
			DMPermission:             &noDM,
		},
		{
			Name:                     "end_giveaway",
			Description:              "End a giveaway early",
			DescriptionLocalizations: localized("End a giveaway early", "Terminer un giveaway", "Terminar un sorteo"),
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &noDM,
		},
		{
			Name:                     "setup_verification",
			Description:              "Post the verification panel",
			DescriptionLocalizations: localized("Post the verification panel", "Publier le panneau de verification", "Publicar el panel de verificacion"),
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "Channel for the panel (defaults to this one)",
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
				},
			},
		},
		{
			Name:                     "verify_stats",
			Description:              "Show verification statistics",
			DescriptionLocalizations: localized("Show verification statistics", "Statistiques de verification", "Estadisticas de verificacion"),
			DefaultMemberPermissions: &adminPermission,
		},
		{
			Name:                     "vouch",
			Description:              "Leave a review",
			DescriptionLocalizations: localized("Leave a review", "Laisser un avis", "Dejar una resena"),
			DMPermission:             &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message",
					Description: "Your review",
					Required:    true,
					MaxLength:   1000,
				},
				{
					Type:        discordgo.ApplicationCommandOptionAttachment,
					Name:        "image",
					Description: "Optional screenshot",
				},
			},
		},
		{
			Name:                     "setup-reviews",
			Description:              "Keep the review instructions at the bottom of a channel",
			DescriptionLocalizations: localized("Keep the review instructions at the bottom of a channel", "Epingler les instructions d'avis", "Fijar las instrucciones de resenas"),
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "Review channel",
					Required:     true,
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
				},
			},
		},
		{
			Name:                     "remove-sticky",
			Description:              "Stop reposting the review instructions",
			DescriptionLocalizations: localized("Stop reposting the review instructions", "Retirer le message epingle", "Quitar el mensaje fijado"),
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "Review channel",
					Required:     true,
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
				},
			},
		},
		{
			Name:                     "vouch_stats",
			Description:              "Show review statistics",
			DescriptionLocalizations: localized("Show review statistics", "Statistiques des avis", "Estadisticas de resenas"),
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "period",
					Description: "Limit to a recent period",
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "day", Value: "day"},
						{Name: "week", Value: "week"},
					},
				},
			},
		},
		{
			Name:                     "mute",
			Description:              "Time out a member",
			DescriptionLocalizations: localized("Time out a member", "Rendre un membre muet", "Silenciar a un miembro"),
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member to mute",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "duration",
					Description: "Duration in seconds",
					Required:    true,
					MinValue:    &oneMinValue,
					MaxValue:    maxMute,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Reason",
				},
			},
		},
		{
			Name:                     "unmute",
			Description:              "Remove a member's timeout",
			DescriptionLocalizations: localized("Remove a member's timeout", "Rendre la parole a un membre", "Quitar el silencio a un miembro"),
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member to unmute",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Reason",
				},
			},
		},
		{
			Name:                     "clear",
			Description:              "Delete recent messages in this channel",
			DescriptionLocalizations: localized("Delete recent messages in this channel", "Supprimer les messages recents", "Borrar mensajes recientes"),
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "How many messages (1-100)",
					Required:    true,
					MinValue:    &oneMinValue,
					MaxValue:    maxClearMessages,
				},
			},
		},
		{
			Name:                     "announcement",
			Description:              "Post an announcement",
			DescriptionLocalizations: localized("Post an announcement", "Publier une annonce", "Publicar un anuncio"),
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "title",
					Description: "Announcement title",
					Required:    true,
					MaxLength:   240,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "description",
					Description: "Announcement text",
					Required:    true,
					MaxLength:   4000,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "image_url",
					Description: "Link to an image uploaded to Discord",
				},
			},
		},
		{
			Name:                     "update_log",
			Description:              "Post a release changelog",
			DescriptionLocalizations: localized("Post a release changelog", "Publier un journal des mises a jour", "Publicar un registro de cambios"),
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "version",
					Description: "Version number",
					Required:    true,
					MaxLength:   64,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "updates",
					Description: "Changes, one per line",
					Required:    true,
					MaxLength:   1000,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "download_link",
					Description: "Download URL",
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "image_url",
					Description: "Link to an image uploaded to Discord",
				},
			},
		},
		{
			Name:                     "setup-tickets",
			Description:              "Post the ticket panel",
			DescriptionLocalizations: localized("Post the ticket panel", "Publier le panneau de tickets", "Publicar el panel de tickets"),
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &noDM,
		},
	}
}

func (b *Bot) registerCommands() error {
	commands := b.commandDefinitions()

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}
	return nil
}
