// Package discord adapts a discordgo session to the bot's chat and voice ports.
package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/vitality/internal/app/notification"
	"github.com/osa030/vitality/internal/app/router"
	"github.com/osa030/vitality/internal/domain/audio"
	"github.com/osa030/vitality/internal/infra/logger"
)

// intents are the gateway intents the bot needs.
const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildVoiceStates |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsMessageContent |
	discordgo.IntentsDirectMessages

// Handlers receives gateway events.
type Handlers struct {
	Message     func(ctx context.Context, m router.Incoming)
	VoiceState  func(ctx context.Context, vs audio.VoiceState)
	VoiceServer func(ctx context.Context, vs audio.VoiceServer)
}

// Gateway is a connected bot session.
type Gateway struct {
	session   *discordgo.Session
	startedAt time.Time
}

// New creates a gateway for a bot token. Open must be called to connect.
func New(token string) (*Gateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create discord session")
	}
	s.Identify.Intents = intents
	s.StateEnabled = true
	return &Gateway{session: s}, nil
}

// Register installs h on the session. ctx is passed to every handler call.
func (g *Gateway) Register(ctx context.Context, h Handlers) {
	g.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		zlog.Info().Msgf("logged in: user=%s, guilds=%d", r.User.String(), len(r.Guilds))
	})
	if h.Message != nil {
		g.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
			defer logger.Recover("discord message")
			h.Message(ctx, toIncoming(m))
		})
	}
	if h.VoiceState != nil {
		g.session.AddHandler(func(_ *discordgo.Session, v *discordgo.VoiceStateUpdate) {
			defer logger.Recover("discord voice state")
			h.VoiceState(ctx, toVoiceState(v))
		})
	}
	if h.VoiceServer != nil {
		g.session.AddHandler(func(_ *discordgo.Session, v *discordgo.VoiceServerUpdate) {
			defer logger.Recover("discord voice server")
			h.VoiceServer(ctx, audio.VoiceServer{GuildID: v.GuildID, Token: v.Token, Endpoint: v.Endpoint})
		})
	}
}

// Open connects to the gateway.
func (g *Gateway) Open() error {
	if err := g.session.Open(); err != nil {
		return errors.Wrap(err, "failed to open discord session")
	}
	g.startedAt = time.Now()
	return nil
}

// Close disconnects from the gateway.
func (g *Gateway) Close() error {
	return g.session.Close()
}

// BotUserID returns the bot's user id. Valid after Open.
func (g *Gateway) BotUserID() string {
	if g.session.State.User == nil {
		return ""
	}
	return g.session.State.User.ID
}

// Send delivers a rendered message as an embed.
func (g *Gateway) Send(ctx context.Context, channelID string, msg notification.Message) error {
	_, err := g.session.ChannelMessageSendEmbed(channelID, toEmbed(msg), discordgo.WithContext(ctx))
	return err
}

// UserVoiceChannel returns the voice channel userID is connected to in a guild.
func (g *Gateway) UserVoiceChannel(guildID, userID string) (string, bool) {
	vs, err := g.session.State.VoiceState(guildID, userID)
	if err != nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}

// JoinVoice asks the gateway to move the bot into a voice channel, deafened.
// The node takes over once the voice state and server updates arrive.
func (g *Gateway) JoinVoice(_ context.Context, guildID, channelID string) error {
	if err := g.session.ChannelVoiceJoinManual(guildID, channelID, false, true); err != nil {
		return errors.Wrapf(err, "failed to join voice channel %s", channelID)
	}
	return nil
}

// LeaveVoice disconnects the bot from the guild's voice channel.
func (g *Gateway) LeaveVoice(_ context.Context, guildID string) error {
	return g.session.ChannelVoiceJoinManual(guildID, "", false, true)
}

// BotTag returns the bot's display tag. Empty before login.
func (g *Gateway) BotTag() string {
	if g.session.State.User == nil {
		return ""
	}
	return g.session.State.User.String()
}

// GuildCount returns the number of cached guilds.
func (g *Gateway) GuildCount() int {
	g.session.State.RLock()
	defer g.session.State.RUnlock()
	return len(g.session.State.Guilds)
}

// StartedAt returns when the gateway connection was opened.
func (g *Gateway) StartedAt() time.Time {
	return g.startedAt
}

// GuildName returns the cached guild name, or an empty string.
func (g *Gateway) GuildName(guildID string) string {
	guild, err := g.session.State.Guild(guildID)
	if err != nil {
		return ""
	}
	return guild.Name
}

// ChannelName returns the cached channel name, or an empty string.
func (g *Gateway) ChannelName(channelID string) string {
	ch, err := g.session.State.Channel(channelID)
	if err != nil {
		return ""
	}
	return ch.Name
}

func toIncoming(m *discordgo.MessageCreate) router.Incoming {
	in := router.Incoming{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
	}
	if m.Author != nil {
		in.AuthorID = m.Author.ID
		in.AuthorBot = m.Author.Bot
		in.AuthorName = m.Author.Username
		if m.Author.GlobalName != "" {
			in.AuthorName = m.Author.GlobalName
		}
	}
	if m.Member != nil && m.Member.Nick != "" {
		in.AuthorName = m.Member.Nick
	}
	return in
}

func toVoiceState(v *discordgo.VoiceStateUpdate) audio.VoiceState {
	if v.VoiceState == nil {
		return audio.VoiceState{}
	}
	return audio.VoiceState{
		GuildID:   v.GuildID,
		ChannelID: v.ChannelID,
		UserID:    v.UserID,
		SessionID: v.SessionID,
	}
}

func toEmbed(msg notification.Message) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Description,
		URL:         msg.URL,
		Color:       msg.Color,
	}
	if msg.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: msg.Thumbnail}
	}
	if msg.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: msg.Footer}
	}
	for _, f := range msg.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	return embed
}
