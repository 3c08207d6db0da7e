package notificator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/core-coin/liqnotify/internal/commands"
	"github.com/core-coin/liqnotify/internal/format"
	"github.com/core-coin/liqnotify/internal/models"
	"github.com/core-coin/liqnotify/pkg/logger"
)

var (
	ErrCategoryNotFound = errors.New("notification category not found")
	ErrChannelNotFound  = errors.New("notification channel not found")
)

// DiscordNotificator owns the bot session. It feeds incoming messages to the
// command router and posts liquidity broadcasts to one channel.
type DiscordNotificator struct {
	logger  *logger.Logger
	session *discordgo.Session

	category string
	channel  string
}

func NewDiscordNotificator(logger *logger.Logger, token, category, channel string) (*DiscordNotificator, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	return &DiscordNotificator{
		logger:   logger,
		session:  session,
		category: category,
		channel:  channel,
	}, nil
}

// Open registers the message handler and connects the gateway.
func (d *DiscordNotificator) Open(router *commands.Router) error {
	d.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		d.logger.Info("Logged in to Discord", "user", r.User.String(), "guilds", len(r.Guilds))
	})
	d.session.AddHandler(d.onMessageCreate(router))

	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	return nil
}

func (d *DiscordNotificator) Close() error {
	return d.session.Close()
}

func (d *DiscordNotificator) Name() string {
	return "discord"
}

func (d *DiscordNotificator) Send(ctx context.Context, notification *models.Notification) error {
	channelID, err := d.findChannel()
	if err != nil {
		d.logger.Warn("Dropping notification", "category", d.category, "channel", d.channel,
			"token", notification.Token, "error", err)
		return err
	}

	message := format.ComposeNotification(notification.Symbol, notification.Token, format.Mentions(notification.Subscribers))
	if _, err := d.session.ChannelMessageSend(channelID, message, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to post to channel %s: %w", channelID, err)
	}
	return nil
}

func (d *DiscordNotificator) findChannel() (string, error) {
	d.session.State.RLock()
	defer d.session.State.RUnlock()

	var channels []*discordgo.Channel
	for _, g := range d.session.State.Guilds {
		channels = append(channels, g.Channels...)
	}
	return resolveChannel(channels, d.category, d.channel)
}

// resolveChannel finds the category by case-insensitive name, then its child
// text channel by exact name.
func resolveChannel(channels []*discordgo.Channel, category, name string) (string, error) {
	var parent *discordgo.Channel
	for _, c := range channels {
		if c.Type == discordgo.ChannelTypeGuildCategory && strings.EqualFold(c.Name, category) {
			parent = c
			break
		}
	}
	if parent == nil {
		return "", fmt.Errorf("%w: %q", ErrCategoryNotFound, category)
	}

	for _, c := range channels {
		if c.ParentID == parent.ID && c.Name == name {
			return c.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %q in %q", ErrChannelNotFound, name, parent.Name)
}

func (d *DiscordNotificator) onMessageCreate(router *commands.Router) func(*discordgo.Session, *discordgo.MessageCreate) {
	return func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil {
			return
		}
		msg := commands.Message{
			AuthorID:  m.Author.ID,
			AuthorTag: m.Author.String(),
			Content:   m.Content,
			Bot:       m.Author.Bot,
		}
		router.Handle(context.Background(), msg, &discordReplier{session: s, message: m.Message})
	}
}

type discordReplier struct {
	session *discordgo.Session
	message *discordgo.Message
}

func (r *discordReplier) Reply(ctx context.Context, text string) error {
	_, err := r.session.ChannelMessageSendReply(r.message.ChannelID, text, r.message.Reference(), discordgo.WithContext(ctx))
	return err
}
