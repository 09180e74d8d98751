// Package discord delivers status-change notifications to a Discord
// channel. Delivery is fire and forget: failures are logged here and never
// reach the watch loops.
package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/hako/durafmt"
	"github.com/rs/zerolog"

	"github.com/bnema/senderwatch/internal/domain"
	"github.com/bnema/senderwatch/internal/ports"
)

// messageSender is the slice of discordgo.Session the notifier needs.
type messageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Notifier struct {
	session        messageSender
	defaultChannel string
	logger         zerolog.Logger
}

var _ ports.Notifier = (*Notifier)(nil)

func New(token, defaultChannel string, logger zerolog.Logger) (*Notifier, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return NewWithSession(session, defaultChannel, logger), nil
}

func NewWithSession(session messageSender, defaultChannel string, logger zerolog.Logger) *Notifier {
	return &Notifier{
		session:        session,
		defaultChannel: defaultChannel,
		logger:         logger.With().Str("component", "notifier").Logger(),
	}
}

func (n *Notifier) Notify(_ context.Context, event domain.StatusChangeEvent, channelID string) {
	if channelID == "" {
		channelID = n.defaultChannel
	}
	if channelID == "" {
		n.logger.Warn().Str("sender", event.Sender).Msg("no channel for notification")
		return
	}

	if _, err := n.session.ChannelMessageSend(channelID, formatEvent(event)); err != nil {
		n.logger.Error().Err(err).
			Str("sender", event.Sender).
			Str("channel_id", channelID).
			Msg("notification delivery failed")
	}
}

func formatEvent(event domain.StatusChangeEvent) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**Status change**\n")
	fmt.Fprintf(&b, "Sender: `%s`\n", event.Sender)
	fmt.Fprintf(&b, "ID: `%s`\n", event.ID)
	fmt.Fprintf(&b, "`%s` -> `%s`\n", orDash(event.OldStatus), event.NewStatus)

	if event.Elapsed > 0 {
		fmt.Fprintf(&b, "After: %s\n", durafmt.Parse(event.Elapsed).LimitFirstN(2).String())
	}

	available := domain.CompactAmount(event.Record.Available)
	taken := domain.CompactAmount(event.Record.Taken)
	if available != "0" || taken != "0" {
		fmt.Fprintf(&b, "Available: %s | Taken: %s\n", available, taken)
	}

	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
