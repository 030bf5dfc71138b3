// Package notify pushes realtime messages to organizer dashboards and ticket
// holders.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	pubnub "github.com/pubnub/go/v7"
)

type Notifier interface {
	Publish(ctx context.Context, channel string, message map[string]any) error
}

func EventChannel(eventID string) string { return "event-" + eventID }

func UserChannel(userID string) string { return "user-" + userID }

type Noop struct{}

func (Noop) Publish(context.Context, string, map[string]any) error { return nil }

type PubNubConfig struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

type PubNub struct {
	pn *pubnub.PubNub
}

func NewPubNub(cfg PubNubConfig) *PubNub {
	pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnConfig.PublishKey = cfg.PublishKey
	pnConfig.SubscribeKey = cfg.SubscribeKey
	pnConfig.SecretKey = cfg.SecretKey

	return &PubNub{pn: pubnub.NewPubNub(pnConfig)}
}

func (p *PubNub) Publish(ctx context.Context, channel string, message map[string]any) error {
	_, _, err := p.pn.PublishWithContext(ctx).
		Channel(channel).
		Message(message).
		Execute()
	if err != nil {
		return fmt.Errorf("pubnub publish to %s: %w", channel, err)
	}
	return nil
}

// Async publishes in the background and only logs failures; notifications
// must never hold up or fail the request that produced them.
func Async(n Notifier, log *slog.Logger, channel string, message map[string]any) {
	go func() {
		if err := n.Publish(context.Background(), channel, message); err != nil {
			log.Warn("notification failed", "channel", channel, "error", err)
		}
	}()
}
