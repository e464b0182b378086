package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/forestpark/assistant/backend/internal/config"
)

var ErrNotConfigured = errors.New("relay: bot credentials are not configured")

// NewFromConfig builds the relay selected by BOT_PROVIDER.
func NewFromConfig(ctx context.Context, bot config.BotConfig, ark config.ArkConfig) (Relay, error) {
	switch bot.Provider {
	case config.ProviderCoze:
		if !bot.Enabled() {
			return nil, ErrNotConfigured
		}
		return NewCoze(Config{
			Endpoint:    bot.Endpoint,
			BotID:       bot.BotID,
			AuthToken:   bot.AuthToken,
			IdleTimeout: bot.IdleTimeout,
		}), nil
	case config.ProviderArk:
		chatModel, err := ark.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		return NewArk(ctx, chatModel)
	default:
		return nil, fmt.Errorf("unsupported bot provider %q", bot.Provider)
	}
}
