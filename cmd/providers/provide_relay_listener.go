package providers

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"gitlab.com/lake42/go-websocket-relay/cmd/listener"
)

func ProvideRelayListener(lc fx.Lifecycle, logger *zap.Logger) *listener.RelayListener {
	// Build listener - intercepts websocket upgrades on port 8080 and relays them to the echo
	// origin server on port 8081
	l := listener.NewRelayListener("localhost:8080", "localhost:8081", logger, nil, nil)
	// Register Start and Stop hooks to Start and Stop the listener
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return l.Start()
		},
		OnStop: func(ctx context.Context) error {
			return l.Stop()
		},
	})
	// Return the listener
	return l
}
