package providers

import (
	"context"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"gitlab.com/lake42/go-websocket-relay/echowsserver"
)

func ProvideEchoServer(lc fx.Lifecycle, logger *zap.Logger) *echowsserver.EchoWebsocketServer {
	// Build server - plays the origin server role behind the relay
	srv := echowsserver.NewEchoWebsocketServer(&http.Server{Addr: "localhost:8081"}, logger)
	// Register Start and Stop hooks to Start and Stop the server
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return srv.Start()
		},
		OnStop: func(ctx context.Context) error {
			return srv.Stop()
		},
	})
	// Return the server
	return srv
}
