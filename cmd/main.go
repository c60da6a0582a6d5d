package main

import (
	"go.uber.org/fx"

	"gitlab.com/lake42/go-websocket-relay/cmd/providers"
)

func main() {
	fx.New(
		fx.Provide(providers.ProvideLogger),
		// Use invoke to force dependencies to be instanciated and hooks to be registered and executed
		fx.Invoke(providers.ProvideEchoServer), // Provide the origin server first so it starts before the listener
		fx.Invoke(providers.ProvideRelayListener),
	).Run()
}
