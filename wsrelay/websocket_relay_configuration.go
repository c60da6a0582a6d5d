package wsrelay

import (
	"github.com/go-playground/validator/v10"
)

// Defines configuration options for the websocket relay.
//
// Use the factory function to get a new instance of the struct with nice defaults and then modify
// settings using With*** methods.
type WebsocketRelayConfigurationOptions struct {
	// Bounded wait interval used by each relay direction when waiting for its connection to
	// become readable (milliseconds). The external shutdown signal is observed once per wait
	// interval: a smaller value means a more responsive shutdown at the cost of more wakeups.
	//
	// Defaults to 1000. Must be at least 1.
	ReadinessPollIntervalMs int64 `validate:"gte=1"`
	// Delay to complete the whole handshake coordination phase: dialing the origin server,
	// relaying the upgrade request, reading the handshake response and completing the client
	// facing handshake (milliseconds).
	//
	// Defaults to 30000 - 0 disables the timeout.
	HandshakeTimeoutMs int64 `validate:"gte=0"`
}

// # Description
//
// Factory which creates a new WebsocketRelayConfigurationOptions with default values set.
//
// # Return
//
// New WebsocketRelayConfigurationOptions with default values set.
func NewWebsocketRelayConfigurationOptions() *WebsocketRelayConfigurationOptions {
	return &WebsocketRelayConfigurationOptions{
		ReadinessPollIntervalMs: 1000,
		HandshakeTimeoutMs:      30000,
	}
}

// # Description
//
// Set opts.ReadinessPollIntervalMs and return the modified object. Method does not validate
// inputs.
//
// # ReadinessPollIntervalMs
//
// This option defines the bounded wait interval used by each relay direction when waiting for
// its connection to become readable. The shutdown signal is polled once per interval.
//
// Defaults to 1000. Must be greater or equal to 1.
//
// # Return
//
// The modified options.
func (opts *WebsocketRelayConfigurationOptions) WithReadinessPollIntervalMs(
	value int64) *WebsocketRelayConfigurationOptions {
	// Set and return
	opts.ReadinessPollIntervalMs = value
	return opts
}

// # Description
//
// Set opts.HandshakeTimeoutMs and return the modified object. Method does not validate inputs.
//
// # HandshakeTimeoutMs
//
// This option defines the delay to complete the whole handshake coordination phase.
//
// Defaults to 30000 (30 seconds) - 0 disables the timeout.
//
// # Return
//
// The modified options.
func (opts *WebsocketRelayConfigurationOptions) WithHandshakeTimeoutMs(
	value int64) *WebsocketRelayConfigurationOptions {
	// Set and return
	opts.HandshakeTimeoutMs = value
	return opts
}

// # Description
//
// Validate the provided options.
//
// # Return
//
// Nil if provided options are valid. An error describing the violated constraint otherwise.
func Validate(opts *WebsocketRelayConfigurationOptions) error {
	return validator.New().Struct(opts)
}
