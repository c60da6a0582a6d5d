// This package contains a minimal intercepting listener used by the demo. It accepts raw TCP
// connections, parses a single websocket upgrade request per connection and hands the connection
// over to a relay session targeting a fixed origin server.
package listener

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"gitlab.com/lake42/go-websocket-relay/wsrelay"
)

// Origin dialer which ignores the intercepted request target and always dials the configured
// origin server. Used by the demo so relayed clients do not loop back into the listener.
type fixedOriginDialer struct {
	host string
}

func (dialer fixedOriginDialer) Dial(ctx context.Context, scheme string, host string) (net.Conn, error) {
	netDialer := net.Dialer{}
	return netDialer.DialContext(ctx, "tcp", dialer.host)
}

// Structure for the intercepting relay listener
type RelayListener struct {
	// Address the listener accepts connections on
	addr string
	// Address of the origin server every session is relayed to
	originHost string
	// Underlying TCP listener, nil until started
	netListener net.Listener
	// Indicates that listener has started
	started bool
	// Context bound to listener lifetime
	listenerCtx context.Context
	// Cancel function used to stop the listener
	cancelListenerCtx context.CancelFunc
	// Internal mutex used to coordinate start/stop
	startMu *sync.Mutex
	// Logger
	logger *zap.Logger
	// Tracer provider used by relay sessions
	tracerProvider trace.TracerProvider
	// Meter provider used by relay sessions
	meterProvider metric.MeterProvider
}

// # Description
//
// Factory which creates a new, non-started RelayListener.
//
// # Inputs
//
//   - addr: Address to accept intercepted connections on.
//   - originHost: host:port of the origin server every session is relayed to.
//   - logger: Logger to use. If nil, a no-op logger will be used.
//   - tracerProvider: Tracer provider to use. If nil, the global tracer provider will be used.
//   - meterProvider: Meter provider to use. If nil, the global meter provider will be used.
//
// # Returns
//
// A new, non-started RelayListener.
func NewRelayListener(
	addr string,
	originHost string,
	logger *zap.Logger,
	tracerProvider trace.TracerProvider,
	meterProvider metric.MeterProvider) *RelayListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelayListener{
		addr:           addr,
		originHost:     originHost,
		started:        false,
		startMu:        &sync.Mutex{},
		logger:         logger,
		tracerProvider: tracerProvider,
		meterProvider:  meterProvider,
	}
}

// # Description
//
// Start accepting intercepted connections.
func (l *RelayListener) Start() error {
	// Lock start mutex
	l.startMu.Lock()
	defer l.startMu.Unlock()
	if l.started {
		return fmt.Errorf("listener already started")
	}
	netListener, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.addr, err)
	}
	l.netListener = netListener
	l.listenerCtx, l.cancelListenerCtx = context.WithCancel(context.Background())
	l.started = true
	go l.acceptLoop()
	return nil
}

// # Description
//
// Stop the listener. Sessions already relaying are signaled to shut down.
func (l *RelayListener) Stop() error {
	// Lock start mutex
	l.startMu.Lock()
	defer l.startMu.Unlock()
	if !l.started {
		return fmt.Errorf("listener not started")
	}
	// Cancel listener context to shutdown all relay sessions
	l.cancelListenerCtx()
	l.started = false
	return l.netListener.Close()
}

// Accept incoming connections and spawn a goroutine per intercepted connection.
func (l *RelayListener) acceptLoop() {
	for {
		conn, err := l.netListener.Accept()
		if err != nil {
			// Listener has been closed
			return
		}
		go l.handleConnection(conn)
	}
}

// Parse the upgrade request from the intercepted connection and run a relay session.
func (l *RelayListener) handleConnection(conn net.Conn) {
	reader := bufio.NewReader(conn)
	request, err := http.ReadRequest(reader)
	if err != nil {
		l.logger.Warn("failed to parse intercepted request", zap.Error(err))
		conn.Close()
		return
	}
	relay, err := wsrelay.NewWebsocketRelay(
		conn,
		reader,
		request,
		fixedOriginDialer{host: l.originHost},
		nil,
		nil,
		l.logger,
		l.tracerProvider,
		l.meterProvider)
	if err != nil {
		l.logger.Warn("failed to create relay session", zap.Error(err))
		conn.Close()
		return
	}
	if err := relay.Run(l.listenerCtx); err != nil {
		l.logger.Warn("relay session failed", zap.Error(err))
		conn.Close()
	}
}
