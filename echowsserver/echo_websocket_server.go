// This package contains the implementation of a simple echo websocket server. It plays the
// origin server role behind the relay in integration tests and in the demo.
package echowsserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Structure for the websocket server
type EchoWebsocketServer struct {
	// Underlying http.Server
	httpServer *http.Server
	// Websocket upgrader
	upgrader websocket.Upgrader
	// Indicates that server has started
	started bool
	// Context bound to websocket server lifetime
	serverCtx context.Context
	// Cancel function used to stop server
	cancelServerCtx context.CancelFunc
	// Internal mutex used to coordinate start/stop
	startMu *sync.Mutex
	// Logger
	logger *zap.Logger
}

// # Description
//
// Factory which creates a new, non-started EchoWebsocketServer.
//
// # Inputs
//
//   - httpServer: The underlying HTTP Server to use. The provided HTTP Server handler will be
//     overriden with this server handler. If nil is provided, a default HTTP server listening
//     on localhost:8080 will be used.
//
//   - logger: Logger to use. If nil, a no-op logger will be used.
//
// # Returns
//
// A new, non-started EchoWebsocketServer.
func NewEchoWebsocketServer(httpServer *http.Server, logger *zap.Logger) *EchoWebsocketServer {
	if httpServer == nil {
		httpServer = &http.Server{
			Addr:        "localhost:8080",
			BaseContext: func(l net.Listener) context.Context { return context.Background() },
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	// Build server with initial state
	wssrv := &EchoWebsocketServer{
		httpServer: httpServer,
		upgrader:   websocket.Upgrader{},
		started:    false,
		startMu:    &sync.Mutex{},
		logger:     logger,
	}
	// Register server as handler of the underlying http server
	httpServer.Handler = wssrv
	return wssrv
}

// # Description
//
// Start the websocket server that will accept incoming websocket connections.
func (srv *EchoWebsocketServer) Start() error {
	// Lock start mutex
	srv.startMu.Lock()
	defer srv.startMu.Unlock()
	if srv.started {
		// Server is already started -> error
		return fmt.Errorf("server already started")
	}
	// Create cancelable server context
	srv.serverCtx, srv.cancelServerCtx = context.WithCancel(context.Background())
	// Start the server
	srv.started = true
	go srv.httpServer.ListenAndServe()
	return nil
}

// # Description
//
// Stop the websocket server.
//
// # Returns
//
// Nil in case of success, an error otherwise.
func (srv *EchoWebsocketServer) Stop() error {
	// Lock start mutex
	srv.startMu.Lock()
	defer srv.startMu.Unlock()
	// Check started flag
	if !srv.started {
		return fmt.Errorf("server not started")
	}
	// Cancel server context to shutdown all goroutines
	srv.cancelServerCtx()
	srv.started = false
	// Close server
	return srv.httpServer.Close()
}

// # Description
//
// Server handler which accepts incoming websocket connections.
func (srv *EchoWebsocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Accept incoming client connection
	srv.logger.Debug("new client connection")
	c, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.logger.Error("an error occured while accepting client connection", zap.Error(err))
		return
	}
	// Start goroutines which will handle the new client
	go srv.closeWatchdog(srv.serverCtx, c)
	go srv.runClientSession(srv.serverCtx, uuid.New().String(), c)
}

// Manages the client session and handle echo feature until the connection is closed.
func (srv *EchoWebsocketServer) runClientSession(ctx context.Context, sessionId string, conn *websocket.Conn) {
	logger := srv.logger.With(zap.String("session_id", sessionId))
	for {
		// Read message
		mt, message, err := conn.ReadMessage()
		if err != nil {
			ce := &websocket.CloseError{}
			if errors.As(err, &ce) {
				logger.Debug("connection closed", zap.Error(ce))
				return
			}
			if errors.Is(err, io.EOF) ||
				strings.Contains(strings.ToLower(err.Error()), "use of closed network connection") {
				// Connection is closed
				logger.Debug("connection closed", zap.Error(err))
				return
			}
			// Other errors
			logger.Debug("read error", zap.Error(err))
			return
		}
		// Log received message
		logger.Debug("message received", zap.Int("type", mt), zap.ByteString("message", message))
		// Echo
		err = conn.WriteMessage(mt, message)
		if err != nil {
			logger.Debug("write error", zap.Error(err))
			return
		}
	}
}

// This function waits for a cancelation signal on provided context Done channel
// and close the provided websocket connection
func (srv *EchoWebsocketServer) closeWatchdog(ctx context.Context, conn *websocket.Conn) {
	// Wait for context to be canceled
	<-ctx.Done()
	// Close connection
	conn.Close()
}
