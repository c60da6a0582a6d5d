package wsrelay

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"gitlab.com/lake42/go-websocket-relay/wsrelay/wscodec"
	wscodecgobwas "gitlab.com/lake42/go-websocket-relay/wsrelay/wscodec/gobwas"
	"gitlab.com/lake42/go-websocket-relay/wsrelay/wsheaders"
)

/*************************************************************************************************/
/* SESSION LIFECYCLE                                                                             */
/*************************************************************************************************/

// Lifecycle state of a relay session.
type SessionState int

const (
	// The upgrade exchange with the origin server is being coordinated
	StateHandshaking SessionState = iota
	// Frames are being relayed between the two connections
	StateRelaying
	// The session has ended
	StateClosed
)

func (state SessionState) String() string {
	switch state {
	case StateRelaying:
		return "relaying"
	case StateClosed:
		return "closed"
	default:
		return "handshaking"
	}
}

// Reason a relay session ended with.
type TerminationReason int

const (
	// The session has not ended yet
	TerminationNone TerminationReason = iota
	// A CLOSE frame was relayed in either direction
	TerminationGracefulClose
	// A transport level failure occurred on one of the connections
	TerminationPeerDisconnect
	// The external shutdown signal was observed
	TerminationShutdown
	// The handshake with the origin server failed
	TerminationHandshakeFailure
	// An unexpected failure occurred while relaying
	TerminationRelayFailure
)

func (reason TerminationReason) String() string {
	switch reason {
	case TerminationGracefulClose:
		return "graceful close"
	case TerminationPeerDisconnect:
		return "peer disconnect"
	case TerminationShutdown:
		return "external shutdown"
	case TerminationHandshakeFailure:
		return "handshake failure"
	case TerminationRelayFailure:
		return "relay failure"
	default:
		return "none"
	}
}

// Parameters negotiated by the origin server during the upgrade handshake. They are extracted
// from the origin server 101 response and consumed exactly once to build the 101 response sent
// to the client.
type NegotiatedParameters struct {
	// Accept token presented by the origin server
	Accept string
	// Subprotocol selected by the origin server. Empty when none was selected.
	Protocol string
	// Extensions selected by the origin server. Opaque tokens, never decoded further.
	Extensions []string
}

// Terminal outcome produced by one relay flow. The first outcome decides the session disposition.
type pumpOutcome struct {
	// Direction of the flow which produced the outcome
	direction Direction
	// Why the flow stopped
	reason TerminationReason
	// Decoded close info when reason is a graceful close
	closeInfo *CloseInfo
	// Side the failure is attributed to when reason is a disconnect or a relay failure
	side Side
	// Cause when reason is a disconnect or a relay failure
	err error
}

/*************************************************************************************************/
/* WEBSOCKET RELAY                                                                               */
/*************************************************************************************************/

// Relay session which takes over an intercepted websocket upgrade: it coordinates the handshake
// with the origin server on behalf of the client and then relays frames bit-for-bit between the
// two connections until a CLOSE frame is relayed, a connection fails or the session is shut down.
//
// Only websocket version 13 sessions are supported. The relay is transparent to any negotiated
// subprotocol and extensions: frames are forwarded verbatim and payloads are never interpreted.
// Fragmented messages are not reassembled, each wire frame is forwarded independently.
type WebsocketRelay struct {
	// Intercepted client connection. Handed over after the upgrade request has been parsed.
	clientConn net.Conn
	// Buffered reader over the client connection used for readiness probing and frame decoding.
	clientReader *bufio.Reader
	// Connection to the origin server. Established during the handshake phase.
	serverConn net.Conn
	// Buffered reader over the server connection. Created during the handshake phase so frames
	// buffered behind the handshake response are not lost.
	serverReader *bufio.Reader
	// Original client upgrade request. Immutable once received.
	request *http.Request
	// Opaque client key extracted from the upgrade request headers.
	clientKey string
	// Subprotocols requested by the client. Kept for diagnostics only.
	clientProtocol string
	// Extensions requested by the client. Opaque tokens, kept for diagnostics only.
	clientExtensions []string
	// Parameters negotiated by the origin server. Nil until the handshake response is validated.
	negotiated *NegotiatedParameters
	// Dialer used to establish the origin server connection.
	dialer OriginDialerInterface
	// Frame codec used to decode and re-encode relayed frames.
	codec wscodec.FrameCodecInterface
	// Configuration options used by the relay.
	opts *WebsocketRelayConfigurationOptions
	// Logger used to emit per-frame and termination diagnostic records.
	logger *zap.Logger
	// Tracer used to instrument the relay code.
	tracer trace.Tracer
	// Counter of relayed frames.
	relayedFrames metric.Int64Counter
	// Counter of relayed payload bytes.
	relayedBytes metric.Int64Counter
	// Unique ID bound to the session lifetime. Used to correlate diagnostic records.
	sessionId string
	// Mutex protecting the lifecycle state and the termination outcome.
	stateMu sync.Mutex
	// Session lifecycle state.
	state SessionState
	// Why the session ended. TerminationNone until the state is StateClosed.
	reason TerminationReason
	// Close info of the relayed CLOSE frame when the session ended with a graceful close.
	closeInfo *CloseInfo
	// Side the disconnect is attributed to when the session ended with a peer disconnect.
	disconnectedSide Side
}

// # Description
//
// Factory - Return a new relay session for the provided intercepted upgrade request.
//
// The upgrade request must carry a Sec-WebSocket-Key header: the relay validates the origin
// server accept token against it. The client requested subprotocol and extensions are extracted
// from the request headers for diagnostics; negotiation itself is left entirely to the origin
// server.
//
// # Inputs
//
//   - clientConn: Intercepted client connection, positioned right after the upgrade request.
//   - clientReader: Buffered reader the upgrade request was parsed from. Provide it so bytes it
//     may have buffered past the request are not lost. If nil, a fresh reader is created.
//   - request: Parsed client upgrade request. Used to reach the origin server and forwarded
//     unmodified to it.
//   - dialer: Origin server dialer. If nil, a default net/tls backed dialer is used.
//   - codec: Frame codec. If nil, the gobwas/ws backed codec is used.
//   - opts: Relay configuration options. If nil, default options are used.
//   - logger: Logger used for diagnostic records. If nil, a no-op logger is used.
//   - tracerProvider: OpenTelemetry tracer provider to use. If nil, global provider is used.
//   - meterProvider: OpenTelemetry meter provider to use. If nil, global provider is used.
//
// # Return
//
// Factory returns a new relay session in case of success. If the provided connection or request
// is nil, if the request carries no client key or if provided options are invalid, the factory
// returns nil and an error.
func NewWebsocketRelay(
	clientConn net.Conn,
	clientReader *bufio.Reader,
	request *http.Request,
	dialer OriginDialerInterface,
	codec wscodec.FrameCodecInterface,
	opts *WebsocketRelayConfigurationOptions,
	logger *zap.Logger,
	tracerProvider trace.TracerProvider,
	meterProvider metric.MeterProvider) (*WebsocketRelay, error) {
	// Check provided client connection is not nil
	if clientConn == nil {
		return nil, fmt.Errorf("provided client connection is nil")
	}
	// Check provided upgrade request is not nil
	if request == nil {
		return nil, fmt.Errorf("provided upgrade request is nil")
	}
	// The client key is required: the origin server accept token derives from it
	clientKey := wsheaders.ClientKey(request.Header)
	if clientKey == "" {
		return nil, fmt.Errorf("upgrade request has no %s header", wsheaders.ClientKeyHeader)
	}
	if clientReader == nil {
		clientReader = bufio.NewReader(clientConn)
	}
	// Use default collaborators if not set
	if dialer == nil {
		dialer = NewNetOriginDialer(nil)
	}
	if codec == nil {
		codec = wscodecgobwas.NewGobwasFrameCodec()
	}
	// Use default options if not set
	if opts == nil {
		opts = NewWebsocketRelayConfigurationOptions()
	}
	// Validate options
	err := Validate(opts)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	// Get providers from globals if not provided
	if tracerProvider == nil {
		tracerProvider = otel.GetTracerProvider()
	}
	if meterProvider == nil {
		meterProvider = otel.GetMeterProvider()
	}
	// Create counters of relayed traffic
	meter := meterProvider.Meter(pkgName, metric.WithInstrumentationVersion(pkgVersion))
	relayedFrames, err := meter.Int64Counter(
		metricRelayedFrames,
		metric.WithDescription("Number of websocket frames relayed"))
	if err != nil {
		return nil, err
	}
	relayedBytes, err := meter.Int64Counter(
		metricRelayedBytes,
		metric.WithDescription("Number of websocket payload bytes relayed"))
	if err != nil {
		return nil, err
	}
	// Return relay session
	return &WebsocketRelay{
		clientConn:       clientConn,
		clientReader:     clientReader,
		request:          request,
		clientKey:        clientKey,
		clientProtocol:   wsheaders.Protocol(request.Header),
		clientExtensions: wsheaders.Extensions(request.Header),
		dialer:           dialer,
		codec:            codec,
		opts:             opts,
		logger:           logger,
		tracer:           tracerProvider.Tracer(pkgName, trace.WithInstrumentationVersion(pkgVersion)),
		relayedFrames:    relayedFrames,
		relayedBytes:     relayedBytes,
		sessionId:        uuid.New().String(),
		state:            StateHandshaking,
		reason:           TerminationNone,
	}, nil
}

// # Description
//
// Run the relay session to completion: coordinate the handshake with the origin server, complete
// the client facing handshake and then relay frames between the two connections until the session
// terminates. Run blocks for the whole session lifetime.
//
// Cancelling the provided context is the external shutdown signal: it is observed once per
// readiness wait cycle, never by interrupting an in-flight frame decode.
//
// # Connection ownership
//
// Once the handshake has completed, the relay owns both connections and closes them before Run
// returns. When the handshake fails, the origin server connection (if established) is closed but
// the client connection is left untouched: nothing has been written to it and the caller may
// still use it to answer the client.
//
// # Return
//
// Run returns nil when the session ended normally: a CLOSE frame was relayed, a peer disconnected
// at transport level or the shutdown signal was observed. These expected terminations are
// reported at informational level.
//
// Run returns a HandshakeError when the origin server response does not satisfy the websocket
// upgrade contract and a RelayError when an unexpected failure occurs while relaying.
func (relay *WebsocketRelay) Run(ctx context.Context) error {
	ctx, span := relay.tracer.Start(ctx, spanRelayRun,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(attrSessionId, relay.sessionId),
		))
	defer span.End()
	logger := relay.logger.With(zap.String("session_id", relay.sessionId))
	logger.Debug("websocket upgrade intercepted",
		zap.String("client_protocol", relay.clientProtocol),
		zap.Strings("client_extensions", relay.clientExtensions))
	// Coordinate the handshake with the origin server and complete the client facing handshake
	err := relay.coordinateHandshake(ctx)
	if err != nil {
		relay.recordTermination(pumpOutcome{reason: TerminationHandshakeFailure, err: err})
		return handleError(HandshakeError{Err: err}, span, codes.Error, codes.Error.String())
	}
	// Both connections are confirmed in the websocket relay state
	relay.setState(StateRelaying)
	span.AddEvent(eventHandshakeCompleted, trace.WithAttributes(
		attribute.String(attrProtocol, relay.negotiated.Protocol),
		attribute.StringSlice(attrExtensions, relay.negotiated.Extensions),
	))
	logger.Debug("websocket handshake completed",
		zap.String("protocol", relay.negotiated.Protocol),
		zap.Strings("extensions", relay.negotiated.Extensions))
	// Relay frames until termination. The relay owns both connections from here on.
	defer relay.clientConn.Close()
	defer relay.serverConn.Close()
	outcome := relay.relayFrames(ctx)
	relay.recordTermination(outcome)
	// Map the outcome to its disposition
	switch outcome.reason {
	case TerminationGracefulClose:
		span.AddEvent(eventConnectionClosed, trace.WithAttributes(
			attribute.String(attrDirection, outcome.direction.String()),
			attribute.String(attrCloseReason, outcome.closeInfo.String()),
		))
		fields := []zap.Field{
			zap.String("direction", outcome.direction.String()),
			zap.String("status_name", outcome.closeInfo.Name),
			zap.String("reason", outcome.closeInfo.Reason),
		}
		if outcome.closeInfo.Code != nil {
			fields = append(fields, zap.Uint16("status_code", *outcome.closeInfo.Code))
		}
		logger.Info("websocket connection closed", fields...)
		span.SetStatus(codes.Ok, codes.Ok.String())
		return nil
	case TerminationPeerDisconnect:
		span.AddEvent(eventPeerDisconnect, trace.WithAttributes(
			attribute.String(attrSide, outcome.side.String()),
		))
		logger.Info("websocket connection closed unexpectedly",
			zap.String("side", outcome.side.String()),
			zap.Error(outcome.err))
		span.SetStatus(codes.Ok, codes.Ok.String())
		return nil
	case TerminationShutdown:
		span.AddEvent(eventShutdownSignal)
		logger.Info("websocket relay stopped by shutdown signal")
		span.SetStatus(codes.Ok, codes.Ok.String())
		return nil
	default:
		return handleError(RelayError{Err: outcome.err}, span, codes.Error, codes.Error.String())
	}
}

/*************************************************************************************************/
/* UTILS                                                                                         */
/*************************************************************************************************/

// State returns the current lifecycle state of the session.
func (relay *WebsocketRelay) State() SessionState {
	relay.stateMu.Lock()
	defer relay.stateMu.Unlock()
	return relay.state
}

// Reason returns why the session ended. TerminationNone is returned while the session has not
// ended yet.
func (relay *WebsocketRelay) Reason() TerminationReason {
	relay.stateMu.Lock()
	defer relay.stateMu.Unlock()
	return relay.reason
}

// LastCloseInfo returns the close info decoded from the relayed CLOSE frame when the session
// ended with a graceful close, nil otherwise.
func (relay *WebsocketRelay) LastCloseInfo() *CloseInfo {
	relay.stateMu.Lock()
	defer relay.stateMu.Unlock()
	return relay.closeInfo
}

// DisconnectedSide returns the side a transport level disconnect is attributed to. The returned
// value is meaningful only when the session ended with a peer disconnect.
func (relay *WebsocketRelay) DisconnectedSide() Side {
	relay.stateMu.Lock()
	defer relay.stateMu.Unlock()
	return relay.disconnectedSide
}

// Negotiated returns the parameters negotiated by the origin server. Nil until the origin server
// handshake response has been validated.
func (relay *WebsocketRelay) Negotiated() *NegotiatedParameters {
	return relay.negotiated
}

// SessionId returns the unique ID bound to this session.
func (relay *WebsocketRelay) SessionId() string {
	return relay.sessionId
}

// setState sets the session lifecycle state.
func (relay *WebsocketRelay) setState(state SessionState) {
	relay.stateMu.Lock()
	defer relay.stateMu.Unlock()
	relay.state = state
}

// recordTermination moves the session to its terminal state and records the outcome details.
func (relay *WebsocketRelay) recordTermination(outcome pumpOutcome) {
	relay.stateMu.Lock()
	defer relay.stateMu.Unlock()
	relay.state = StateClosed
	relay.reason = outcome.reason
	relay.closeInfo = outcome.closeInfo
	relay.disconnectedSide = outcome.side
}

/*************************************************************************************************/
/* HANDSHAKE COORDINATION                                                                        */
/*************************************************************************************************/

// # Description
//
// Coordinate the websocket handshake on behalf of both peers:
//
//  1. Connect to the origin server and forward the original upgrade request unmodified.
//  2. Read the handshake response and validate it against the RFC6455 upgrade contract.
//  3. Extract the negotiated parameters: accept token, subprotocol, extensions.
//  4. Synthesize the 101 response sent to the client from the negotiated parameters.
//
// On failure at any step the origin server connection is closed, nothing is written to the
// client and the method returns the cause. No relay state is observable after a failure.
func (relay *WebsocketRelay) coordinateHandshake(ctx context.Context) error {
	ctx, span := relay.tracer.Start(ctx, spanRelayHandshake,
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	// Establish the origin server connection (delegated to the dialer)
	scheme, host := originAddress(relay.request)
	conn, err := relay.dialer.Dial(ctx, scheme, host)
	if err != nil {
		return handleError(
			fmt.Errorf("failed to connect to origin server %s: %w", host, err),
			span, codes.Error, codes.Error.String())
	}
	relay.serverConn = conn
	relay.serverReader = bufio.NewReader(conn)
	// Drop the origin connection when the handshake does not complete
	completed := false
	defer func() {
		if !completed {
			conn.Close()
		}
	}()
	// Bound the whole handshake phase when a timeout is configured
	if relay.opts.HandshakeTimeoutMs > 0 {
		deadline := time.Now().Add(time.Duration(relay.opts.HandshakeTimeoutMs) * time.Millisecond)
		if err := conn.SetDeadline(deadline); err != nil {
			return handleError(err, span, codes.Error, codes.Error.String())
		}
		defer conn.SetDeadline(time.Time{})
	}
	// Forward the original upgrade request unmodified
	if err := relay.request.Write(conn); err != nil {
		return handleError(
			fmt.Errorf("failed to forward upgrade request to origin server: %w", err),
			span, codes.Error, codes.Error.String())
	}
	// Read exactly one response. The handshake response carries no meaningful body.
	response, err := http.ReadResponse(relay.serverReader, relay.request)
	if err != nil {
		return handleError(
			fmt.Errorf("failed to read handshake response from origin server: %w", err),
			span, codes.Error, codes.Error.String())
	}
	defer response.Body.Close()
	// Validate the response against the websocket upgrade contract
	if err := wsheaders.ValidateHandshakeResponse(response.StatusCode, response.Header, relay.clientKey); err != nil {
		return handleError(err, span, codes.Error, codes.Error.String())
	}
	// Extract negotiated parameters
	relay.negotiated = &NegotiatedParameters{
		Accept:     wsheaders.ServerAccept(response.Header),
		Protocol:   wsheaders.Protocol(response.Header),
		Extensions: wsheaders.Extensions(response.Header),
	}
	// Complete the client facing handshake with a 101 built from the negotiated parameters
	clientResponse := http.Response{
		Status:     "101 Switching Protocols",
		StatusCode: http.StatusSwitchingProtocols,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header: wsheaders.HandshakeResponseHeaders(
			relay.negotiated.Accept,
			relay.negotiated.Protocol,
			relay.negotiated.Extensions),
		Body:    http.NoBody,
		Request: relay.request,
	}
	if err := clientResponse.Write(relay.clientConn); err != nil {
		return handleError(
			fmt.Errorf("failed to complete client handshake: %w", err),
			span, codes.Error, codes.Error.String())
	}
	completed = true
	span.SetStatus(codes.Ok, codes.Ok.String())
	return nil
}

/*************************************************************************************************/
/* DUPLEX RELAY LOOP                                                                             */
/*************************************************************************************************/

// # Description
//
// Relay frames symmetrically between the two connections until termination. One flow per
// direction runs the readiness-wait-then-decode loop; each connection is read by exactly one
// flow and written by exactly one flow, so no connection is ever mutated concurrently.
//
// The first flow to reach a terminal outcome decides the session disposition. Both connections
// are then closed to unblock the other flow, which may be suspended in a frame decode, and the
// method returns once both flows have exited.
func (relay *WebsocketRelay) relayFrames(ctx context.Context) pumpOutcome {
	ctx, span := relay.tracer.Start(ctx, spanRelayDuplex,
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	defer span.SetStatus(codes.Ok, codes.Ok.String())
	pumpCtx, cancelPumps := context.WithCancel(ctx)
	defer cancelPumps()
	outcomes := make(chan pumpOutcome, 2)
	wg := sync.WaitGroup{}
	wg.Add(2)
	go func() {
		defer wg.Done()
		outcomes <- relay.pump(pumpCtx, DirectionClientToServer, relay.clientConn, relay.clientReader, relay.serverConn)
	}()
	go func() {
		defer wg.Done()
		outcomes <- relay.pump(pumpCtx, DirectionServerToClient, relay.serverConn, relay.serverReader, relay.clientConn)
	}()
	// First terminal outcome decides the session disposition
	outcome := <-outcomes
	cancelPumps()
	// Close both connections so a flow suspended in a frame decode exits as well
	relay.clientConn.Close()
	relay.serverConn.Close()
	wg.Wait()
	return outcome
}

// # Description
//
// Relay flow for one direction. Each iteration observes the shutdown signal, waits with a
// bounded interval for the source connection to become readable, then decodes exactly one frame.
// Readiness does not guarantee a complete frame is available: the decode is allowed to block
// until one full frame has been read, since a partial frame is never a valid relay unit.
//
// Every decoded frame is forwarded verbatim to the destination connection and emitted as a
// debug level diagnostic record. A relayed CLOSE frame terminates the flow.
func (relay *WebsocketRelay) pump(
	ctx context.Context,
	direction Direction,
	src net.Conn,
	srcReader *bufio.Reader,
	dst net.Conn) pumpOutcome {
	interval := time.Duration(relay.opts.ReadinessPollIntervalMs) * time.Millisecond
	for {
		// Shutdown signal is observed once per readiness cycle, never mid-decode
		select {
		case <-ctx.Done():
			return pumpOutcome{direction: direction, reason: TerminationShutdown}
		default:
		}
		// Bounded readiness wait on the source connection
		if err := src.SetReadDeadline(time.Now().Add(interval)); err != nil {
			return relay.terminalOutcome(direction, direction.Source(), err)
		}
		if _, err := srcReader.Peek(1); err != nil {
			if isTimeoutError(err) {
				continue
			}
			return relay.terminalOutcome(direction, direction.Source(), err)
		}
		// Data is pending: let the decode block until one full frame has been read
		if err := src.SetReadDeadline(time.Time{}); err != nil {
			return relay.terminalOutcome(direction, direction.Source(), err)
		}
		frame, err := relay.codec.ReadFrame(srcReader)
		if err != nil {
			return relay.terminalOutcome(direction, direction.Source(), err)
		}
		action, closeInfo := ClassifyFrame(frame)
		// Forward the frame verbatim before acting on its classification
		if err := relay.codec.WriteFrame(dst, frame); err != nil {
			return relay.terminalOutcome(direction, direction.Destination(), err)
		}
		relay.logger.Debug("websocket frame relayed",
			zap.String("session_id", relay.sessionId),
			zap.String("direction", direction.String()),
			zap.String("opcode", opcodeName(frame.Header.OpCode)),
			zap.Bool("fin", frame.Header.Fin),
			zap.Int64("length", frame.Header.Length))
		relay.relayedFrames.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrDirection, direction.String()),
			attribute.String(attrOpcode, opcodeName(frame.Header.OpCode))))
		relay.relayedBytes.Add(ctx, frame.Header.Length, metric.WithAttributes(
			attribute.String(attrDirection, direction.String())))
		if action == ForwardClose {
			return pumpOutcome{direction: direction, reason: TerminationGracefulClose, closeInfo: closeInfo}
		}
	}
}

// terminalOutcome maps an I/O error raised by a relay flow to its terminal outcome: transport
// level failures end the session as an expected peer disconnect attributed to the provided side,
// anything else is an unexpected relay failure.
func (relay *WebsocketRelay) terminalOutcome(direction Direction, side Side, err error) pumpOutcome {
	if isDisconnectError(err) {
		return pumpOutcome{direction: direction, reason: TerminationPeerDisconnect, side: side, err: err}
	}
	return pumpOutcome{
		direction: direction,
		reason:    TerminationRelayFailure,
		side:      side,
		err:       fmt.Errorf("%s flow failed: %w", direction, err),
	}
}

// isTimeoutError reports whether the error is a readiness wait timeout.
func isTimeoutError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isDisconnectError reports whether the error is a transport level failure: connection reset,
// closed connection, EOF or a TLS transport error. Such failures are expected terminations.
func isDisconnectError(err error) bool {
	var netErr net.Error
	var recordErr tls.RecordHeaderError
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return true
	case errors.As(err, &netErr), errors.As(err, &recordErr):
		return true
	default:
		return false
	}
}
