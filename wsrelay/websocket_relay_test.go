package wsrelay

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	nhooyr "nhooyr.io/websocket"

	"gitlab.com/lake42/go-websocket-relay/echowsserver"
	"gitlab.com/lake42/go-websocket-relay/wsrelay/wscodec"
)

/*************************************************************************************************/
/* TEST SUITES                                                                                   */
/*************************************************************************************************/

// Test suite used for WebsocketRelay unit tests
type WebsocketRelayUnitTestSuite struct {
	suite.Suite
}

// Run WebsocketRelayUnitTestSuite test suite
func TestWebsocketRelayUnitTestSuite(t *testing.T) {
	suite.Run(t, new(WebsocketRelayUnitTestSuite))
}

// Test suite used to test WebsocketRelay against a live origin server
type WebsocketRelayIntegrationTestSuite struct {
	suite.Suite
	origin        *echowsserver.EchoWebsocketServer
	relayListener net.Listener
	relayResults  chan error
}

// Run WebsocketRelayIntegrationTestSuite test suite
func TestWebsocketRelayIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(WebsocketRelayIntegrationTestSuite))
}

/*************************************************************************************************/
/* TEST HELPERS                                                                                  */
/*************************************************************************************************/

// In-memory relay test harness: the test plays both the intercepted client and the origin server
// over net.Pipe connections while the relay runs in between.
type relayTestHarness struct {
	// Test side of the intercepted client connection
	clientSide net.Conn
	// Reader used by the test to read what the relay sends to the client
	clientReader *bufio.Reader
	// Test side of the origin server connection
	originSide net.Conn
	// Reader used by the test to read what the relay sends to the origin server
	originReader *bufio.Reader
	// Relay session under test
	relay *WebsocketRelay
	// Channel Run publishes its result to
	runResult chan error
}

// Build a relay test harness around in-memory connections and a mocked origin dialer. A nil
// codec means the default gobwas backed codec.
func newRelayTestHarness(t *testing.T, codec wscodec.FrameCodecInterface) *relayTestHarness {
	clientSide, clientConn := net.Pipe()
	originSide, originConn := net.Pipe()
	dialerMock := NewOriginDialerInterfaceMock()
	dialerMock.On("Dial", mock.Anything, "http", "origin.example:80").Return(originConn, nil)
	relay, err := NewWebsocketRelay(
		clientConn,
		nil,
		newUpgradeRequest(t),
		dialerMock,
		codec,
		NewWebsocketRelayConfigurationOptions().WithReadinessPollIntervalMs(20),
		zap.NewNop(),
		nil,
		nil)
	require.NoError(t, err)
	require.NotNil(t, relay)
	return &relayTestHarness{
		clientSide:   clientSide,
		clientReader: bufio.NewReader(clientSide),
		originSide:   originSide,
		originReader: bufio.NewReader(originSide),
		relay:        relay,
		runResult:    make(chan error, 1),
	}
}

// Build a websocket upgrade request with the sample client key of RFC6455.
func newUpgradeRequest(t *testing.T) *http.Request {
	request, err := http.NewRequest(http.MethodGet, "http://origin.example/chat", nil)
	require.NoError(t, err)
	request.Header.Set("Upgrade", "websocket")
	request.Header.Set("Connection", "Upgrade")
	request.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	request.Header.Set("Sec-WebSocket-Version", "13")
	return request
}

// Start Run in its own goroutine and publish its result to the harness channel.
func (h *relayTestHarness) startRelay(ctx context.Context) {
	go func() {
		h.runResult <- h.relay.Run(ctx)
	}()
}

// Play the origin server handshake: read the forwarded upgrade request, check it and reply with
// the provided raw response. Returns the forwarded request.
func (h *relayTestHarness) completeOriginHandshake(t *testing.T, rawResponse string) *http.Request {
	forwarded, err := http.ReadRequest(h.originReader)
	require.NoError(t, err)
	_, err = h.originSide.Write([]byte(rawResponse))
	require.NoError(t, err)
	return forwarded
}

// Encode the provided frame to its wire bytes.
func frameWireBytes(t *testing.T, frame ws.Frame) []byte {
	wire := bytes.Buffer{}
	require.NoError(t, ws.WriteFrame(&wire, frame))
	return wire.Bytes()
}

// Raw origin server 101 response matching the sample client key of RFC6455.
const originHandshakeResponse = "HTTP/1.1 101 Switching Protocols\r\n" +
	"Upgrade: websocket\r\n" +
	"Connection: Upgrade\r\n" +
	"Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n" +
	"\r\n"

/*************************************************************************************************/
/* UNIT TESTS                                                                                    */
/*************************************************************************************************/

// Test the factory rejects invalid inputs: nil client connection, nil request, a request without
// a client key and invalid options.
func (suite *WebsocketRelayUnitTestSuite) TestFactoryInputValidation() {
	_, clientConn := net.Pipe()
	// Nil client connection
	relay, err := NewWebsocketRelay(nil, nil, newUpgradeRequest(suite.T()), nil, nil, nil, nil, nil, nil)
	require.Error(suite.T(), err)
	require.Nil(suite.T(), relay)
	// Nil request
	relay, err = NewWebsocketRelay(clientConn, nil, nil, nil, nil, nil, nil, nil, nil)
	require.Error(suite.T(), err)
	require.Nil(suite.T(), relay)
	// Request without a client key
	request := newUpgradeRequest(suite.T())
	request.Header.Del("Sec-WebSocket-Key")
	relay, err = NewWebsocketRelay(clientConn, nil, request, nil, nil, nil, nil, nil, nil)
	require.Error(suite.T(), err)
	require.Nil(suite.T(), relay)
	// Invalid options
	opts := NewWebsocketRelayConfigurationOptions().WithReadinessPollIntervalMs(0)
	relay, err = NewWebsocketRelay(clientConn, nil, newUpgradeRequest(suite.T()), nil, nil, opts, nil, nil, nil)
	require.Error(suite.T(), err)
	require.Nil(suite.T(), relay)
}

// # Description
//
// Test the handshake coordination happy path: the upgrade request is forwarded unmodified to the
// origin server, the origin 101 is validated and the client receives a synthesized 101 carrying
// the origin accept token. A CLOSE frame sent by the origin is then forwarded verbatim to the
// client before the session terminates.
//
// Test will succeed if:
//   - The origin server receives the upgrade request with the client key.
//   - The client receives a 101 response carrying the origin accept token.
//   - The CLOSE frame reaches the client byte-identical and the session ends without error.
//   - The decoded close info carries code 1000, its status name and the reason text.
func (suite *WebsocketRelayUnitTestSuite) TestHandshakeAndGracefulCloseFromServer() {
	h := newRelayTestHarness(suite.T(), nil)
	h.startRelay(context.Background())
	// Act as origin server: check the forwarded request and complete the handshake
	forwarded := h.completeOriginHandshake(suite.T(), originHandshakeResponse)
	require.Equal(suite.T(), "/chat", forwarded.URL.Path)
	require.Equal(suite.T(), "dGhlIHNhbXBsZSBub25jZQ==", forwarded.Header.Get("Sec-WebSocket-Key"))
	// Act as client: read the synthesized 101
	response, err := http.ReadResponse(h.clientReader, nil)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 101, response.StatusCode)
	require.Equal(suite.T(), "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", response.Header.Get("Sec-WebSocket-Accept"))
	// Negotiated parameters must match the origin response
	require.NotNil(suite.T(), h.relay.Negotiated())
	require.Equal(suite.T(), "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", h.relay.Negotiated().Accept)
	// Origin sends a CLOSE frame with status 1000 and reason "bye"
	wire := frameWireBytes(suite.T(), ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, "bye")))
	_, err = h.originSide.Write(wire)
	require.NoError(suite.T(), err)
	// The CLOSE frame must reach the client byte-identical
	relayed, err := ws.ReadFrame(h.clientReader)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), ws.OpClose, relayed.Header.OpCode)
	require.Equal(suite.T(), []byte{0x03, 0xE8, 'b', 'y', 'e'}, relayed.Payload)
	require.Equal(suite.T(), wire, frameWireBytes(suite.T(), relayed))
	// Session must end without error with the decoded close info recorded
	require.NoError(suite.T(), <-h.runResult)
	require.Equal(suite.T(), StateClosed, h.relay.State())
	require.Equal(suite.T(), TerminationGracefulClose, h.relay.Reason())
	closeInfo := h.relay.LastCloseInfo()
	require.NotNil(suite.T(), closeInfo)
	require.NotNil(suite.T(), closeInfo.Code)
	require.Equal(suite.T(), uint16(1000), *closeInfo.Code)
	require.Equal(suite.T(), "normal closure", closeInfo.Name)
	require.Equal(suite.T(), "bye", closeInfo.Reason)
}

// # Description
//
// Test the handshake is aborted when the origin server refuses the upgrade: a 200 response must
// produce a HandshakeError, nothing must be written to the client and the session must never
// reach the relaying state.
func (suite *WebsocketRelayUnitTestSuite) TestHandshakeFailureOnNon101Response() {
	h := newRelayTestHarness(suite.T(), nil)
	h.startRelay(context.Background())
	// Act as origin server: refuse the upgrade
	h.completeOriginHandshake(suite.T(), "HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n")
	// Session must fail with a HandshakeError
	err := <-h.runResult
	require.Error(suite.T(), err)
	hsErr := HandshakeError{}
	require.ErrorAs(suite.T(), err, &hsErr)
	require.Equal(suite.T(), StateClosed, h.relay.State())
	require.Equal(suite.T(), TerminationHandshakeFailure, h.relay.Reason())
	// No byte must have been written to the client
	require.NoError(suite.T(), h.clientSide.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	buffer := make([]byte, 1)
	_, err = h.clientSide.Read(buffer)
	require.Error(suite.T(), err)
	require.True(suite.T(), isTimeoutError(err))
}

// # Description
//
// Test a mismatching accept token aborts the handshake even when the origin replies with a well
// formed 101 response.
func (suite *WebsocketRelayUnitTestSuite) TestHandshakeFailureOnAcceptTokenMismatch() {
	h := newRelayTestHarness(suite.T(), nil)
	h.startRelay(context.Background())
	h.completeOriginHandshake(suite.T(), "HTTP/1.1 101 Switching Protocols\r\n"+
		"Upgrade: websocket\r\n"+
		"Connection: Upgrade\r\n"+
		"Sec-WebSocket-Accept: bm90IHRoZSByaWdodCB0b2tlbg==\r\n"+
		"\r\n")
	err := <-h.runResult
	require.Error(suite.T(), err)
	hsErr := HandshakeError{}
	require.ErrorAs(suite.T(), err, &hsErr)
	require.Equal(suite.T(), TerminationHandshakeFailure, h.relay.Reason())
}

// # Description
//
// Test the negotiated subprotocol and extensions selected by the origin server are carried over
// to the 101 response synthesized for the client.
func (suite *WebsocketRelayUnitTestSuite) TestNegotiatedParametersAreRelayedToClient() {
	h := newRelayTestHarness(suite.T(), nil)
	h.startRelay(context.Background())
	h.completeOriginHandshake(suite.T(), "HTTP/1.1 101 Switching Protocols\r\n"+
		"Upgrade: websocket\r\n"+
		"Connection: Upgrade\r\n"+
		"Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n"+
		"Sec-WebSocket-Protocol: chat\r\n"+
		"Sec-WebSocket-Extensions: permessage-deflate\r\n"+
		"\r\n")
	response, err := http.ReadResponse(h.clientReader, nil)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 101, response.StatusCode)
	require.Equal(suite.T(), "chat", response.Header.Get("Sec-WebSocket-Protocol"))
	require.Equal(suite.T(), "permessage-deflate", response.Header.Get("Sec-WebSocket-Extensions"))
	require.Equal(suite.T(), "chat", h.relay.Negotiated().Protocol)
	require.Equal(suite.T(), []string{"permessage-deflate"}, h.relay.Negotiated().Extensions)
	// Shut the session down
	require.NoError(suite.T(), h.originSide.Close())
	require.NoError(suite.T(), <-h.runResult)
}

// # Description
//
// Test a TEXT frame sent by the client is forwarded byte-identical to the origin server and the
// relay loop keeps running afterwards. The session is then stopped through the external shutdown
// signal and must end cleanly.
func (suite *WebsocketRelayUnitTestSuite) TestTextFrameForwardedAndLoopContinues() {
	h := newRelayTestHarness(suite.T(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.startRelay(ctx)
	h.completeOriginHandshake(suite.T(), originHandshakeResponse)
	response, err := http.ReadResponse(h.clientReader, nil)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 101, response.StatusCode)
	// Client sends a masked TEXT frame with payload "hello"
	wire := frameWireBytes(suite.T(), ws.MaskFrame(ws.NewTextFrame([]byte("hello"))))
	_, err = h.clientSide.Write(wire)
	require.NoError(suite.T(), err)
	// The origin server must receive the frame byte-identical, mask included
	relayed, err := ws.ReadFrame(h.originReader)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), ws.OpText, relayed.Header.OpCode)
	require.True(suite.T(), relayed.Header.Masked)
	require.Equal(suite.T(), wire, frameWireBytes(suite.T(), relayed))
	// The loop must still be active
	select {
	case err := <-h.runResult:
		suite.FailNow("relay terminated early", "err: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	require.Equal(suite.T(), StateRelaying, h.relay.State())
	// The external shutdown signal must end the session cleanly
	cancel()
	require.NoError(suite.T(), <-h.runResult)
	require.Equal(suite.T(), StateClosed, h.relay.State())
	require.Equal(suite.T(), TerminationShutdown, h.relay.Reason())
}

// # Description
//
// Test a PING frame passes through the relay unmodified: the relay never answers control frames
// itself, the other endpoint must.
func (suite *WebsocketRelayUnitTestSuite) TestPingFrameIsForwardedNotAnswered() {
	h := newRelayTestHarness(suite.T(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.startRelay(ctx)
	h.completeOriginHandshake(suite.T(), originHandshakeResponse)
	_, err := http.ReadResponse(h.clientReader, nil)
	require.NoError(suite.T(), err)
	// Origin sends a PING frame
	wire := frameWireBytes(suite.T(), ws.NewPingFrame([]byte("keepalive")))
	_, err = h.originSide.Write(wire)
	require.NoError(suite.T(), err)
	// The client must receive the PING byte-identical
	relayed, err := ws.ReadFrame(h.clientReader)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), ws.OpPing, relayed.Header.OpCode)
	require.Equal(suite.T(), wire, frameWireBytes(suite.T(), relayed))
	// The relay must not have answered with a PONG on the origin connection
	require.NoError(suite.T(), h.originSide.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	buffer := make([]byte, 1)
	_, err = h.originSide.Read(buffer)
	require.Error(suite.T(), err)
	require.True(suite.T(), isTimeoutError(err))
	cancel()
	require.NoError(suite.T(), <-h.runResult)
}

// # Description
//
// Test an abrupt origin connection loss during relay ends the session as an expected disconnect
// attributed to the server side, without any error propagated to the caller.
func (suite *WebsocketRelayUnitTestSuite) TestServerDisconnectEndsSessionWithoutError() {
	h := newRelayTestHarness(suite.T(), nil)
	h.startRelay(context.Background())
	h.completeOriginHandshake(suite.T(), originHandshakeResponse)
	_, err := http.ReadResponse(h.clientReader, nil)
	require.NoError(suite.T(), err)
	// Drop the origin connection
	require.NoError(suite.T(), h.originSide.Close())
	// Session must end without error, attributed to the server side
	require.NoError(suite.T(), <-h.runResult)
	require.Equal(suite.T(), StateClosed, h.relay.State())
	require.Equal(suite.T(), TerminationPeerDisconnect, h.relay.Reason())
	require.Equal(suite.T(), SideServer, h.relay.DisconnectedSide())
}

// # Description
//
// Test an unexpected frame decode failure is fatal to the session: the relay must return a
// RelayError wrapping the cause instead of swallowing it as a disconnect.
func (suite *WebsocketRelayUnitTestSuite) TestUnexpectedDecodeFailureReturnsRelayError() {
	// Codec mock which fails to decode whatever is read
	decodeErr := fmt.Errorf("malformed frame header")
	codecMock := wscodec.NewFrameCodecInterfaceMock()
	codecMock.On("ReadFrame", mock.Anything).Return(ws.Frame{}, decodeErr)
	h := newRelayTestHarness(suite.T(), codecMock)
	h.startRelay(context.Background())
	h.completeOriginHandshake(suite.T(), originHandshakeResponse)
	_, err := http.ReadResponse(h.clientReader, nil)
	require.NoError(suite.T(), err)
	// Make the client connection readable so the codec is invoked
	_, err = h.clientSide.Write([]byte{0x81})
	require.NoError(suite.T(), err)
	// Session must fail with a RelayError wrapping the decode error
	err = <-h.runResult
	require.Error(suite.T(), err)
	relayErr := RelayError{}
	require.ErrorAs(suite.T(), err, &relayErr)
	require.ErrorIs(suite.T(), err, decodeErr)
	require.Equal(suite.T(), TerminationRelayFailure, h.relay.Reason())
	codecMock.AssertCalled(suite.T(), "ReadFrame", mock.Anything)
}

/*************************************************************************************************/
/* INTEGRATION TESTS                                                                             */
/*************************************************************************************************/

// Origin dialer which always dials the same address, whatever the intercepted request targets.
type fixedOriginDialer struct {
	host string
}

func (dialer fixedOriginDialer) Dial(ctx context.Context, scheme string, host string) (net.Conn, error) {
	netDialer := net.Dialer{}
	return netDialer.DialContext(ctx, "tcp", dialer.host)
}

// WebsocketRelayIntegrationTestSuite - Before all tests
func (suite *WebsocketRelayIntegrationTestSuite) SetupSuite() {
	// Start the echo origin server
	suite.origin = echowsserver.NewEchoWebsocketServer(&http.Server{Addr: "localhost:8092"}, nil)
	require.NoError(suite.T(), suite.origin.Start())
	// Start a minimal intercepting listener which hands each upgrade over to a relay session
	listener, err := net.Listen("tcp", "localhost:8093")
	require.NoError(suite.T(), err)
	suite.relayListener = listener
	suite.relayResults = make(chan error, 16)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				reader := bufio.NewReader(conn)
				request, err := http.ReadRequest(reader)
				if err != nil {
					conn.Close()
					return
				}
				relay, err := NewWebsocketRelay(
					conn,
					reader,
					request,
					fixedOriginDialer{host: "localhost:8092"},
					nil,
					NewWebsocketRelayConfigurationOptions().WithReadinessPollIntervalMs(20),
					zap.NewNop(),
					nil,
					nil)
				if err != nil {
					conn.Close()
					return
				}
				suite.relayResults <- relay.Run(context.Background())
			}(conn)
		}
	}()
}

// WebsocketRelayIntegrationTestSuite - After all tests
func (suite *WebsocketRelayIntegrationTestSuite) TearDownSuite() {
	suite.relayListener.Close()
	suite.origin.Stop()
}

// # Description
//
// Test a complete relayed session against a live origin server: a websocket client connects
// through the relay, exchanges echo messages with the origin server and closes the connection.
//
// Test will succeed if:
//   - The client handshake through the relay succeeds.
//   - Echoed messages come back identical through the relay.
//   - The relay session ends without error once the client has closed the connection.
func (suite *WebsocketRelayIntegrationTestSuite) TestRelayedEchoSession() {
	// Connect through the relay
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, response, err := nhooyr.Dial(ctx, "ws://localhost:8093", nil)
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), response)
	require.Equal(suite.T(), 101, response.StatusCode)
	// Exchange echo messages through the relay
	for i := 0; i < 3; i = i + 1 {
		expected := "hello through the relay"
		err = conn.Write(ctx, nhooyr.MessageText, []byte(expected))
		require.NoError(suite.T(), err)
		msgType, msg, err := conn.Read(ctx)
		require.NoError(suite.T(), err)
		require.Equal(suite.T(), nhooyr.MessageText, msgType)
		require.Equal(suite.T(), expected, string(msg))
	}
	// Close from client side. The relay tears the session down right after relaying the first
	// CLOSE frame, so the close reply from the origin server may not make it back: the close
	// error is deliberately not asserted.
	_ = conn.Close(nhooyr.StatusNormalClosure, "bye")
	// The relay session must end without error
	select {
	case err := <-suite.relayResults:
		require.NoError(suite.T(), err)
	case <-time.After(10 * time.Second):
		suite.FailNow("timed out waiting for the relay session to end")
	}
}
