// The package provides pure utilities to parse and produce the HTTP headers involved in the
// RFC6455 websocket upgrade handshake. Functions in this package never touch the network.
package wsheaders

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// GUID appended to the client key before hashing to derive the accept token (RFC6455 - 1.3).
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// Names of the headers involved in the websocket upgrade handshake.
const (
	ClientKeyHeader    = "Sec-WebSocket-Key"
	AcceptHeader       = "Sec-WebSocket-Accept"
	ProtocolHeader     = "Sec-WebSocket-Protocol"
	ExtensionsHeader   = "Sec-WebSocket-Extensions"
	UpgradeHeader      = "Upgrade"
	ConnectionHeader   = "Connection"
	upgradeTokenValue  = "websocket"
	connectionUpgraded = "upgrade"
)

// # Description
//
// Derive the accept token from the provided client key as mandated by RFC6455: the base64 encoded
// SHA1 hash of the client key concatenated with the websocket GUID.
//
// # Inputs
//
//   - clientKey: Opaque token provided by the client in the Sec-WebSocket-Key header.
//
// # Returns
//
// The accept token the server must present in the Sec-WebSocket-Accept header.
func ComputeAcceptKey(clientKey string) string {
	hash := sha1.Sum([]byte(clientKey + websocketGUID))
	return base64.StdEncoding.EncodeToString(hash[:])
}

// ClientKey returns the opaque client key from the provided request headers. An empty string is
// returned when the header is absent.
func ClientKey(headers http.Header) string {
	return headers.Get(ClientKeyHeader)
}

// ServerAccept returns the accept token from the provided response headers. An empty string is
// returned when the header is absent.
func ServerAccept(headers http.Header) string {
	return headers.Get(AcceptHeader)
}

// Protocol returns the negotiated (or requested) subprotocol from the provided headers. An empty
// string is returned when no subprotocol is present.
func Protocol(headers http.Header) string {
	return headers.Get(ProtocolHeader)
}

// # Description
//
// Extensions returns the extension list from the provided headers. Extension tokens are opaque to
// the relay: the list is split on commas and trimmed but tokens are never decoded further.
//
// # Returns
//
// The extension tokens in header order. Nil when no extension is present.
func Extensions(headers http.Header) []string {
	var extensions []string
	for _, value := range headers.Values(ExtensionsHeader) {
		for _, token := range strings.Split(value, ",") {
			token = strings.TrimSpace(token)
			if token != "" {
				extensions = append(extensions, token)
			}
		}
	}
	return extensions
}

// IsWebsocketUpgrade returns true when the provided request headers ask for a protocol switch to
// websocket: the Connection header carries the Upgrade token and the Upgrade header is websocket.
func IsWebsocketUpgrade(headers http.Header) bool {
	return containsToken(headers, ConnectionHeader, connectionUpgraded) &&
		strings.EqualFold(headers.Get(UpgradeHeader), upgradeTokenValue)
}

// # Description
//
// Validate the origin server handshake response against the RFC6455 upgrade contract: status must
// be 101, the Upgrade and Connection headers must confirm the protocol switch and the accept token
// must be the one derived from the provided client key.
//
// # Inputs
//
//   - statusCode: Status code of the origin server response.
//   - headers: Headers of the origin server response.
//   - clientKey: Opaque client key the accept token must derive from.
//
// # Returns
//
// Nil when the response satisfies the upgrade contract, an error describing the first violated
// requirement otherwise.
func ValidateHandshakeResponse(statusCode int, headers http.Header, clientKey string) error {
	if statusCode != http.StatusSwitchingProtocols {
		return fmt.Errorf("origin server replied with status %d instead of 101", statusCode)
	}
	if !strings.EqualFold(headers.Get(UpgradeHeader), upgradeTokenValue) {
		return fmt.Errorf("origin server response has no 'Upgrade: websocket' header")
	}
	if !containsToken(headers, ConnectionHeader, connectionUpgraded) {
		return fmt.Errorf("origin server response has no 'Connection: Upgrade' header")
	}
	accept := ServerAccept(headers)
	if accept == "" {
		return fmt.Errorf("origin server response has no %s header", AcceptHeader)
	}
	if expected := ComputeAcceptKey(clientKey); accept != expected {
		return fmt.Errorf("origin server accept token %q does not match expected %q", accept, expected)
	}
	return nil
}

// # Description
//
// Build the headers of the 101 response sent to the client to complete the handshake. The accept
// token is always present. The subprotocol and extensions headers are set only when the origin
// server selected them.
//
// # Inputs
//
//   - accept: Accept token extracted from the origin server response.
//   - protocol: Subprotocol selected by the origin server. Can be empty.
//   - extensions: Extensions selected by the origin server. Can be empty or nil.
//
// # Returns
//
// The headers to use in the client facing 101 response.
func HandshakeResponseHeaders(accept string, protocol string, extensions []string) http.Header {
	headers := http.Header{}
	headers.Set(UpgradeHeader, upgradeTokenValue)
	headers.Set(ConnectionHeader, "Upgrade")
	headers.Set(AcceptHeader, accept)
	if protocol != "" {
		headers.Set(ProtocolHeader, protocol)
	}
	if len(extensions) > 0 {
		headers.Set(ExtensionsHeader, strings.Join(extensions, ", "))
	}
	return headers
}

// containsToken reports whether one of the comma separated values of the named header equals the
// provided token, ignoring case.
func containsToken(headers http.Header, name string, token string) bool {
	for _, value := range headers.Values(name) {
		for _, candidate := range strings.Split(value, ",") {
			if strings.EqualFold(strings.TrimSpace(candidate), token) {
				return true
			}
		}
	}
	return false
}
