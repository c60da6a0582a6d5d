package wsrelay

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strings"
)

// Interface which describes how the relay obtains the raw connection to the origin server.
// Connection establishment, TLS included, is delegated: the relay only requires a connection it
// can exclusively read from and write to for the session lifetime.
type OriginDialerInterface interface {
	// # Description
	//
	// Dial establishes the raw connection to the origin server. For TLS schemes (https, wss) the
	// returned connection must already have completed the TLS handshake.
	//
	// # Inputs
	//
	//	- ctx: Context used for timeout/cancellation purpose.
	//	- scheme: Scheme of the intercepted request (http, https, ws or wss).
	//	- host: Origin server address as host:port.
	//
	// # Returns
	//
	// An established connection to the origin server or an error.
	Dial(ctx context.Context, scheme string, host string) (net.Conn, error)
}

// Origin dialer backed by the net and crypto/tls dialers.
type NetOriginDialer struct {
	// TLS configuration used for TLS schemes. Nil means the default configuration.
	tlsConfig *tls.Config
}

// Static check: NetOriginDialer implements OriginDialerInterface.
var _ OriginDialerInterface = (*NetOriginDialer)(nil)

// # Description
//
// Factory - Return a new NetOriginDialer.
//
// # Inputs
//
//   - tlsConfig: TLS configuration used when dialing TLS schemes. Can be nil.
//
// # Returns
//
// A new NetOriginDialer.
func NewNetOriginDialer(tlsConfig *tls.Config) *NetOriginDialer {
	return &NetOriginDialer{tlsConfig: tlsConfig}
}

// Dial establishes a TCP connection to the origin server, wrapped in TLS for TLS schemes.
func (dialer *NetOriginDialer) Dial(ctx context.Context, scheme string, host string) (net.Conn, error) {
	if isTLSScheme(scheme) {
		tlsDialer := tls.Dialer{Config: dialer.tlsConfig}
		return tlsDialer.DialContext(ctx, "tcp", host)
	}
	netDialer := net.Dialer{}
	return netDialer.DialContext(ctx, "tcp", host)
}

// isTLSScheme reports whether the provided request scheme implies a TLS connection to the origin.
func isTLSScheme(scheme string) bool {
	switch strings.ToLower(scheme) {
	case "https", "wss":
		return true
	default:
		return false
	}
}

// originAddress derives the origin server scheme and host:port address from the intercepted
// upgrade request. The default port of the scheme is appended when the request host has none.
func originAddress(request *http.Request) (string, string) {
	scheme := request.URL.Scheme
	if scheme == "" {
		scheme = "http"
	}
	host := request.Host
	if host == "" {
		host = request.URL.Host
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		port := "80"
		if isTLSScheme(scheme) {
			port = "443"
		}
		host = net.JoinHostPort(host, port)
	}
	return scheme, host
}
