package wsrelay

import "fmt"

/*************************************************************************************************/
/* HANDSHAKE ERROR                                                                               */
/*************************************************************************************************/

// Specific error type for failures which occur while the websocket handshake is coordinated with
// the origin server. A handshake error is fatal to the session: no relay has started and nothing
// beyond the already forwarded bytes has been sent to the client.
type HandshakeError struct {
	// Embedded error
	Err error
}

func (err HandshakeError) Error() string {
	return fmt.Sprintf("websocket handshake with origin server failed: %v", err.Err)
}

func (err HandshakeError) Unwrap() error {
	return err.Err
}

/*************************************************************************************************/
/* RELAY ERROR                                                                                   */
/*************************************************************************************************/

// Specific error type for unexpected failures which occur while frames are relayed. Transport
// level disconnects are not relay errors: they are handled as a normal session end. A relay error
// is fatal to the session and is surfaced to the caller.
type RelayError struct {
	// Embedded error
	Err error
}

func (err RelayError) Error() string {
	return fmt.Sprintf("websocket relay failed: %v", err.Err)
}

func (err RelayError) Unwrap() error {
	return err.Err
}
