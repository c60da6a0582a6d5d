package wsrelay

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

/*************************************************************************************************/
/* TRACING RELATED CONSTANTS                                                                     */
/*************************************************************************************************/

// Constants used for tracing purpose.
const (
	// Package name used by library tracer and meter
	pkgName = "wsrelay"
	// Package version
	pkgVersion = "0.0.0"

	// Namespace used by spans, events and attributes
	namespace = "wsrelay"

	// Name of span used to trace Run public method
	spanRelayRun = namespace + ".run"
	// Name of span used to trace the handshake coordination phase
	spanRelayHandshake = namespace + ".handshake"
	// Name of span used to trace the duplex relay phase
	spanRelayDuplex = namespace + ".relay"

	// Event used in span to signal handshake has completed and session entered relaying state
	eventHandshakeCompleted = namespace + ".handshake_completed"
	// Event used in span to signal a close frame was relayed
	eventConnectionClosed = namespace + ".connection_closed"
	// Event used in span to signal a peer disconnected at transport level
	eventPeerDisconnect = namespace + ".peer_disconnect"
	// Event used in span to signal the external shutdown signal was observed
	eventShutdownSignal = namespace + ".shutdown_signal"

	// Attribute used to store the relay session ID
	attrSessionId = namespace + ".session_id"
	// Attribute used to indicate the logical direction of a relayed frame
	attrDirection = namespace + ".direction"
	// Attribute used to indicate the side a disconnect is attributed to
	attrSide = namespace + ".side"
	// Attribute used to indicate a relayed frame opcode
	attrOpcode = namespace + ".frame.opcode"
	// Attribute used to indicate the decoded close status code
	attrCloseCode = namespace + ".close_code"
	// Attribute used to indicate the decoded close reason
	attrCloseReason = namespace + ".close_reason"
	// Attribute used to indicate the negotiated subprotocol
	attrProtocol = namespace + ".negotiated.protocol"
	// Attribute used to indicate the negotiated extensions
	attrExtensions = namespace + ".negotiated.extensions"

	// Name of the counter of relayed frames
	metricRelayedFrames = namespace + ".relayed.frames"
	// Name of the counter of relayed payload bytes
	metricRelayedBytes = namespace + ".relayed.bytes"
)

// # Description
//
// The function records the input error in the provided span using span.RecordError(err) and set
// the span status with the provided code and description. The function returns the provided error.
//
// # Usage tips
//
// The function is meant to replace code blocks like this one:
//
//	if err != nil {
//			span.RecordError(err)
//			span.SetStatus(code, description)
//			return err
//	}
//
// By:
//
//	if err != nil {
//			return handleError(err, span, code, description)
//	}
func handleError(err error, span trace.Span, code codes.Code, description string) error {
	span.RecordError(err)
	span.SetStatus(code, description)
	return err
}
