package wsrelay

import (
	"encoding/binary"
	"fmt"

	"github.com/gobwas/ws"
)

/*************************************************************************************************/
/* SIDES & DIRECTIONS                                                                            */
/*************************************************************************************************/

// Logical side of the relayed session a connection or an event belongs to.
type Side int

const (
	// The intercepted client connection
	SideClient Side = iota
	// The origin server connection
	SideServer
)

func (side Side) String() string {
	if side == SideServer {
		return "server"
	}
	return "client"
}

// Logical direction of a relayed frame. Each relay flow is tagged with its direction up front so
// failures can be attributed to a side without comparing low-level connection handles.
type Direction int

const (
	// Frames read from the client connection and forwarded to the origin server
	DirectionClientToServer Direction = iota
	// Frames read from the origin server connection and forwarded to the client
	DirectionServerToClient
)

func (direction Direction) String() string {
	if direction == DirectionServerToClient {
		return "server -> client"
	}
	return "client -> server"
}

// Source returns the side frames flowing in this direction are read from.
func (direction Direction) Source() Side {
	if direction == DirectionServerToClient {
		return SideServer
	}
	return SideClient
}

// Destination returns the side frames flowing in this direction are forwarded to.
func (direction Direction) Destination() Side {
	if direction == DirectionServerToClient {
		return SideClient
	}
	return SideServer
}

/*************************************************************************************************/
/* FRAME CLASSIFICATION                                                                          */
/*************************************************************************************************/

// Action the relay loop must take after forwarding a frame. Every frame is forwarded verbatim:
// classification only decides whether the loop continues or terminates.
type FrameAction int

const (
	// Forward the frame and keep relaying
	ForwardContinue FrameAction = iota
	// Forward the frame and terminate the session (CLOSE frame)
	ForwardClose
)

// # Description
//
// Classify a decoded frame and decide the relay action. The function is pure: calling it twice on
// the same frame yields the same action and close info, and the frame is never mutated.
//
//   - Data frames (high opcode bit clear: continuation, text, binary) are forwarded and the loop
//     continues.
//   - PING and PONG frames are forwarded and the loop continues: they must be answered by the
//     other endpoint, not by the relay.
//   - CLOSE frames are forwarded, their payload is decoded into a CloseInfo and the loop
//     terminates.
//   - Any other opcode, reserved ones included, is forwarded unchanged and the loop continues.
//     Unknown control opcodes deliberately pass through rather than being rejected.
//
// # Inputs
//
//   - frame: The decoded frame to classify.
//
// # Returns
//
// The action to take and, for CLOSE frames only, the decoded close info.
func ClassifyFrame(frame ws.Frame) (FrameAction, *CloseInfo) {
	if frame.Header.OpCode == ws.OpClose {
		return ForwardClose, ParseCloseInfo(closePayload(frame))
	}
	return ForwardContinue, nil
}

// closePayload returns the payload of a CLOSE frame ready for decoding. Client originated frames
// are masked on the wire: the payload is unmasked on a copy so the frame itself stays verbatim.
func closePayload(frame ws.Frame) []byte {
	if !frame.Header.Masked {
		return frame.Payload
	}
	payload := append([]byte(nil), frame.Payload...)
	ws.Cipher(payload, frame.Header.Mask, 0)
	return payload
}

/*************************************************************************************************/
/* CLOSE INFO                                                                                    */
/*************************************************************************************************/

// Placeholders used when a CLOSE payload carries no status code or no reason text.
const (
	// Name reported when the payload is shorter than two bytes
	closeCodeMissing = "(status code missing)"
	// Reason reported when the payload is exactly two bytes
	closeReasonMissing = "(message missing)"
	// Name reported for a status code absent from the status name table
	closeCodeUnknown = "unknown status code"
)

// Close status code names as registered by RFC6455 and the IANA close code registry.
var closeStatusNames = map[uint16]string{
	1000: "normal closure",
	1001: "going away",
	1002: "protocol error",
	1003: "unsupported data",
	1004: "reserved",
	1005: "no status received",
	1006: "abnormal closure",
	1007: "invalid frame payload data",
	1008: "policy violation",
	1009: "message too big",
	1010: "mandatory extension",
	1011: "internal error",
	1012: "service restart",
	1013: "try again later",
	1014: "bad gateway",
	1015: "TLS handshake failure",
}

// Close status code, status name and reason text decoded from a CLOSE frame payload. Close info
// is derived on demand and never stored across relay iterations.
type CloseInfo struct {
	// Status code carried in the first two payload bytes (big endian). Nil when the payload is
	// shorter than two bytes.
	Code *uint16
	// Name of the status code from the fixed status name table, "unknown status code" when the
	// code is absent from the table or "(status code missing)" when there is no code at all.
	Name string
	// Close reason carried after the status code. "(message missing)" when the payload is
	// exactly two bytes, empty when there is no status code at all.
	Reason string
}

// # Description
//
// Decode the payload of a CLOSE frame into a CloseInfo.
//
//   - Payload shorter than 2 bytes: no status code, name is "(status code missing)", no reason.
//   - Payload of exactly 2 bytes: status code and name, reason is "(message missing)".
//   - Longer payload: status code and name, reason is the bytes after the first two.
//
// # Inputs
//
//   - payload: Unmasked CLOSE frame payload. Can be empty or nil.
//
// # Returns
//
// The decoded close info.
func ParseCloseInfo(payload []byte) *CloseInfo {
	if len(payload) < 2 {
		return &CloseInfo{Code: nil, Name: closeCodeMissing, Reason: ""}
	}
	code := binary.BigEndian.Uint16(payload[:2])
	name, found := closeStatusNames[code]
	if !found {
		name = closeCodeUnknown
	}
	reason := closeReasonMissing
	if len(payload) > 2 {
		reason = string(payload[2:])
	}
	return &CloseInfo{Code: &code, Name: name, Reason: reason}
}

func (info CloseInfo) String() string {
	if info.Code == nil {
		return info.Name
	}
	return fmt.Sprintf("%d %s, %s", *info.Code, info.Name, info.Reason)
}

// opcodeName returns a human readable name for a frame opcode, used in diagnostic records.
func opcodeName(opcode ws.OpCode) string {
	switch opcode {
	case ws.OpContinuation:
		return "continuation"
	case ws.OpText:
		return "text"
	case ws.OpBinary:
		return "binary"
	case ws.OpClose:
		return "close"
	case ws.OpPing:
		return "ping"
	case ws.OpPong:
		return "pong"
	default:
		return fmt.Sprintf("reserved(0x%x)", byte(opcode))
	}
}
