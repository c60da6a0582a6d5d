// The package defines an interface to adapt 3rd parties websocket frame codecs to the relay.
package wscodec

import (
	"io"

	"github.com/gobwas/ws"
)

// Interface which describes the frame codec methods and behaviour the relay expects from the
// underlying websocket frame serialization library.
//
// The relay treats the wire format as opaque except for the frame header opcode and, for CLOSE
// frames, the payload. Codec implementations MUST preserve frames verbatim: re-encoding a decoded
// frame must reproduce the exact bytes read from the wire, masked payloads included.
type FrameCodecInterface interface {
	// # Description
	//
	// Read exactly one websocket frame from the provided reader.
	//
	// # Expected behaviour
	//
	//	- ReadFrame MUST block until a complete frame (header + payload) has been read or until
	//	  an error occurs. A partial frame is never a valid result.
	//
	//	- ReadFrame MUST NOT unmask the payload of a masked frame: the frame must be kept exactly
	//	  as read from the wire so it can be relayed verbatim.
	//
	//	- ReadFrame MAY perform multiple reads on the provided reader to assemble the frame.
	//
	// # Inputs
	//
	//	- r: Reader to decode one frame from.
	//
	// # Returns
	//
	// The decoded frame or an error if the frame could not be fully read or is malformed.
	ReadFrame(r io.Reader) (ws.Frame, error)
	// # Description
	//
	// Write the provided frame to the provided writer.
	//
	// # Expected behaviour
	//
	//	- WriteFrame MUST write the frame verbatim: header fields and payload bytes must not be
	//	  transformed, re-fragmented, masked or unmasked.
	//
	//	- WriteFrame MUST block until the whole frame has been written or until an error occurs.
	//
	// # Inputs
	//
	//	- w: Writer the frame is encoded to.
	//	- frame: Frame to encode.
	//
	// # Returns
	//
	// Nil in case of success, an error otherwise.
	WriteFrame(w io.Writer, frame ws.Frame) error
}
