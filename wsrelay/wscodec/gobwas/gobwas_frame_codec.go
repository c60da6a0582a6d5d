// The package provides an implementation of FrameCodecInterface backed by the gobwas/ws library.
package gobwas

import (
	"io"

	"github.com/gobwas/ws"
	"gitlab.com/lake42/go-websocket-relay/wsrelay/wscodec"
)

// Frame codec backed by the low-level gobwas/ws frame functions. The library reads and writes
// frames without touching the payload mask, which makes it suitable for verbatim relaying.
type GobwasFrameCodec struct{}

// Static check: GobwasFrameCodec implements FrameCodecInterface.
var _ wscodec.FrameCodecInterface = (*GobwasFrameCodec)(nil)

// Factory
func NewGobwasFrameCodec() *GobwasFrameCodec {
	return &GobwasFrameCodec{}
}

// ReadFrame reads exactly one frame from the provided reader. The payload of a masked frame is
// returned still masked.
func (codec *GobwasFrameCodec) ReadFrame(r io.Reader) (ws.Frame, error) {
	return ws.ReadFrame(r)
}

// WriteFrame writes the provided frame verbatim to the provided writer.
func (codec *GobwasFrameCodec) WriteFrame(w io.Writer, frame ws.Frame) error {
	return ws.WriteFrame(w, frame)
}
