// The package defines an interface to adapt 3rd parties websocket frame codecs to the relay.
package wscodec

import (
	"io"

	"github.com/gobwas/ws"
	"github.com/stretchr/testify/mock"
)

// Mock for FrameCodecInterface
type FrameCodecInterfaceMock struct {
	mock.Mock
}

// Factory
func NewFrameCodecInterfaceMock() *FrameCodecInterfaceMock {
	return &FrameCodecInterfaceMock{
		Mock: mock.Mock{},
	}
}

// Mocked ReadFrame method
func (m *FrameCodecInterfaceMock) ReadFrame(r io.Reader) (ws.Frame, error) {
	args := m.Called(r)
	return args.Get(0).(ws.Frame), args.Error(1)
}

// Mocked WriteFrame method
func (m *FrameCodecInterfaceMock) WriteFrame(w io.Writer, frame ws.Frame) error {
	args := m.Called(w, frame)
	return args.Error(0)
}
