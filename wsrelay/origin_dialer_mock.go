package wsrelay

import (
	"context"
	"net"

	"github.com/stretchr/testify/mock"
)

// Mock for OriginDialerInterface
type OriginDialerInterfaceMock struct {
	mock.Mock
}

// Factory
func NewOriginDialerInterfaceMock() *OriginDialerInterfaceMock {
	return &OriginDialerInterfaceMock{
		Mock: mock.Mock{},
	}
}

// Mocked Dial method
func (m *OriginDialerInterfaceMock) Dial(ctx context.Context, scheme string, host string) (net.Conn, error) {
	args := m.Called(ctx, scheme, host)
	conn, _ := args.Get(0).(net.Conn)
	return conn, args.Error(1)
}
