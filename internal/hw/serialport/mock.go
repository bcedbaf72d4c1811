package serialport

import (
	"io"
	"sync"
)

// MockConn is an in-memory Conn for tests and for running the application
// without hardware attached. Reads drain a scripted buffer; writes are
// recorded for inspection.
type MockConn struct {
	mu sync.Mutex

	// ReadData is drained by Read calls. Tests preload it with the byte
	// stream the instrument would send, responses in protocol order.
	ReadData []byte

	// WrittenData accumulates everything the driver wrote.
	WrittenData []byte

	// ReadErr / WriteErr, when set, are returned by the next matching call.
	ReadErr  error
	WriteErr error

	Closed bool
}

// NewMockConn returns a mock preloaded with the given instrument output.
func NewMockConn(scripted string) *MockConn {
	return &MockConn{ReadData: []byte(scripted)}
}

func (m *MockConn) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	if len(m.ReadData) == 0 {
		return 0, io.EOF
	}
	n := copy(p, m.ReadData)
	m.ReadData = m.ReadData[n:]
	return n, nil
}

func (m *MockConn) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	m.WrittenData = append(m.WrittenData, p...)
	return len(p), nil
}

func (m *MockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Written returns everything written so far as a string.
func (m *MockConn) Written() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.WrittenData)
}

// Feed appends more scripted instrument output for subsequent reads.
func (m *MockConn) Feed(data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadData = append(m.ReadData, data...)
}
