// Package serialport provides the byte transports used to talk to the scan
// hardware: the Arduino motion controller over USB serial and the Siglent
// oscilloscope over its raw SCPI socket. Both are exposed through the same
// minimal Conn interface so drivers and tests never care which one they got.
package serialport

import "io"

// Conn is a bidirectional byte stream to an instrument. Implementations are
// a USB serial port, a TCP socket, or an in-memory mock.
type Conn interface {
	io.ReadWriteCloser
}

// Opener creates connections on demand, allowing reconnect logic in drivers
// without binding them to a concrete transport.
type Opener func() (Conn, error)
