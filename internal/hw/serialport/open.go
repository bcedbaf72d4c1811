package serialport

import (
	"fmt"
	"net"
	"time"

	"go.bug.st/serial"

	"github.com/cjeanneret/SonoGo/internal/debug"
)

const (
	// readTimeout bounds every blocking read so a wedged instrument cannot
	// hang a scan forever.
	readTimeout = 2 * time.Second

	dialTimeout = 5 * time.Second
)

// OpenSerial opens a USB serial device (e.g. /dev/ttyACM0) in 8N1 mode at
// the given baud rate, with a bounded read timeout.
func OpenSerial(device string, baudRate int) (Conn, error) {
	debug.Serial("open", fmt.Sprintf("%s @ %d baud", device, baudRate))

	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", device, err)
	}
	return port, nil
}

// DialSCPI connects to an instrument's raw SCPI socket, e.g. "192.168.1.50:5025".
// Reads are bounded by a per-read deadline.
func DialSCPI(address string) (Conn, error) {
	debug.Serial("dial", address)

	c, err := net.DialTimeout("tcp", address, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial scpi %s: %w", address, err)
	}
	return &deadlineConn{Conn: c}, nil
}

// deadlineConn applies a fresh read deadline before every Read, mirroring the
// SetReadTimeout behaviour of the serial transport.
type deadlineConn struct {
	net.Conn
}

func (d *deadlineConn) Read(p []byte) (int, error) {
	if err := d.Conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return 0, err
	}
	return d.Conn.Read(p)
}
