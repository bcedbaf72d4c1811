// Package motor drives the Arduino-based stepper controller that moves the
// hydrophone gantry. The firmware speaks a tiny framed protocol over USB
// serial: commands look like <x,+,1200> (axis, direction, step count) and the
// firmware echoes "x+1200" once the move has physically completed. Special
// axes e/d/h enable, disable and home the motors.
package motor

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cjeanneret/SonoGo/internal/debug"
	"github.com/cjeanneret/SonoGo/internal/hw/serialport"
	"github.com/cjeanneret/SonoGo/internal/logic/pattern"
)

// ErrLimitSwitch is returned when the firmware reports that a limit switch
// tripped mid-move. The carriage position is then unknown along that axis.
var ErrLimitSwitch = errors.New("limit switch triggered during move")

// StepsPerMM holds the per-axis conversion between millimetres and motor steps.
type StepsPerMM struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// Get returns the conversion factor for the axis.
func (s StepsPerMM) Get(axis pattern.Axis) float64 {
	switch axis {
	case pattern.AxisX:
		return s.X
	case pattern.AxisY:
		return s.Y
	case pattern.AxisZ:
		return s.Z
	}
	return 0
}

// Config tunes the Arduino driver.
type Config struct {
	StepsPerMM StepsPerMM

	// SettleDelay is the pause after enable/disable commands while the
	// driver boards power up or down. Defaults to 100ms.
	SettleDelay time.Duration

	// Greeting, when false, skips waiting for the firmware banner. The
	// banner read is only wanted on a fresh USB connection.
	SkipGreeting bool
}

// Arduino talks to the motion firmware over a serialport.Conn.
type Arduino struct {
	conn serialport.Conn
	r    *bufio.Reader
	cfg  Config
}

// NewArduino wraps an open connection and waits for the firmware's
// "Arduino is ready" banner. Motors are left disabled, matching the
// firmware's power-on state.
func NewArduino(conn serialport.Conn, cfg Config) (*Arduino, error) {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 100 * time.Millisecond
	}

	a := &Arduino{
		conn: conn,
		r:    bufio.NewReader(conn),
		cfg:  cfg,
	}

	if !cfg.SkipGreeting {
		banner, err := a.readLine()
		if err != nil {
			return nil, fmt.Errorf("motor: no firmware banner: %w", err)
		}
		if !strings.Contains(banner, "Arduino is ready") {
			debug.Error("Unexpected firmware banner: %q", banner)
		} else {
			debug.Info("Arduino motion controller ready")
		}
		if err := a.DisableMotors(); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// MoveAxis moves one axis by a signed distance in millimetres and blocks
// until the firmware acknowledges completion. Distances that round to zero
// steps are a no-op.
func (a *Arduino) MoveAxis(axis pattern.Axis, distanceMM float64) error {
	perMM := a.cfg.StepsPerMM.Get(axis)
	if perMM <= 0 {
		return fmt.Errorf("motor: no steps_per_mm configured for axis %q", axis)
	}

	steps := int(math.Round(math.Abs(distanceMM) * perMM))
	if steps == 0 {
		debug.Verbose("Move on %s rounds to zero steps, skipping", axis)
		return nil
	}
	dir := "+"
	if distanceMM < 0 {
		dir = "-"
	}

	if err := a.EnableMotors(); err != nil {
		return err
	}
	// Keep motors disabled outside the move window to cut electrical noise
	// picked up by the hydrophone.
	defer a.DisableMotors()

	// Stale enable/disable echoes would otherwise be read as the move ack.
	a.drainBuffered()

	cmd := fmt.Sprintf("<%s,%s,%d>", axis, dir, steps)
	debug.Move(string(axis), distanceMM)
	if err := a.send(cmd); err != nil {
		return fmt.Errorf("motor: send %s: %w", cmd, err)
	}

	resp, err := a.readLine()
	if err != nil {
		return fmt.Errorf("motor: no ack for %s: %w", cmd, err)
	}

	lower := strings.ToLower(resp)
	if strings.Contains(lower, "limit") || strings.Contains(lower, "reached") {
		return fmt.Errorf("%w (axis %s, response %q)", ErrLimitSwitch, axis, resp)
	}

	want := fmt.Sprintf("%s%s%d", axis, dir, steps)
	if resp != want {
		debug.Error("Unexpected move ack: want %q, got %q", want, resp)
	}
	return nil
}

// EnableMotors powers the stepper drivers. Motors hold position and emit
// coil noise while enabled.
func (a *Arduino) EnableMotors() error {
	if err := a.send("<e,+,0>"); err != nil {
		return fmt.Errorf("motor: enable: %w", err)
	}
	time.Sleep(a.cfg.SettleDelay)
	return nil
}

// DisableMotors powers the drivers down.
func (a *Arduino) DisableMotors() error {
	if err := a.send("<d,+,0>"); err != nil {
		return fmt.Errorf("motor: disable: %w", err)
	}
	time.Sleep(a.cfg.SettleDelay)
	return nil
}

// Home runs the firmware's homing cycle and blocks until it reports
// completion. Position tracking must be reset by the caller afterwards.
func (a *Arduino) Home() error {
	debug.Info("Homing motors...")
	if err := a.send("<h,+,0>"); err != nil {
		return fmt.Errorf("motor: home: %w", err)
	}
	resp, err := a.readLine()
	if err != nil {
		return fmt.Errorf("motor: homing did not complete: %w", err)
	}
	debug.Info("Homing complete: %s", resp)
	return nil
}

// Close disables the motors and releases the connection.
func (a *Arduino) Close() error {
	_ = a.DisableMotors()
	return a.conn.Close()
}

func (a *Arduino) send(cmd string) error {
	debug.Serial("->", cmd)
	_, err := a.conn.Write([]byte(cmd))
	return err
}

// drainBuffered discards firmware output already sitting in the read buffer,
// such as echoes of enable/disable commands.
func (a *Arduino) drainBuffered() {
	for a.r.Buffered() > 0 {
		stale, err := a.r.ReadString('\n')
		if stale != "" {
			debug.Verbose("Discarded stale firmware output: %q", strings.TrimSpace(stale))
		}
		if err != nil {
			return
		}
	}
}

func (a *Arduino) readLine() (string, error) {
	line, err := a.r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	line = strings.TrimSpace(line)
	debug.Serial("<-", line)
	return line, nil
}
