package motor

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/SonoGo/internal/hw/serialport"
	"github.com/cjeanneret/SonoGo/internal/logic/pattern"
)

func testConfig() Config {
	return Config{
		StepsPerMM:  StepsPerMM{X: 100, Y: 100, Z: 200},
		SettleDelay: time.Microsecond,
	}
}

func newTestArduino(t *testing.T, conn *serialport.MockConn) *Arduino {
	t.Helper()
	cfg := testConfig()
	cfg.SkipGreeting = true
	a, err := NewArduino(conn, cfg)
	require.NoError(t, err)
	return a
}

func TestNewArduino_Greeting(t *testing.T) {
	conn := serialport.NewMockConn("Arduino is ready\r\n")
	a, err := NewArduino(conn, testConfig())
	require.NoError(t, err)
	require.NotNil(t, a)

	// Motors must be disabled right after connecting.
	assert.Equal(t, "<d,+,0>", conn.Written())
}

func TestNewArduino_NoBanner(t *testing.T) {
	conn := serialport.NewMockConn("")
	_, err := NewArduino(conn, testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no firmware banner")
}

func TestArduino_MoveAxis(t *testing.T) {
	cases := []struct {
		name     string
		axis     pattern.Axis
		distance float64
		wantCmd  string
		ack      string
	}{
		{"x forward", pattern.AxisX, 0.5, "<x,+,50>", "x+50\r\n"},
		{"y backward", pattern.AxisY, -1.25, "<y,-,125>", "y-125\r\n"},
		{"z uses its own ratio", pattern.AxisZ, 0.5, "<z,+,100>", "z+100\r\n"},
		{"rounds to nearest step", pattern.AxisX, 0.254, "<x,+,25>", "x+25\r\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := serialport.NewMockConn("")
			a := newTestArduino(t, conn)

			conn.Feed(tc.ack)
			require.NoError(t, a.MoveAxis(tc.axis, tc.distance))

			written := conn.Written()
			assert.Contains(t, written, tc.wantCmd)
			// Enable before the move, disable after.
			assert.Less(t, strings.Index(written, "<e,+,0>"), strings.Index(written, tc.wantCmd))
			assert.Greater(t, strings.LastIndex(written, "<d,+,0>"), strings.Index(written, tc.wantCmd))
		})
	}
}

func TestArduino_MoveAxis_ZeroStepsSkipsHardware(t *testing.T) {
	conn := serialport.NewMockConn("")
	a := newTestArduino(t, conn)

	// 0.004mm at 100 steps/mm rounds to 0 steps.
	require.NoError(t, a.MoveAxis(pattern.AxisX, 0.004))
	assert.Empty(t, conn.Written())
}

func TestArduino_MoveAxis_LimitSwitch(t *testing.T) {
	conn := serialport.NewMockConn("")
	a := newTestArduino(t, conn)

	conn.Feed("limit switch hit\r\n")
	err := a.MoveAxis(pattern.AxisX, 5.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLimitSwitch)
}

func TestArduino_MoveAxis_NoAck(t *testing.T) {
	conn := serialport.NewMockConn("")
	a := newTestArduino(t, conn)

	// No scripted ack: the read hits EOF.
	err := a.MoveAxis(pattern.AxisY, 1.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no ack")
}

func TestArduino_MoveAxis_UnknownAxis(t *testing.T) {
	conn := serialport.NewMockConn("")
	a := newTestArduino(t, conn)

	err := a.MoveAxis(pattern.Axis("w"), 1.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps_per_mm")
}

func TestArduino_Home(t *testing.T) {
	conn := serialport.NewMockConn("")
	a := newTestArduino(t, conn)

	conn.Feed("homing complete\r\n")
	require.NoError(t, a.Home())
	assert.Contains(t, conn.Written(), "<h,+,0>")
}

func TestArduino_Close(t *testing.T) {
	conn := serialport.NewMockConn("")
	a := newTestArduino(t, conn)

	require.NoError(t, a.Close())
	assert.True(t, conn.Closed)
	assert.Contains(t, conn.Written(), "<d,+,0>")
}

func TestStepsPerMM_Get(t *testing.T) {
	s := StepsPerMM{X: 1, Y: 2, Z: 3}
	assert.Equal(t, 1.0, s.Get(pattern.AxisX))
	assert.Equal(t, 2.0, s.Get(pattern.AxisY))
	assert.Equal(t, 3.0, s.Get(pattern.AxisZ))
	assert.Equal(t, 0.0, s.Get(pattern.Axis("w")))
}
