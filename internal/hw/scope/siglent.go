package scope

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/cjeanneret/SonoGo/internal/debug"
	"github.com/cjeanneret/SonoGo/internal/hw/serialport"
)

// Siglent divisions visible on screen; used to derive the sample interval
// from the timebase setting.
const screenDivisions = 14

// wfCodeScale converts raw 8-bit waveform codes to screen divisions.
const wfCodeScale = 25.0

// Siglent reads channel 1 of a Siglent SDS series oscilloscope over its raw
// SCPI socket (port 5025). Peak queries are tried in order of preference,
// with a raw waveform capture as the last resort, since firmware revisions
// differ in which measurement commands they support.
type Siglent struct {
	conn     serialport.Conn
	r        *bufio.Reader
	reopen   serialport.Opener
	settings map[string]string

	// consecutiveErrors counts Measure calls in a row that produced
	// nothing; the caller can use it to decide when to reconnect.
	consecutiveErrors int
}

// NewSiglent initializes the instrument on an open connection: response
// headers off, identity logged, channel settings cached for waveform scaling.
func NewSiglent(conn serialport.Conn, reopen serialport.Opener) (*Siglent, error) {
	s := &Siglent{
		conn:     conn,
		r:        bufio.NewReader(conn),
		reopen:   reopen,
		settings: make(map[string]string),
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Siglent) init() error {
	// Strip command echoes from responses, so "C1:PAVA? MAX" answers
	// "MAX,1.23E-01V" instead of "C1:PAVA MAX,1.23E-01V".
	if err := s.write("CHDR OFF"); err != nil {
		return fmt.Errorf("scope: CHDR OFF: %w", err)
	}

	idn, err := s.query("*IDN?")
	if err != nil {
		return fmt.Errorf("scope: identify: %w", err)
	}
	debug.Info("Oscilloscope: %s", idn)

	s.readSettings()
	return nil
}

// readSettings caches the channel scaling needed to decode raw waveforms.
// Missing settings are logged and skipped; the defaults are safe.
func (s *Siglent) readSettings() {
	queries := []scpiQuery{
		{"vdiv", "C1:VDIV?"},
		{"tdiv", "TDIV?"},
		{"coupling", "C1:CPL?"},
		{"trigger_mode", "TRMD?"},
		{"offset", "C1:OFST?"},
	}
	for _, q := range queries {
		resp, err := s.query(q.cmd)
		if err != nil {
			debug.Error("Could not read scope setting %s: %v", q.name, err)
			continue
		}
		s.settings[q.name] = resp
		debug.Value(q.name, resp)
	}
}

// Settings returns a copy of the cached instrument settings.
func (s *Siglent) Settings() map[string]string {
	out := make(map[string]string, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out
}

// Measure reads the positive peak, negative peak and peak-to-peak voltage on
// channel 1. Query variants are tried in order; if no peak query works, the
// raw waveform is captured and scanned instead. Returns (nil, nil) when the
// instrument answered nothing usable.
func (s *Siglent) Measure() (*Peaks, error) {
	p := &Peaks{
		Positive:   math.NaN(),
		Negative:   math.NaN(),
		PeakToPeak: math.NaN(),
	}

	posQueries := []scpiQuery{
		{"PAVA_MAX", "C1:PAVA? MAX"},
		{"MEAS_VMAX", "MEAS:VMAX? C1"},
		{"PARA_MAX", "PARA? C1,MAX"},
	}
	negQueries := []scpiQuery{
		{"PAVA_MIN", "C1:PAVA? MIN"},
		{"MEAS_VMIN", "MEAS:VMIN? C1"},
		{"PARA_MIN", "PARA? C1,MIN"},
	}
	pkpkQueries := []scpiQuery{
		{"PAVA_PKPK", "C1:PAVA? PKPK"},
		{"MEAS_VAMP", "MEAS:VAMP? C1"},
		{"PARA_PKPK", "PARA? C1,PKPK"},
	}

	var err error
	if p.Positive, p.Method, err = s.tryQueries(posQueries); err != nil {
		return nil, err
	}
	if p.Negative, _, err = s.tryQueries(negQueries); err != nil {
		return nil, err
	}
	var pkpkMethod string
	if p.PeakToPeak, pkpkMethod, err = s.tryQueries(pkpkQueries); err != nil {
		return nil, err
	}
	if p.Method == "" {
		p.Method = pkpkMethod
	}

	if math.IsNaN(p.Positive) || math.IsNaN(p.Negative) {
		if tr, werr := s.Waveform(); werr == nil && len(tr.Volts) > 0 {
			p.Positive, p.Negative = traceExtremes(tr)
			p.PeakToPeak = p.Positive - p.Negative
			p.Method = "WAVEFORM"
		}
	}

	p.Derive()
	if p.Empty() {
		s.consecutiveErrors++
		debug.Error("No voltage reading available (%d consecutive failures)", s.consecutiveErrors)
		return nil, nil
	}
	s.consecutiveErrors = 0
	return p, nil
}

type scpiQuery struct {
	name string
	cmd  string
}

// tryQueries runs measurement queries until one parses. Unparseable or
// timed-out responses move on to the next variant; a write failure means the
// connection is gone and aborts.
func (s *Siglent) tryQueries(queries []scpiQuery) (float64, string, error) {
	for _, q := range queries {
		if err := s.write(q.cmd); err != nil {
			return math.NaN(), "", fmt.Errorf("scope: %s: %w", q.cmd, err)
		}
		resp, err := s.readLine()
		if err != nil {
			debug.Verbose("Query %s got no response: %v", q.name, err)
			continue
		}
		v, err := parseMeasurement(resp)
		if err != nil {
			debug.Verbose("Query %s unparseable response %q", q.name, resp)
			continue
		}
		return v, q.name, nil
	}
	return math.NaN(), "", nil
}

// parseMeasurement decodes responses like "MAX,1.23E-01V" or a bare number.
func parseMeasurement(resp string) (float64, error) {
	if i := strings.LastIndex(resp, ","); i >= 0 {
		resp = resp[i+1:]
	}
	resp = strings.TrimSuffix(strings.TrimSpace(resp), "V")
	return strconv.ParseFloat(resp, 64)
}

// Waveform captures the raw channel 1 trace. The instrument answers with an
// IEEE definite-length block: '#', one digit giving the length-field width,
// that many ASCII digits giving the byte count, then signed 8-bit samples.
func (s *Siglent) Waveform() (*Trace, error) {
	if err := s.write("C1:WF? DAT1"); err != nil {
		return nil, fmt.Errorf("scope: waveform request: %w", err)
	}

	data, err := s.readBlock()
	if err != nil {
		return nil, fmt.Errorf("scope: waveform read: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("scope: empty waveform")
	}

	vdiv := s.settingFloat("vdiv", 1.0)
	offset := s.settingFloat("offset", 0.0)
	tdiv := s.settingFloat("tdiv", 0.0)

	volts := make([]float64, len(data))
	for i, b := range data {
		volts[i] = float64(int8(b))/wfCodeScale*vdiv + offset
	}

	tr := &Trace{Volts: volts}
	if tdiv > 0 {
		tr.Interval = tdiv * screenDivisions / float64(len(volts))
	}
	return tr, nil
}

// readBlock reads one definite-length binary block, skipping any leading
// bytes before the '#' marker.
func (s *Siglent) readBlock() ([]byte, error) {
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == '#' {
			break
		}
	}

	widthByte, err := s.r.ReadByte()
	if err != nil {
		return nil, err
	}
	width := int(widthByte - '0')
	if width < 1 || width > 9 {
		return nil, fmt.Errorf("bad block length width %q", widthByte)
	}

	lenDigits := make([]byte, width)
	if _, err := io.ReadFull(s.r, lenDigits); err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(string(lenDigits))
	if err != nil {
		return nil, fmt.Errorf("bad block length %q: %w", lenDigits, err)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(s.r, data); err != nil {
		return nil, err
	}
	// Trailing terminator, if any.
	if s.r.Buffered() > 0 {
		_, _ = s.r.ReadByte()
	}
	return data, nil
}

func (s *Siglent) settingFloat(name string, fallback float64) float64 {
	raw, ok := s.settings[name]
	if !ok || raw == "" {
		return fallback
	}
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return fallback
	}
	last := strings.TrimSuffix(fields[len(fields)-1], "V")
	last = strings.TrimSuffix(last, "S")
	v, err := strconv.ParseFloat(last, 64)
	if err != nil {
		return fallback
	}
	return v
}

func traceExtremes(tr *Trace) (max, min float64) {
	max, min = math.Inf(-1), math.Inf(1)
	for _, v := range tr.Volts {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return max, min
}

// ConsecutiveErrors returns how many Measure calls in a row came back empty.
func (s *Siglent) ConsecutiveErrors() int {
	return s.consecutiveErrors
}

// Reconnect tears down the connection and re-runs initialization. Only
// available when the client was built with an Opener.
func (s *Siglent) Reconnect() error {
	if s.reopen == nil {
		return fmt.Errorf("scope: no opener configured for reconnect")
	}
	debug.Info("Reconnecting to oscilloscope...")
	_ = s.conn.Close()

	conn, err := s.reopen()
	if err != nil {
		return fmt.Errorf("scope: reconnect: %w", err)
	}
	s.conn = conn
	s.r = bufio.NewReader(conn)
	s.consecutiveErrors = 0
	return s.init()
}

// Close releases the instrument connection.
func (s *Siglent) Close() error {
	return s.conn.Close()
}

func (s *Siglent) query(cmd string) (string, error) {
	if err := s.write(cmd); err != nil {
		return "", err
	}
	return s.readLine()
}

func (s *Siglent) write(cmd string) error {
	debug.Serial("->", cmd)
	_, err := s.conn.Write([]byte(cmd + "\n"))
	return err
}

func (s *Siglent) readLine() (string, error) {
	line, err := s.r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	line = strings.TrimSpace(line)
	debug.Serial("<-", line)
	return line, nil
}
