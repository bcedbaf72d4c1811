package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
hardware:
  driver: arduino
  arduino_port: /dev/ttyACM1
  baud_rate: 115200
  scope_address: "192.168.1.50:5025"
  steps_per_mm:
    x: 100
    y: 100
    z: 200
scan:
  type: 2d_xy
  dimensions:
    x: 10
    y: 5
    z: 0
    resolution: 0.5
  settle_ms: 150
  capture_waveform: true
  base_path: /tmp/scans
  calibration_value: 12.5
defaults:
  move_speed_ms: 3
  debug_level: 2
`

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Hardware.Driver != DriverArduino {
		t.Errorf("driver = %q", cfg.Hardware.Driver)
	}
	if cfg.Hardware.ArduinoPort != "/dev/ttyACM1" {
		t.Errorf("arduino_port = %q", cfg.Hardware.ArduinoPort)
	}
	if cfg.Hardware.StepsPerMM.Z != 200 {
		t.Errorf("steps_per_mm.z = %v", cfg.Hardware.StepsPerMM.Z)
	}
	if cfg.Scan.Type != "2d_xy" {
		t.Errorf("scan type = %q", cfg.Scan.Type)
	}
	if cfg.Scan.Dimensions.X != 10 || cfg.Scan.Dimensions.Y != 5 {
		t.Errorf("dimensions = %+v", cfg.Scan.Dimensions)
	}
	if !cfg.Scan.CaptureWaveform {
		t.Error("capture_waveform should be true")
	}
	if cfg.Scan.CalibrationValue != 12.5 {
		t.Errorf("calibration_value = %v", cfg.Scan.CalibrationValue)
	}
	if cfg.SettleDelay() != 150*time.Millisecond {
		t.Errorf("SettleDelay = %v", cfg.SettleDelay())
	}
	if cfg.MoveSpeed() != 3*time.Millisecond {
		t.Errorf("MoveSpeed = %v", cfg.MoveSpeed())
	}
	if cfg.Simulated() {
		t.Error("Simulated should be false with a scope address")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
scan:
  type: 1d_x
  dimensions:
    x: 2
    resolution: 0.5
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Hardware.Driver != DriverArduino {
		t.Errorf("default driver = %q, want arduino", cfg.Hardware.Driver)
	}
	if cfg.Hardware.ArduinoPort != "/dev/ttyACM0" {
		t.Errorf("default arduino_port = %q", cfg.Hardware.ArduinoPort)
	}
	if cfg.Hardware.BaudRate != 115200 {
		t.Errorf("default baud_rate = %d", cfg.Hardware.BaudRate)
	}
	if cfg.Scan.SettleMs != 100 {
		t.Errorf("default settle_ms = %d", cfg.Scan.SettleMs)
	}
	if cfg.Scan.BasePath != "scans" {
		t.Errorf("default base_path = %q", cfg.Scan.BasePath)
	}
	if cfg.Scan.CalibrationValue != 1.0 {
		t.Errorf("default calibration_value = %v", cfg.Scan.CalibrationValue)
	}
	if cfg.Defaults.MoveSpeedMs != 2 {
		t.Errorf("default move_speed_ms = %d", cfg.Defaults.MoveSpeedMs)
	}
	if !cfg.Simulated() {
		t.Error("Simulated should be true without a scope address")
	}
}

func TestLoad_Spec(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	spec := cfg.Spec()
	if string(spec.Type) != "2d_xy" {
		t.Errorf("spec type = %q", spec.Type)
	}
	if spec.Dims.Resolution != 0.5 {
		t.Errorf("spec resolution = %v", spec.Dims.Resolution)
	}
}

func TestLoad_Errors(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "unknown driver",
			yaml: `
hardware:
  driver: plc
scan:
  type: 1d_x
  dimensions: {x: 2, resolution: 0.5}
`,
			wantErr: "hardware.driver",
		},
		{
			name: "zero resolution",
			yaml: `
scan:
  type: 1d_x
  dimensions: {x: 2, resolution: 0}
`,
			wantErr: "resolution",
		},
		{
			name: "unknown scan type",
			yaml: `
scan:
  type: 3d_xyz
  dimensions: {x: 2, resolution: 0.5}
`,
			wantErr: "scan.type",
		},
		{
			name: "1d wrong axis set",
			yaml: `
scan:
  type: 1d_x
  dimensions: {y: 2, resolution: 0.5}
`,
			wantErr: "wrong dimension",
		},
		{
			name: "1d with two dimensions",
			yaml: `
scan:
  type: 1d_x
  dimensions: {x: 2, y: 1, resolution: 0.5}
`,
			wantErr: "exactly one",
		},
		{
			name: "2d with one dimension",
			yaml: `
scan:
  type: 2d_xy
  dimensions: {x: 2, resolution: 0.5}
`,
			wantErr: "exactly two",
		},
		{
			name: "2d wrong plane",
			yaml: `
scan:
  type: 2d_xy
  dimensions: {x: 2, z: 1, resolution: 0.5}
`,
			wantErr: "wrong dimension",
		},
		{
			name: "negative calibration",
			yaml: `
scan:
  type: 1d_x
  dimensions: {x: 2, resolution: 0.5}
  calibration_value: -3
`,
			wantErr: "calibration_value",
		},
		{
			name:    "malformed yaml",
			yaml:    "scan: [this is not\n  a mapping",
			wantErr: "unmarshal yaml",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "read config file") {
		t.Errorf("unexpected error: %v", err)
	}
}
