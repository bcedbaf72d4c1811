package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/SonoGo/internal/logic/pattern"
)

// Motion backend selectors for HardwareConfig.Driver.
const (
	DriverArduino = "arduino" // serial-attached Arduino running the stepper firmware
	DriverRig     = "rig"     // A4988 drivers wired straight to Raspberry Pi GPIOs
	DriverMock    = "mock"    // no hardware, moves are logged only
)

// StepperConfig holds the GPIO wiring for one axis of the direct-drive rig.
type StepperConfig struct {
	StepPin    int     `yaml:"step_pin"`
	DirPin     int     `yaml:"dir_pin"`
	EnablePin  int     `yaml:"enable_pin"` // A4988 ENABLE pin (BCM). 0 = not used. Active LOW.
	StepsPerMM float64 `yaml:"steps_per_mm"`
}

// StepsPerMMConfig is the per-axis steps/mm calibration for the Arduino backend.
type StepsPerMMConfig struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// HardwareConfig describes how to reach the rig and the oscilloscope.
type HardwareConfig struct {
	Driver       string           `yaml:"driver"`        // "arduino", "rig" or "mock"
	ArduinoPort  string           `yaml:"arduino_port"`  // e.g., /dev/ttyACM0
	BaudRate     int              `yaml:"baud_rate"`     // firmware runs at 115200
	ScopeAddress string           `yaml:"scope_address"` // host:port of the SCPI socket; empty = simulated
	StepsPerMM   StepsPerMMConfig `yaml:"steps_per_mm"`

	// Rig backend wiring, one stepper per axis.
	XStepper StepperConfig `yaml:"x_stepper"`
	YStepper StepperConfig `yaml:"y_stepper"`
	ZStepper StepperConfig `yaml:"z_stepper"`
	MockGPIO bool          `yaml:"mock_gpio"` // use mock GPIO with the rig backend (dev/test)
}

// ScanConfig is the default scan executed by the menu's "run scan" entry.
type ScanConfig struct {
	Type             string             `yaml:"type"` // 1d_x..1d_z, 2d_xy, 2d_xz, 2d_yz
	Dimensions       pattern.Dimensions `yaml:"dimensions"`
	SettleMs         int                `yaml:"settle_ms"`         // pause after each move before sampling
	CaptureWaveform  bool               `yaml:"capture_waveform"`  // store the raw trace per point
	BasePath         string             `yaml:"base_path"`         // scan output directory
	CalibrationValue float64            `yaml:"calibration_value"` // hydrophone sensitivity, mV/kPa
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	MoveSpeedMs int `yaml:"move_speed_ms"` // delay between motor steps (rig backend)
	DebugLevel  int `yaml:"debug_level"`   // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
}

// Config aggregates all application configuration.
type Config struct {
	Hardware HardwareConfig `yaml:"hardware"`
	Scan     ScanConfig     `yaml:"scan"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Defaults
	if cfg.Hardware.Driver == "" {
		cfg.Hardware.Driver = DriverArduino
	}
	if cfg.Hardware.ArduinoPort == "" {
		cfg.Hardware.ArduinoPort = "/dev/ttyACM0"
	}
	if cfg.Hardware.BaudRate <= 0 {
		cfg.Hardware.BaudRate = 115200
	}
	if cfg.Scan.SettleMs <= 0 {
		cfg.Scan.SettleMs = 100
	}
	if cfg.Scan.BasePath == "" {
		cfg.Scan.BasePath = "scans"
	}
	if cfg.Scan.CalibrationValue == 0 {
		cfg.Scan.CalibrationValue = 1.0
	}
	if cfg.Defaults.MoveSpeedMs <= 0 {
		cfg.Defaults.MoveSpeedMs = 2 // reasonable default
	}

	// Basic validation
	switch cfg.Hardware.Driver {
	case DriverArduino, DriverRig, DriverMock:
	default:
		return nil, fmt.Errorf("hardware.driver must be %q, %q or %q, got %q",
			DriverArduino, DriverRig, DriverMock, cfg.Hardware.Driver)
	}
	if cfg.Scan.CalibrationValue < 0 {
		return nil, fmt.Errorf("scan.calibration_value must be positive, got %g", cfg.Scan.CalibrationValue)
	}
	if err := validateScan(&cfg.Scan); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validateScan checks that the dimensions match the scan type: a 1D scan has
// exactly its own axis non-zero, a 2D scan exactly its two plane axes.
func validateScan(sc *ScanConfig) error {
	if sc.Dimensions.Resolution <= 0 {
		return fmt.Errorf("scan.dimensions.resolution must be positive, got %g", sc.Dimensions.Resolution)
	}

	st := pattern.ScanType(sc.Type)
	primary, secondary, err := st.Axes()
	if err != nil {
		return fmt.Errorf("scan.type: %w", err)
	}

	var active []pattern.Axis
	for _, axis := range []pattern.Axis{pattern.AxisX, pattern.AxisY, pattern.AxisZ} {
		if sc.Dimensions.Extent(axis) != 0 {
			active = append(active, axis)
		}
	}

	if st.Is2D() {
		if len(active) != 2 {
			return fmt.Errorf("2D scan should have exactly two non-zero dimensions, got %d", len(active))
		}
		for _, axis := range active {
			if axis != primary && axis != secondary {
				return fmt.Errorf("2D scan in %s%s plane has wrong dimension set: %s", primary, secondary, axis)
			}
		}
		return nil
	}

	if len(active) != 1 {
		return fmt.Errorf("1D scan should have exactly one non-zero dimension, got %d", len(active))
	}
	if active[0] != primary {
		return fmt.Errorf("1D scan along %s axis has wrong dimension set: %s", primary, active[0])
	}
	return nil
}

// Spec returns the configured scan as a pattern spec.
func (c *Config) Spec() pattern.Spec {
	return pattern.Spec{
		Type: pattern.ScanType(c.Scan.Type),
		Dims: c.Scan.Dimensions,
	}
}

// SettleDelay returns the pause between a move and the measurement.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Scan.SettleMs) * time.Millisecond
}

// MoveSpeed returns the duration between two motor steps on the rig backend.
func (c *Config) MoveSpeed() time.Duration {
	return time.Duration(c.Defaults.MoveSpeedMs) * time.Millisecond
}

// Simulated reports whether the measurement side runs without an instrument.
func (c *Config) Simulated() bool {
	return c.Hardware.ScopeAddress == ""
}
