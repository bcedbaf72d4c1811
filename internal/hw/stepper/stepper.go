package stepper

import (
	"fmt"
	"math"
	"time"

	"github.com/cjeanneret/SonoGo/internal/debug"
	"github.com/cjeanneret/SonoGo/internal/hw/gpio"
)

// Config holds the hardware configuration for one linear axis.
type Config struct {
	StepPin    int
	DirPin     int
	EnablePin  int           // A4988 ENABLE pin (BCM). 0 = not used. Active LOW (LOW=enabled).
	StepsPerMM float64       // motor steps per millimetre of carriage travel (leadscrew pitch x microstepping)
	StepDelay  time.Duration // delay per half-cycle of STEP pulse. Total step = 2*StepDelay.
}

// Stepper provides a simple API for moving one lead-screw axis.
// Acceleration, ramping, etc. can be added later.
type Stepper struct {
	gpio  gpio.Driver
	cfg   Config
	delay time.Duration // delay between STEP pulse half-cycles
}

// NewStepper creates a new stepper motor controller for an axis.
// cfg.StepDelay: if 0, defaults to 1ms. For A4988, use half the per-step period.
func NewStepper(g gpio.Driver, cfg Config) *Stepper {
	_ = g.SetupPin(cfg.StepPin, gpio.Output)
	_ = g.SetupPin(cfg.DirPin, gpio.Output)

	delay := cfg.StepDelay
	if delay <= 0 {
		delay = 1 * time.Millisecond
	}

	s := &Stepper{
		gpio:  g,
		cfg:   cfg,
		delay: delay,
	}

	// A4988 ENABLE: active LOW. LOW = enabled, HIGH = disabled.
	if cfg.EnablePin > 0 {
		_ = g.SetupPin(cfg.EnablePin, gpio.Output)
		_ = g.WritePin(cfg.EnablePin, gpio.Low) // enable by default
	}

	return s
}

// MoveMM moves the carriage by a signed distance in millimetres, rounding
// to the nearest whole motor step.
func (s *Stepper) MoveMM(distanceMM float64) error {
	if s.cfg.StepsPerMM <= 0 {
		return fmt.Errorf("stepper: StepsPerMM not configured (got %g)", s.cfg.StepsPerMM)
	}
	steps := int(math.Round(distanceMM * s.cfg.StepsPerMM))
	debug.Printf("Stepper: %.3f mm -> %d steps (%.1f steps/mm)", distanceMM, steps, s.cfg.StepsPerMM)
	return s.MoveSteps(steps)
}

// MoveSteps moves the motor by a number of steps (positive or negative).
func (s *Stepper) MoveSteps(steps int) error {
	if steps == 0 {
		return nil
	}

	var dirLevel gpio.Level
	var direction string
	if steps > 0 {
		dirLevel = gpio.High
		direction = "forward"
	} else {
		dirLevel = gpio.Low
		direction = "backward"
		steps = -steps
	}

	debug.Printf("Stepper: moving %d steps (%s) on pin %d", steps, direction, s.cfg.StepPin)

	if err := s.gpio.WritePin(s.cfg.DirPin, dirLevel); err != nil {
		return err
	}

	for i := 0; i < steps; i++ {
		if err := s.stepPulse(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stepper) stepPulse() error {
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.High); err != nil {
		return err
	}
	time.Sleep(s.delay)
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.Low); err != nil {
		return err
	}
	time.Sleep(s.delay)
	return nil
}

// Enable turns on the motor driver (A4988 ENABLE=LOW). Motors hold position.
func (s *Stepper) Enable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.Low)
}

// Disable turns off the motor driver (A4988 ENABLE=HIGH). Motors freewheel, no holding torque.
// Use while the oscilloscope is sampling to reduce electrical and mechanical noise.
func (s *Stepper) Disable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.High)
}
