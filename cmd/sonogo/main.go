package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/SonoGo/internal/config"
	"github.com/cjeanneret/SonoGo/internal/debug"
	"github.com/cjeanneret/SonoGo/internal/hw/gpio"
	"github.com/cjeanneret/SonoGo/internal/hw/motor"
	"github.com/cjeanneret/SonoGo/internal/hw/scope"
	"github.com/cjeanneret/SonoGo/internal/hw/serialport"
	"github.com/cjeanneret/SonoGo/internal/hw/stepper"
	"github.com/cjeanneret/SonoGo/internal/logic/motion"
	"github.com/cjeanneret/SonoGo/internal/logic/pattern"
	"github.com/cjeanneret/SonoGo/internal/logic/scan"
	"github.com/cjeanneret/SonoGo/internal/report"
	"github.com/cjeanneret/SonoGo/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	scanType := flag.String("scan_type", "", "override scan type (1d_x..1d_z, 2d_xy, 2d_xz, 2d_yz)")
	xMM := flag.Float64("x_mm", 0, "override X extent in mm")
	yMM := flag.Float64("y_mm", 0, "override Y extent in mm")
	zMM := flag.Float64("z_mm", 0, "override Z extent in mm")
	resolutionMM := flag.Float64("resolution_mm", 0, "override scan resolution in mm")
	runOnce := flag.Bool("run", false, "run a single scan and exit instead of the interactive menu")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	applyOverrides(cfg, web.Overrides{
		Type:       *scanType,
		X:          *xMM,
		Y:          *yMM,
		Z:          *zMM,
		Resolution: *resolutionMM,
	})

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Motion driver", cfg.Hardware.Driver)

	debug.Step(1, "Connecting motion hardware")
	mover, closeMover, err := newMoverFromConfig(cfg)
	if err != nil {
		log.Fatalf("init motion hardware failed: %v", err)
	}
	defer func() {
		if err := closeMover(); err != nil {
			log.Printf("closing motion hardware failed: %v", err)
		}
	}()

	// The simulated scope reads the probe position back from the scan
	// controller, which does not exist yet. The indirection breaks the cycle.
	var ctrl *scan.Controller
	position := func() (x, y, z float64) {
		if ctrl == nil {
			return 0, 0, 0
		}
		pos := ctrl.Position()
		return pos.X, pos.Y, pos.Z
	}

	debug.Step(2, "Connecting oscilloscope")
	sampler, closeSampler, err := newSamplerFromConfig(cfg, position)
	if err != nil {
		log.Fatalf("init oscilloscope failed: %v", err)
	}
	defer func() {
		if err := closeSampler(); err != nil {
			log.Printf("closing oscilloscope failed: %v", err)
		}
	}()

	broadcaster := web.NewStatusBroadcaster()

	ctrl = scan.NewController(mover, sampler, scan.Params{
		Settle:          cfg.SettleDelay(),
		CaptureWaveform: cfg.Scan.CaptureWaveform,
		Observer: func(completed, total int, dp scan.Datapoint) {
			debug.Sample(completed, total, dp.Position.X, dp.Position.Y, dp.Position.Z)
			broadcaster.BroadcastProgress(completed, total, dp.Position.X, dp.Position.Y, dp.Position.Z)
		},
	})

	runScan := func(ctx context.Context, overrides web.Overrides) error {
		return executeScan(ctx, cfg, ctrl, sampler, overrides)
	}

	if port := webPort.port(); port > 0 {
		webAddr := fmt.Sprintf(":%d", port)
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

		formDefaults := web.FormConfig{
			Type:       cfg.Scan.Type,
			X:          cfg.Scan.Dimensions.X,
			Y:          cfg.Scan.Dimensions.Y,
			Z:          cfg.Scan.Dimensions.Z,
			Resolution: cfg.Scan.Dimensions.Resolution,
		}
		srv := web.NewServer(webAddr, broadcaster, runScan, ctrl.Position, formDefaults)
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		return
	}

	if *runOnce {
		if err := runScan(ctx, web.Overrides{}); err != nil {
			log.Fatalf("scan failed: %v", err)
		}
		return
	}

	menuLoop(ctx, cfg, cfgPath, ctrl, sampler, runScan)
}

// executeScan runs one scan with the given overrides and saves the results.
func executeScan(ctx context.Context, cfg *config.Config, ctrl *scan.Controller, sampler scope.Sampler, overrides web.Overrides) error {
	spec := cfg.Spec()
	if overrides.Type != "" {
		spec = overrides.Spec()
	}

	result, err := ctrl.Run(ctx, spec)
	var retErr *scan.ReturnError
	if errors.As(err, &retErr) {
		// The scan data is intact, the probe just did not make it back.
		log.Printf("return to start failed, reposition manually: %v", retErr)
		err = nil
	}
	if err != nil {
		return err
	}

	run, rerr := report.NewRun(cfg.Scan.BasePath)
	if rerr != nil {
		return fmt.Errorf("create scan directory: %w", rerr)
	}
	if serr := run.Save(result, hardwareMeta(cfg, sampler)); serr != nil {
		return fmt.Errorf("save scan results: %w", serr)
	}

	debug.Summary("Scan Complete")
	debug.Value("Points", len(result.Points))
	debug.Value("Missing", result.Missing)
	debug.Value("Elapsed", result.Elapsed)
	debug.Value("Saved to", run.Dir)
	return nil
}

// menuLoop is the interactive console workflow: position the probe, adjust
// the configuration, then run scans until the operator exits.
func menuLoop(ctx context.Context, cfg *config.Config, cfgPath *string, ctrl *scan.Controller, sampler scope.Sampler, runScan web.RunScanFunc) {
	in := bufio.NewScanner(os.Stdin)

	fmt.Println("\n=== SonoGo Hydrophone Scanner ===")
	for {
		fmt.Println("\nBefore scanning:")
		fmt.Println("1. Enter positioning mode")
		fmt.Println("2. Reload config")
		fmt.Println("3. Start scan")
		fmt.Println("4. Exit")
		fmt.Print("Choice: ")

		if !in.Scan() || ctx.Err() != nil {
			return
		}
		switch strings.TrimSpace(in.Text()) {
		case "1":
			positioningMode(in, cfg, ctrl, sampler)
		case "2":
			fresh, err := config.Load(*cfgPath)
			if err != nil {
				fmt.Printf("reload failed: %v\n", err)
				continue
			}
			// Scan shape and output path take effect immediately. Hardware
			// wiring and settle delay need a restart.
			cfg.Scan = fresh.Scan
			cfg.Defaults = fresh.Defaults
			debug.Init(cfg.Defaults.DebugLevel)
			fmt.Println("Configuration reloaded.")
		case "3":
			if err := runScan(ctx, web.Overrides{}); err != nil {
				log.Printf("scan failed: %v", err)
			}
		case "4":
			return
		default:
			fmt.Println("Invalid choice")
		}
	}
}

// positioningMode lets the operator jog the probe axis by axis and probe the
// signal before committing to a scan.
func positioningMode(in *bufio.Scanner, cfg *config.Config, ctrl *scan.Controller, sampler scope.Sampler) {
	fmt.Println("\nManual Positioning Mode")
	fmt.Println("Commands:")
	fmt.Println("  x+/x-/y+/y-/z+/z- <distance>  - move axis by distance in mm")
	fmt.Println("  m                             - measure peaks at current position")
	fmt.Println("  c [n]                         - continuous sampling, n readings (default 10)")
	fmt.Println("  w                             - acquire and summarize a waveform")
	fmt.Println("  p                             - show current position")
	fmt.Println("  o                             - make this position the scan center")
	fmt.Println("  done                          - finish positioning")

	for {
		fmt.Print("\n> ")
		if !in.Scan() {
			return
		}
		line := strings.TrimSpace(strings.ToLower(in.Text()))
		switch {
		case line == "":
		case line == "done":
			return
		case line == "m":
			peaks, err := sampler.Measure()
			if err != nil {
				fmt.Printf("measurement failed: %v\n", err)
				continue
			}
			if peaks == nil {
				fmt.Println("no measurement available")
				continue
			}
			fmt.Printf("Measurement: +%.3fV, %.3fV (pk-pk %.3fV, %s)\n",
				peaks.Positive, peaks.Negative, peaks.PeakToPeak, peaks.Method)
		case line == "c" || strings.HasPrefix(line, "c "):
			n := 10
			if fields := strings.Fields(line); len(fields) == 2 {
				v, err := strconv.Atoi(fields[1])
				if err != nil || v < 1 {
					fmt.Printf("invalid sample count %q\n", fields[1])
					continue
				}
				n = v
			}
			continuousSampling(sampler, n)
		case line == "o":
			ctrl.ResetOrigin()
			path, err := saveConfigSnapshot(cfg)
			if err != nil {
				fmt.Printf("scan center updated, but saving config snapshot failed: %v\n", err)
				continue
			}
			fmt.Printf("Scan center updated. Config snapshot saved to %s\n", path)
		case line == "w":
			ts, ok := sampler.(scope.TraceSampler)
			if !ok {
				fmt.Println("waveform capture not supported by this scope")
				continue
			}
			tr, err := ts.Waveform()
			if err != nil {
				fmt.Printf("waveform acquisition failed: %v\n", err)
				continue
			}
			printTraceSummary(tr)
		case line == "p":
			pos := ctrl.Position()
			fmt.Printf("Position: x %.3f  y %.3f  z %.3f mm\n", pos.X, pos.Y, pos.Z)
		default:
			axis, distance, err := parseJogCommand(line)
			if err != nil {
				fmt.Printf("invalid command: %v\n", err)
				continue
			}
			if err := ctrl.Jog(axis, distance); err != nil {
				fmt.Printf("movement failed: %v\n", err)
				continue
			}
			fmt.Printf("Moved %s axis by %gmm\n", axis, distance)
		}
	}
}

// scopeReconnectThreshold is how many empty readings in a row the scope gets
// before its connection is rebuilt.
const scopeReconnectThreshold = 5

// scopeReconnector is the optional reconnect surface of a sampler.
type scopeReconnector interface {
	ConsecutiveErrors() int
	Reconnect() error
}

// maybeReconnectScope rebuilds the scope connection once it has answered
// nothing for more than scopeReconnectThreshold readings in a row.
func maybeReconnectScope(sampler scope.Sampler) {
	rc, ok := sampler.(scopeReconnector)
	if !ok || rc.ConsecutiveErrors() <= scopeReconnectThreshold {
		return
	}
	fmt.Println("scope not responding, reconnecting...")
	if err := rc.Reconnect(); err != nil {
		fmt.Printf("reconnect failed: %v\n", err)
	}
}

// continuousSampling prints n readings in a table, half a second apart.
func continuousSampling(sampler scope.Sampler, n int) {
	fmt.Printf("%-6s %12s %12s %12s  %s\n", "num", "positive_v", "negative_v", "pk_pk_v", "method")
	for i := 1; i <= n; i++ {
		peaks, err := sampler.Measure()
		switch {
		case err != nil:
			fmt.Printf("%-6d measurement failed: %v\n", i, err)
		case peaks == nil:
			fmt.Printf("%-6d no measurement available\n", i)
			maybeReconnectScope(sampler)
		default:
			fmt.Printf("%-6d %12.4f %12.4f %12.4f  %s\n",
				i, peaks.Positive, peaks.Negative, peaks.PeakToPeak, peaks.Method)
		}
		if i < n {
			time.Sleep(500 * time.Millisecond)
		}
	}
}

// saveConfigSnapshot writes the active configuration next to the scan data,
// so a repositioned scan center can be reproduced later.
func saveConfigSnapshot(cfg *config.Config) (string, error) {
	if err := os.MkdirAll(cfg.Scan.BasePath, 0o755); err != nil {
		return "", err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	path := filepath.Join(cfg.Scan.BasePath, fmt.Sprintf("config_%s.yaml", time.Now().Format("20060102_150405")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// printTraceSummary prints the extremes of a captured waveform.
func printTraceSummary(tr *scope.Trace) {
	if len(tr.Volts) == 0 {
		fmt.Println("empty waveform")
		return
	}
	max, min := tr.Volts[0], tr.Volts[0]
	for _, v := range tr.Volts {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	span := float64(len(tr.Volts)) * tr.Interval
	fmt.Printf("Waveform: %d samples over %.2fus, peaks +%.3fV / %.3fV\n",
		len(tr.Volts), span*1e6, max, min)
}

// parseJogCommand parses positioning input of the form "x+ 0.5" or "z- 10".
func parseJogCommand(line string) (pattern.Axis, float64, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 || len(fields[0]) != 2 {
		return "", 0, fmt.Errorf("expected \"<axis><+|-> <distance>\", got %q", line)
	}

	axis := pattern.Axis(fields[0][:1])
	switch axis {
	case pattern.AxisX, pattern.AxisY, pattern.AxisZ:
	default:
		return "", 0, fmt.Errorf("unknown axis %q", fields[0][:1])
	}

	sign := 1.0
	switch fields[0][1] {
	case '+':
	case '-':
		sign = -1
	default:
		return "", 0, fmt.Errorf("direction must be + or -, got %q", fields[0][1:])
	}

	distance, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return "", 0, fmt.Errorf("bad distance %q: %w", fields[1], err)
	}
	if distance < 0 {
		return "", 0, fmt.Errorf("distance must be non-negative, got %g", distance)
	}
	return axis, sign * distance, nil
}

// applyOverrides mutates cfg with CLI overrides. Only non-zero values are applied.
func applyOverrides(cfg *config.Config, overrides web.Overrides) {
	if overrides.Type != "" {
		cfg.Scan.Type = overrides.Type
	}
	if overrides.X > 0 {
		cfg.Scan.Dimensions.X = overrides.X
	}
	if overrides.Y > 0 {
		cfg.Scan.Dimensions.Y = overrides.Y
	}
	if overrides.Z > 0 {
		cfg.Scan.Dimensions.Z = overrides.Z
	}
	if overrides.Resolution > 0 {
		cfg.Scan.Dimensions.Resolution = overrides.Resolution
	}
}

// newMoverFromConfig selects the motion backend based on configuration.
func newMoverFromConfig(cfg *config.Config) (motion.Mover, func() error, error) {
	switch cfg.Hardware.Driver {
	case config.DriverArduino:
		debug.Value("Arduino port", cfg.Hardware.ArduinoPort)
		conn, err := serialport.OpenSerial(cfg.Hardware.ArduinoPort, cfg.Hardware.BaudRate)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", cfg.Hardware.ArduinoPort, err)
		}
		arduino, err := motor.NewArduino(conn, motor.Config{
			StepsPerMM: motor.StepsPerMM{
				X: cfg.Hardware.StepsPerMM.X,
				Y: cfg.Hardware.StepsPerMM.Y,
				Z: cfg.Hardware.StepsPerMM.Z,
			},
		})
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		return arduino, arduino.Close, nil

	case config.DriverRig:
		debug.Value("Mock GPIO", cfg.Hardware.MockGPIO)
		driver, err := gpio.NewDriver(cfg.Hardware.MockGPIO)
		if err != nil {
			return nil, nil, err
		}
		stepDelay := cfg.MoveSpeed() / 2
		newAxis := func(sc config.StepperConfig) *stepper.Stepper {
			return stepper.NewStepper(driver, stepper.Config{
				StepPin:    sc.StepPin,
				DirPin:     sc.DirPin,
				EnablePin:  sc.EnablePin,
				StepsPerMM: sc.StepsPerMM,
				StepDelay:  stepDelay,
			})
		}
		rig := motion.NewRig(
			newAxis(cfg.Hardware.XStepper),
			newAxis(cfg.Hardware.YStepper),
			newAxis(cfg.Hardware.ZStepper),
		)
		return rig, driver.Close, nil

	case config.DriverMock:
		return motion.NewMockMover(), func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported motion driver: %s", cfg.Hardware.Driver)
	}
}

// newSamplerFromConfig connects the oscilloscope, or a simulated source when
// no scope address is configured.
func newSamplerFromConfig(cfg *config.Config, position func() (x, y, z float64)) (scope.Sampler, func() error, error) {
	if cfg.Simulated() {
		debug.Info("no scope address configured, using simulated measurements")
		return scope.NewSim(position), func() error { return nil }, nil
	}

	debug.Value("Scope address", cfg.Hardware.ScopeAddress)
	opener := func() (serialport.Conn, error) {
		return serialport.DialSCPI(cfg.Hardware.ScopeAddress)
	}
	conn, err := opener()
	if err != nil {
		return nil, nil, fmt.Errorf("connect to scope at %s: %w", cfg.Hardware.ScopeAddress, err)
	}
	siglent, err := scope.NewSiglent(conn, opener)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return siglent, siglent.Close, nil
}

// hardwareMeta describes the acquisition setup for the scan metadata file.
func hardwareMeta(cfg *config.Config, sampler scope.Sampler) map[string]any {
	meta := map[string]any{
		"driver":            cfg.Hardware.Driver,
		"calibration_value": cfg.Scan.CalibrationValue,
	}
	if cfg.Hardware.Driver == config.DriverArduino {
		meta["arduino_port"] = cfg.Hardware.ArduinoPort
	}
	if sig, ok := sampler.(*scope.Siglent); ok {
		meta["scope_address"] = cfg.Hardware.ScopeAddress
		meta["scope_settings"] = sig.Settings()
	} else {
		meta["scope"] = "simulated"
	}
	return meta
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
