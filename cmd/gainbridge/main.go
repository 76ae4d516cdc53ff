package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/guidoenr/gainbridge/internal/app"
	"github.com/guidoenr/gainbridge/internal/audio"
	"github.com/guidoenr/gainbridge/internal/config"
	"github.com/guidoenr/gainbridge/internal/host"
	"github.com/guidoenr/gainbridge/internal/logging"
	"github.com/guidoenr/gainbridge/internal/web"
)

var version = "0.1.0"

// uiLogFile receives logs while the terminal UI owns the screen.
const uiLogFile = "gainbridge.log"

type versionFlag bool

func (versionFlag) BeforeReset(app *kong.Kong) error {
	fmt.Fprintf(app.Stdout, "%s %s\n", titleStyle.UnsetMarginBottom().Render("gainbridge"), version)
	app.Exit(0)
	return nil
}

// Globals are shared by every command.
type Globals struct {
	LogLevel string `help:"Log level for every category (debug, info, warn, error)"`
	LogFile  string `type:"path" help:"Append logs to this file instead of stderr"`

	logFile io.Closer `kong:"-"`
}

type CLI struct {
	Globals

	Version versionFlag `short:"v" help:"Show version information"`

	Host    HostCmd    `cmd:"" help:"Run the host: parameters, meters, bridge server and OSC"`
	UI      UICmd      `cmd:"" name:"ui" help:"Run the plugin UI against a running host"`
	Run     RunCmd     `cmd:"" help:"Run host and UI in one process"`
	Devices DevicesCmd `cmd:"" help:"List audio input devices"`
}

type HostFlags struct {
	Listen        string        `default:"127.0.0.1:8080" help:"Address of the bridge server"`
	OSC           string        `name:"osc" default:"127.0.0.1:9000" help:"UDP address for OSC automation, empty disables"`
	Device        string        `short:"d" help:"Input device name (partial match)"`
	Channels      int           `default:"2" help:"Input channels"`
	BufferSize    int           `default:"1024" help:"Frames per audio buffer"`
	Monitor       bool          `help:"Play the processed signal on the default output"`
	NoAudio       bool          `help:"Feed the host from a test tone instead of an audio device"`
	MeterInterval time.Duration `default:"60ms" help:"Interval between meter signals"`
	ReleaseMs     float64       `default:"1700" help:"Peak meter release time in milliseconds"`
}

type UIFlags struct {
	FPS    float64 `default:"30" help:"Redraw rate"`
	Window bool    `help:"Draw into an SDL window (needs the sdl build tag)"`
}

type HostCmd struct {
	Layout    string `short:"l" type:"existingfile" help:"YAML layout describing parameters and meters"`
	HostFlags `embed:""`
}

type UICmd struct {
	Layout  string `short:"l" type:"existingfile" help:"YAML layout describing elements and bindings"`
	HostURL string `name:"host" default:"http://127.0.0.1:8080" help:"Address of the host"`
	UIFlags `embed:""`
}

type RunCmd struct {
	Layout    string `short:"l" type:"existingfile" help:"YAML layout"`
	HostFlags `embed:""`
	UIFlags   `embed:""`
}

type DevicesCmd struct {
	All bool `help:"Include output-only devices"`
}

func main() {
	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("gainbridge"),
		kong.Description("Gain plugin host and UI bridge"),
		kong.UsageOnError(),
		kong.Help(styledHelp),
	)

	err := cli.Globals.setup(kctx.Command())
	if err == nil {
		err = kctx.Run(&cli.Globals)
	}
	cli.Globals.close()
	if err != nil && !errors.Is(err, context.Canceled) {
		printError(err)
		os.Exit(1)
	}
}

func (g *Globals) setup(command string) error {
	switch {
	case g.LogFile != "":
		f, err := os.OpenFile(g.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		g.logFile = f
		logging.SetOutput(f)
	case strings.HasPrefix(command, "ui") || strings.HasPrefix(command, "run"):
		f, err := os.OpenFile(uiLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		g.logFile = f
		logging.SetOutput(f)
	}

	if g.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(g.LogLevel)); err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		logging.SetAllLevels(level)
	}
	return nil
}

func (g *Globals) close() {
	if g.logFile != nil {
		logging.SetOutput(nil)
		_ = g.logFile.Close()
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (c *HostCmd) Run(g *Globals) error {
	ctx, stop := signalContext()
	defer stop()

	layout, err := config.Load(c.Layout)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", c.Listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return runHost(ctx, c.HostFlags, layout, ln)
}

func (c *UICmd) Run(g *Globals) error {
	ctx, stop := signalContext()
	defer stop()

	layout, err := config.Load(c.Layout)
	if err != nil {
		return err
	}
	return runUI(ctx, c.HostURL, c.UIFlags, layout)
}

func (c *RunCmd) Run(g *Globals) error {
	ctx, stop := signalContext()
	defer stop()

	layout, err := config.Load(c.Layout)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", c.Listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	hostCtx, cancelHost := context.WithCancel(ctx)
	hostErr := make(chan error, 1)
	go func() {
		hostErr <- runHost(hostCtx, c.HostFlags, layout, ln)
	}()

	uiErr := runUI(ctx, "http://"+ln.Addr().String(), c.UIFlags, layout)
	cancelHost()
	return errors.Join(uiErr, <-hostErr)
}

func (c *DevicesCmd) Run(g *Globals) error {
	if err := audio.Initialize(); err != nil {
		return fmt.Errorf("initialize audio: %w", err)
	}
	defer audio.Terminate()

	devices, err := audio.ListDevices(!c.All)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No devices found.")
		return nil
	}

	fmt.Println(sectionStyle.UnsetMarginTop().Render("Audio devices:"))
	for _, d := range devices {
		var marker []string
		if d.IsDefaultInput {
			marker = append(marker, "default input")
		}
		if d.IsDefaultOutput {
			marker = append(marker, "default output")
		}
		if !d.CanCapture() {
			marker = append(marker, "output only")
		}
		m := ""
		if len(marker) > 0 {
			m = flagStyle.Render("(" + strings.Join(marker, ", ") + ")")
		}
		printDevice(d.Name, d.HostAPI, d.MaxInput, d.MaxOutput, d.DefaultSampleHz, m)
	}
	return nil
}

// runHost serves the bridge on ln and feeds the processor until ctx is done
// or a component fails.
func runHost(ctx context.Context, f HostFlags, layout config.Layout, ln net.Listener) error {
	log := logging.Get(logging.HOST)

	descriptors, err := layout.Descriptors()
	if err != nil {
		_ = ln.Close()
		return err
	}
	h, err := host.New(host.Config{
		Parameters:    descriptors,
		MeterInterval: f.MeterInterval,
		ReleaseMs:     f.ReleaseMs,
		MeterEvent:    layout.Meters.Event,
		MeterResource: layout.Meters.Resource,
		Log:           log,
	})
	if err != nil {
		_ = ln.Close()
		return err
	}

	srv := web.NewServer(h, logging.Get(logging.WEB))
	h.Attach(srv)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 4)
	running := 0
	start := func(name string, fn func() error) {
		running++
		go func() {
			err := fn()
			if err != nil {
				err = fmt.Errorf("%s: %w", name, err)
			}
			errs <- err
		}()
	}

	start("server", func() error { return srv.Serve(ctx, ln) })
	start("meter timer", func() error {
		h.RunMeterTimer(ctx)
		return nil
	})
	if f.OSC != "" {
		d := host.NewDispatcher(h.Store(), logging.Get(logging.OSC))
		start("osc", func() error { return host.ServeOSC(ctx, f.OSC, d) })
	}
	start("audio", func() error { return runAudio(ctx, f, h) })

	log.Info("host running", "listen", ln.Addr().String(), "osc", f.OSC, "parameters", len(descriptors))

	var first error
	for ; running > 0; running-- {
		err := <-errs
		if first == nil && err != nil {
			first = err
		}
		cancel()
	}
	return first
}

func runAudio(ctx context.Context, f HostFlags, h *host.Host) error {
	log := logging.Get(logging.AUDIO)
	if f.NoAudio {
		synth := audio.NewSynth()
		synth.Channels = f.Channels
		log.Info("using test tone", "frequency", synth.Frequency, "hum", synth.Hum)
		return synth.Run(ctx, h)
	}

	if err := audio.Initialize(); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer audio.Terminate()

	stream, err := audio.Open(audio.Config{
		DeviceName: f.Device,
		BufferSize: f.BufferSize,
		Channels:   f.Channels,
		Monitor:    f.Monitor,
	}, h)
	if err != nil {
		return err
	}
	log.Info("capturing", "device", stream.Device().Name, "sample_rate", stream.SampleRate(), "channels", stream.Channels())

	<-ctx.Done()
	return stream.Close()
}

func runUI(ctx context.Context, hostURL string, f UIFlags, layout config.Layout) error {
	ui, err := app.New(ctx, app.Config{
		HostURL:   hostURL,
		Layout:    layout,
		TargetFPS: f.FPS,
		Window:    f.Window,
	})
	if err != nil {
		return err
	}
	defer ui.Close()

	if err := ui.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
