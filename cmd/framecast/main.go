// Package main provides the framecast daemon: it reads raw frames from a
// file, standard input or a synthetic pattern, encodes them with libx264
// and sends every access unit as one tagged UDP datagram.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/framecast"
	"github.com/opd-ai/framecast/codec"
	"github.com/opd-ai/framecast/config"
	"github.com/opd-ai/framecast/control"
	"github.com/opd-ai/framecast/pixfmt"
	"github.com/opd-ai/framecast/source"
)

// CLIConfig holds the command-line flags. Stream settings that were not
// given on the command line keep the value from the config file and the
// environment.
type CLIConfig struct {
	configPath  string
	writeConfig string
	input       string
	loop        bool
	controlAddr string
	logLevel    string
	logFormat   string
	help        bool

	width            int
	height           int
	frameRate        int
	sourceFormat     string
	bFrames          int
	qp               int
	preset           string
	tune             string
	profile          string
	frameMultiplier  int
	bitRate          int
	destAddress      string
	destPort         int
	bindAddress      string
	dumpPath         string
	fatalFrameErrors bool
}

// parseCLIFlags parses args into a CLIConfig and returns the flag set so
// callers can tell which flags were given.
func parseCLIFlags(args []string) (*CLIConfig, *flag.FlagSet, error) {
	cli := &CLIConfig{}
	fs := flag.NewFlagSet("framecast", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cli.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&cli.writeConfig, "write-config", "", "Write the effective configuration to this file and exit")
	fs.StringVar(&cli.input, "input", "", "Raw frame file, - for stdin, empty for a test pattern")
	fs.BoolVar(&cli.loop, "loop", false, "Loop the input file at EOF")
	fs.StringVar(&cli.controlAddr, "control", "", "Control server listen address (empty disables it)")
	fs.StringVar(&cli.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&cli.logFormat, "log-format", "text", "Log format (text, json)")
	fs.BoolVar(&cli.help, "help", false, "Show help message")

	fs.IntVar(&cli.width, "width", 0, "Frame width")
	fs.IntVar(&cli.height, "height", 0, "Frame height")
	fs.IntVar(&cli.frameRate, "fps", 0, "Capture frame rate")
	fs.StringVar(&cli.sourceFormat, "source-format", "", "Source pixel format (gray8, bgr24, rgb24, rgba, i420)")
	fs.IntVar(&cli.bFrames, "bframes", 0, "B-frame count")
	fs.IntVar(&cli.qp, "qp", config.NoQP, "Constant quantizer, -1 to disable")
	fs.StringVar(&cli.preset, "preset", "", "x264 preset (empty for the low-latency defaults)")
	fs.StringVar(&cli.tune, "tune", "", "x264 tune, used with -preset")
	fs.StringVar(&cli.profile, "profile", "", "H.264 profile, used with -preset")
	fs.IntVar(&cli.frameMultiplier, "multiplier", 0, "Frame multiplication factor")
	fs.IntVar(&cli.bitRate, "bitrate", 0, "Target bit rate in bits per second (0 for the encoder default)")
	fs.StringVar(&cli.destAddress, "dest", "", "Destination host")
	fs.IntVar(&cli.destPort, "port", 0, "Destination UDP port")
	fs.StringVar(&cli.bindAddress, "bind", "", "Local UDP bind address")
	fs.StringVar(&cli.dumpPath, "dump", "", "Also write the raw H.264 bitstream to this file")
	fs.BoolVar(&cli.fatalFrameErrors, "fatal-frame-errors", false, "Stop the stream on the first frame error")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return cli, fs, nil
}

// buildConfig layers defaults, the config file, the environment and the
// flags that were set, in that order.
func buildConfig(cli *CLIConfig, fs *flag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if cli.configPath != "" {
		loaded, err := config.Load(cli.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	config.ApplyEnvironment(&cfg)

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "width":
			cfg.Width = cli.width
		case "height":
			cfg.Height = cli.height
		case "fps":
			cfg.FrameRate = cli.frameRate
		case "source-format":
			format, err := pixfmt.Parse(cli.sourceFormat)
			if err != nil {
				flagErr = fmt.Errorf("-source-format: %w", err)
				return
			}
			cfg.SourceFormat = format
		case "bframes":
			cfg.BFrames = cli.bFrames
		case "qp":
			cfg.QP = cli.qp
		case "preset":
			cfg.Preset = cli.preset
		case "tune":
			cfg.Tune = cli.tune
		case "profile":
			cfg.Profile = cli.profile
		case "multiplier":
			cfg.FrameMultiplier = cli.frameMultiplier
		case "bitrate":
			cfg.BitRate = cli.bitRate
		case "dest":
			cfg.DestAddress = cli.destAddress
		case "port":
			cfg.DestPort = cli.destPort
		case "bind":
			cfg.BindAddress = cli.bindAddress
		case "dump":
			cfg.DumpPath = cli.dumpPath
		case "fatal-frame-errors":
			cfg.FatalFrameErrors = cli.fatalFrameErrors
		}
	})
	if flagErr != nil {
		return cfg, flagErr
	}

	if err := config.Validate(cfg); err != nil {
		return cfg, err
	}
	if err := config.ValidateDestination(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// setupLogging configures the global logrus logger.
func setupLogging(level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// openSource picks the frame source named by the -input flag.
func openSource(cli *CLIConfig, cfg config.Config) (source.Source, error) {
	if cli.input == "" {
		return source.NewPattern(cfg.SourceFormat, cfg.Width, cfg.Height)
	}
	return source.OpenRawFile(cli.input, cfg.FrameSize(), cli.loop)
}

func printUsage(fs *flag.FlagSet) {
	fmt.Println("framecast - raw frames to H.264 over UDP")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s [options]\n", os.Args[0])
	fmt.Println()
	fmt.Println("Options:")
	fs.SetOutput(os.Stdout)
	fs.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  # Stream a test pattern to 10.0.0.2:5000\n")
	fmt.Printf("  %s -dest 10.0.0.2 -port 5000\n", os.Args[0])
	fmt.Println()
	fmt.Printf("  # Stream 640x480 BGR frames piped from another process\n")
	fmt.Printf("  capture | %s -input - -width 640 -height 480 -source-format bgr24\n", os.Args[0])
}

// setupSignalHandling cancels ctx on SIGINT or SIGTERM.
func setupSignalHandling(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logrus.WithField("signal", sig.String()).Info("Shutting down")
		cancel()
	}()
}

func main() {
	cli, fs, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "framecast: %v\nUse -help for usage information.\n", err)
		os.Exit(2)
	}
	if cli.help {
		printUsage(fs)
		os.Exit(0)
	}

	if err := setupLogging(cli.logLevel, cli.logFormat); err != nil {
		fmt.Fprintf(os.Stderr, "framecast: %v\n", err)
		os.Exit(2)
	}

	cfg, err := buildConfig(cli, fs)
	if err != nil {
		logrus.WithError(err).Fatal("Configuration error")
	}

	if cli.writeConfig != "" {
		if err := config.Save(cli.writeConfig, cfg); err != nil {
			logrus.WithError(err).Fatal("Cannot write configuration")
		}
		logrus.WithField("path", cli.writeConfig).Info("Configuration written")
		return
	}

	if err := run(cli, cfg); err != nil {
		if codec.IsFatal(err) {
			logrus.WithError(err).Fatal("Unrecoverable encoder error")
		}
		logrus.WithError(err).Error("Stream failed")
		os.Exit(1)
	}
}

func run(cli *CLIConfig, cfg config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	src, err := openSource(cli, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	p := framecast.New(cfg)
	if _, err := p.Start(); err != nil {
		return err
	}
	defer p.Stop()

	if cli.controlAddr != "" {
		srv := control.NewServer(p)
		go func() {
			if err := srv.ListenAndServe(cli.controlAddr); err != nil {
				logrus.WithError(err).Error("Control server failed")
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	err = p.Run(ctx, src)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	st := p.Stats()
	logrus.WithFields(logrus.Fields{
		"function":  "run",
		"submitted": st.Submitted,
		"dropped":   st.Dropped,
		"frames":    st.Frames,
		"datagrams": st.Transport.Datagrams,
		"bytes":     st.Transport.Bytes,
	}).Info("Stream finished")

	return err
}
