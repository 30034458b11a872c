// Package main is the entry point for jdwpinspect, a diagnostic client that
// attaches to a JVM over JDWP and reports what it finds.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/tliron/commonlog"

	"github.com/dshills/jdwp/internal/config"
	"github.com/dshills/jdwp/internal/jdi"
	"github.com/dshills/jdwp/internal/jdwp"
	"github.com/dshills/jdwp/internal/logging"
	"github.com/dshills/jdwp/internal/trace"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// options are the parsed command line flags.
type options struct {
	configPath string
	address    string
	logLevel   string
	tracePath  string
	dumpPath   string
	watch      bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	if opts.dumpPath != "" {
		if err := dumpFile(os.Stdout, opts.dumpPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	modes, err := logging.Configure(cfg.Logging())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := inspect(ctx, os.Stdout, cfg, modes, opts.watch); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file (.toml, .yaml)")
	flag.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.address, "addr", "", "Target address host:port")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, notice, warn, error)")
	flag.StringVar(&opts.tracePath, "trace", "", "Capture packets to this file")
	flag.StringVar(&opts.dumpPath, "dump", "", "Print a packet capture and exit")
	flag.BoolVar(&opts.watch, "watch", false, "Print class prepare events until the VM exits")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "jdwpinspect - inspect a running JVM over JDWP\n\n")
		fmt.Fprintf(os.Stderr, "Usage: jdwpinspect [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  jdwpinspect -addr localhost:5005            Print VM facts\n")
		fmt.Fprintf(os.Stderr, "  jdwpinspect -addr :5005 -watch              Follow class loading\n")
		fmt.Fprintf(os.Stderr, "  jdwpinspect -addr :5005 -trace s.jdwp       Capture the session\n")
		fmt.Fprintf(os.Stderr, "  jdwpinspect -dump s.jdwp                    Print a capture\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("jdwpinspect %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	return opts
}

// loadConfig layers the command line flags over the configuration sources.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(config.WithFile(opts.configPath))
	if err != nil {
		return nil, err
	}

	overrides := map[string]string{
		"target.address": opts.address,
		"logging.level":  opts.logLevel,
		"trace.file":     opts.tracePath,
	}
	for path, v := range overrides {
		if v == "" {
			continue
		}
		if err := cfg.Set(path, v); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// inspect attaches to the configured target, prints a summary, and
// optionally follows class prepare events.
func inspect(ctx context.Context, w io.Writer, cfg *config.Config, modes logging.Mode, watch bool) error {
	log := commonlog.GetLogger("jdwpinspect")
	target := cfg.Target()

	dialCtx := ctx
	if target.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, target.DialTimeout)
		defer cancel()
	}
	transport, err := jdwp.Dial(dialCtx, target.Address, target.HandshakeTimeout)
	if err != nil {
		return err
	}
	log.Infof("connected to %s", transport.RemoteAddr())

	vmCfg := modes.VMConfig(jdi.DefaultConfig())
	connOpts := modes.ConnOptions(jdwp.Options{})

	var rec *trace.Recorder
	if tc := cfg.Trace(); tc.File != "" {
		rec, err = trace.Create(tc.File, trace.Options{Compress: tc.Compress})
		if err != nil {
			transport.Close()
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				log.Errorf("%s", err)
			}
		}()
		connOpts.Tap = rec
		vmCfg.SessionID = rec.Session()
	}

	conn := jdwp.NewConn(transport, connOpts)
	defer conn.Close()

	vm, err := jdi.Attach(ctx, conn, vmCfg)
	if err != nil {
		return err
	}

	if err := printSummary(ctx, w, vm); err != nil {
		return err
	}
	if !watch {
		return vm.Dispose(ctx)
	}
	return watchClasses(ctx, w, vm, jdi.DispatcherConfig{
		ResumeWhenUnhandled: cfg.Events().ResumeWhenUnhandled,
	})
}
