// Command metagen extracts application metadata from archive packages and
// publishes it as structured documents, using a persistent cache to avoid
// reprocessing unchanged packages between runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"

	"github.com/appstream-tools/metagen/generator"
	"github.com/appstream-tools/metagen/telemetry"
)

const version = "0.3.0"

// Exit codes. Worker failures get their own status so callers can tell a
// torn-down run from an ordinary error.
const (
	exitOK     = 0
	exitError  = 1
	exitInit   = 2
	exitWorker = 5
)

var errInit = errors.New("initialization failed")

type cli struct {
	LogLevel      string `help:"Log level." default:"info" enum:"debug,info,warn,error"`
	LogFormat     string `help:"Log format." default:"text" enum:"text,json"`
	MetricsListen string `help:"Address to serve Prometheus metrics on while running." placeholder:"ADDR"`

	Process         processCmd         `cmd:"" help:"Process packages and extract metadata for a suite."`
	Cleanup         cleanupCmd         `cmd:"" help:"Remove unused data from the cache and expire media."`
	RemoveProcessed removeProcessedCmd `cmd:"" name:"remove-processed" help:"Remove information about processed packages of a suite, to reprocess them later."`
	Forget          forgetCmd          `cmd:"" help:"Forget a single package (or all versions of a name) and its cached data."`
	Info            infoCmd            `cmd:"" help:"Show what the cache knows about a package name."`
	Prepopulate     prepopulateCmd     `cmd:"" help:"Mark packages without interesting contents as ignored, based on the archive file lists."`

	Version kong.VersionFlag `help:"Print version and exit."`
}

func main() {
	var c cli
	parser := kong.Parse(&c,
		kong.Name("metagen"),
		kong.Description("Generate application metadata from archive packages."),
		kong.Vars{"version": version},
	)

	logger, err := newLogger(c.LogLevel, c.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitError)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "metagen",
		ServiceVersion: version,
		Listen:         c.MetricsListen,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitInit)
	}

	err = parser.Run(&runContext{ctx: ctx, logger: logger})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = shutdownMetrics(shutdownCtx)

	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, generator.ErrWorkerFailed):
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitWorker
	case errors.Is(err, errInit):
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitInit
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = tint.NewHandler(os.Stderr, &tint.Options{Level: lvl})
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	return slog.New(handler), nil
}
