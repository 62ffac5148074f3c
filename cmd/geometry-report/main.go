package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/geometry.report/internal/config"
	"github.com/banshee-data/geometry.report/internal/fsutil"
	"github.com/banshee-data/geometry.report/internal/monitoring"
	"github.com/banshee-data/geometry.report/internal/timeutil"
	"github.com/banshee-data/geometry.report/internal/version"
)

var (
	input        = flag.String("input", "", "Payload JSON file to render (- reads stdin)")
	configPath   = flag.String("config", "", "Report config file (.json, .yaml or .yml)")
	out          = flag.String("out", "", "Output file (default <input base>-report.<format>, report.<format> for stdin)")
	format       = flag.String("format", "", "Output format: png, html or json (default: config renderer)")
	watchInput   = flag.Bool("watch", false, "Re-render whenever the input file changes")
	debounce     = flag.Duration("debounce", 300*time.Millisecond, "Quiet period after a change before re-rendering")
	listen       = flag.String("listen", "", "Serve the HTTP API on this address instead of rendering")
	debug        = flag.Bool("debug", false, "Development logging")
	history      = flag.Bool("history", false, "Print recent runs from the history database and exit")
	historyLimit = flag.Int("history-limit", 20, "Number of runs printed by -history")
	dbPath       = flag.String("db", "", "Run history database (overrides config history_db)")
	remote       = flag.String("remote", "", "Render on a remote report server at this base URL")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	logger, err := monitoring.NewZap(*debug)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()
	monitoring.UseZap(logger)

	cfg := config.EmptyReportConfig()
	if *configPath != "" {
		if cfg, err = config.Load(*configPath); err != nil {
			logger.Sugar().Fatalf("failed to load config: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	o := options{
		Args:         flag.Args(),
		Input:        *input,
		Out:          *out,
		Format:       *format,
		Watch:        *watchInput,
		Debounce:     *debounce,
		Listen:       *listen,
		History:      *history,
		HistoryLimit: *historyLimit,
		DBPath:       *dbPath,
		Remote:       *remote,
		Config:       cfg,
		FS:           fsutil.OSFileSystem{},
		Clock:        timeutil.RealClock{},
		Stdin:        os.Stdin,
		Stdout:       os.Stdout,
	}
	if err := run(ctx, o); err != nil {
		logger.Sugar().Errorf("%v", err)
		logger.Sync()
		os.Exit(1)
	}
}

func usage() {
	w := flag.CommandLine.Output()
	fmt.Fprintf(w, `Usage: geometry-report [flags]
       geometry-report -listen :8080 [flags]
       geometry-report -db history.db migrate <up|down|status|force N>

Renders track geometry charts from a measurement payload.

Flags:
`)
	flag.PrintDefaults()
}
