package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/banshee-data/geometry.report/internal/api"
	"github.com/banshee-data/geometry.report/internal/config"
	"github.com/banshee-data/geometry.report/internal/db"
	"github.com/banshee-data/geometry.report/internal/fsutil"
	"github.com/banshee-data/geometry.report/internal/monitoring"
	"github.com/banshee-data/geometry.report/internal/pipeline"
	"github.com/banshee-data/geometry.report/internal/render"
	"github.com/banshee-data/geometry.report/internal/timeutil"
)

// Output formats.
const (
	formatPNG  = "png"
	formatHTML = "html"
	formatJSON = "json"
)

var errNoCharts = errors.New("no visible charts to render")

// options is the parsed command line.
type options struct {
	Args         []string
	Input        string
	Out          string
	Format       string
	Watch        bool
	Debounce     time.Duration
	Listen       string
	History      bool
	HistoryLimit int
	DBPath       string
	Remote       string

	Config *config.ReportConfig
	FS     fsutil.FileSystem
	Clock  timeutil.Clock
	Stdin  io.Reader
	Stdout io.Writer
}

func (o options) historyDB() string {
	if o.DBPath != "" {
		return o.DBPath
	}
	return o.Config.GetHistoryDB()
}

func (o options) format() (string, error) {
	f := o.Format
	if f == "" {
		f = o.Config.GetRenderer()
	}
	switch f {
	case formatPNG, formatHTML, formatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want png, html or json)", f)
}

func (o options) outPath(format string) string {
	if o.Out != "" {
		return o.Out
	}
	return fsutil.ReportName(o.Input, format)
}

func run(ctx context.Context, o options) error {
	if len(o.Args) > 0 {
		if o.Args[0] != "migrate" {
			return fmt.Errorf("unknown command %q", o.Args[0])
		}
		if o.historyDB() == "" {
			return errors.New("migrate needs -db or history_db in the config")
		}
		return db.RunMigrateCommand(o.Stdout, o.Args[1:], o.historyDB())
	}

	switch {
	case o.History:
		return printHistory(ctx, o)
	case o.Listen != "":
		return serve(ctx, o)
	case o.Input == "":
		return errors.New("-input is required unless -listen or -history is given")
	}

	rep, err := newReporter(o)
	if err != nil {
		return err
	}
	defer rep.Close()

	if o.Watch {
		return watchAndRender(ctx, o, rep)
	}
	return rep.render(ctx)
}

// reporter renders the input file either locally or on a remote server.
type reporter struct {
	o      options
	format string
	runner *pipeline.Runner
	client *api.Client
	store  *db.DB
}

func newReporter(o options) (*reporter, error) {
	f, err := o.format()
	if err != nil {
		return nil, err
	}
	rep := &reporter{o: o, format: f}

	if o.Remote != "" {
		rep.client = api.NewClient(o.Remote, nil)
		return rep, nil
	}

	cfg := *o.Config
	if f != formatJSON {
		// Image and page outputs pick the matching surface.
		renderer := config.RendererPNG
		if f == formatHTML {
			renderer = config.RendererHTML
		}
		cfg.Renderer = &renderer
	}
	rep.runner = pipeline.NewRunner(&cfg)
	rep.runner.Clock = o.Clock
	rep.runner.Source = filepath.Base(o.Input)

	if path := o.historyDB(); path != "" {
		if rep.store, err = db.NewDB(path); err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		rep.runner.History = rep.store
	}
	return rep, nil
}

func (r *reporter) Close() {
	if r.store != nil {
		r.store.Close()
	}
}

func (r *reporter) readInput() ([]byte, error) {
	if r.o.Input == "-" {
		return io.ReadAll(r.o.Stdin)
	}
	return r.o.FS.ReadFile(r.o.Input)
}

// render produces one output file from the current input.
func (r *reporter) render(ctx context.Context) error {
	body, err := r.readInput()
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	var data []byte
	if r.client != nil {
		data, err = r.renderRemote(ctx, body)
	} else {
		data, err = r.renderLocal(ctx, body)
	}
	if err != nil {
		return err
	}

	path := r.o.outPath(r.format)
	if err := fsutil.WriteOutput(r.o.FS, path, data); err != nil {
		return err
	}
	monitoring.Logf("wrote %s (%d bytes)", path, len(data))
	return nil
}

func (r *reporter) renderLocal(ctx context.Context, body []byte) ([]byte, error) {
	res, err := r.runner.RunReader(ctx, bytes.NewReader(body), nil)
	if err != nil {
		return nil, err
	}
	if r.format == formatJSON {
		return json.MarshalIndent(res, "", "  ")
	}
	return decodeSnapshot(res.DataURL)
}

func (r *reporter) renderRemote(ctx context.Context, body []byte) ([]byte, error) {
	switch r.format {
	case formatJSON:
		res, err := r.client.Charts(ctx, body)
		if err != nil {
			return nil, err
		}
		return json.MarshalIndent(res, "", "  ")
	case formatHTML:
		return r.client.HTML(ctx, body)
	default:
		res, err := r.client.Snapshot(ctx, body)
		if err != nil {
			return nil, err
		}
		return decodeSnapshot(res.DataURL)
	}
}

func decodeSnapshot(url string) ([]byte, error) {
	if url == "" {
		return nil, errNoCharts
	}
	_, data, err := render.DecodeDataURL(url)
	return data, err
}

// watchAndRender renders once, then again after every change to the input.
func watchAndRender(ctx context.Context, o options, rep *reporter) error {
	if o.Input == "-" {
		return errors.New("-watch needs a file input")
	}
	if err := rep.render(ctx); err != nil {
		monitoring.Logf("render failed: %v", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors often save by renaming over the file.
	if err := watcher.Add(filepath.Dir(o.Input)); err != nil {
		return err
	}
	monitoring.Logf("watching %s for changes", o.Input)

	return watchLoop(ctx, watcher.Events, watcher.Errors, o.Input, o.Clock, o.Debounce, func() {
		if err := rep.render(ctx); err != nil {
			monitoring.Logf("render failed: %v", err)
		}
	})
}

// watchLoop calls onChange once a burst of writes to target has been quiet
// for debounce. It returns when ctx is done or either channel closes.
func watchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error,
	target string, clock timeutil.Clock, debounce time.Duration, onChange func()) error {
	target = filepath.Clean(target)
	timer := clock.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			monitoring.Logf("watcher error: %v", err)

		case <-timer.C():
			onChange()
		}
	}
}

func printHistory(ctx context.Context, o options) error {
	var (
		runs []db.Run
		err  error
	)
	if o.Remote != "" {
		runs, err = api.NewClient(o.Remote, nil).Runs(ctx, o.HistoryLimit)
	} else {
		path := o.historyDB()
		if path == "" {
			return errors.New("-history needs -db or history_db in the config")
		}
		var store *db.DB
		if store, err = db.NewDB(path); err != nil {
			return err
		}
		defer store.Close()
		runs, err = store.ListRuns(ctx, o.HistoryLimit)
	}
	if err != nil {
		return err
	}
	return writeRuns(o.Stdout, runs)
}

func writeRuns(w io.Writer, runs []db.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tCREATED\tSOURCE\tRANGE\tCHARTS\tWORST\tDEFECTS\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g-%g\t%d\t%s\t%d\t%v\n",
			r.ID, r.CreatedAt.Format(time.RFC3339), r.Source, r.Start, r.End,
			r.Charts, r.Worst, r.Defects, r.Duration)
	}
	return tw.Flush()
}

func serve(ctx context.Context, o options) error {
	// A nil *db.DB must not reach the server as a non-nil History.
	var hist api.History
	if path := o.historyDB(); path != "" {
		store, err := db.NewDB(path)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer store.Close()
		hist = store
	}

	server := &http.Server{
		Addr:              o.Listen,
		Handler:           api.NewServer(o.Config, hist).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("listening on %s", o.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	monitoring.Logf("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	return nil
}
