package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"image/png"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/geometry.report/internal/api"
	"github.com/banshee-data/geometry.report/internal/config"
	"github.com/banshee-data/geometry.report/internal/fsutil"
	"github.com/banshee-data/geometry.report/internal/monitoring"
	"github.com/banshee-data/geometry.report/internal/pipeline"
	"github.com/banshee-data/geometry.report/internal/testutil"
	"github.com/banshee-data/geometry.report/internal/timeutil"
)

const fixtureName = "fixture.json"

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, "", *input)
	assert.Equal(t, "", *format)
	assert.Equal(t, 300*time.Millisecond, *debounce)
	assert.Equal(t, 20, *historyLimit)
	assert.False(t, *watchInput)
	assert.False(t, *history)
}

func TestOutFlagDescribesDefaultName(t *testing.T) {
	usage := flag.Lookup("out").Usage
	assert.Contains(t, usage, strings.TrimPrefix(fsutil.ReportName("x.json", "<format>"), "x"))
	assert.Contains(t, usage, fsutil.ReportName("-", "<format>"))
}

func testOptions(t *testing.T) (options, *fsutil.MemoryFileSystem, *bytes.Buffer) {
	t.Helper()
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile(fixtureName, testutil.SampleJSON(t), 0o644))

	stdout := &bytes.Buffer{}
	return options{
		Input:        fixtureName,
		Debounce:     300 * time.Millisecond,
		HistoryLimit: 20,
		Config:       config.EmptyReportConfig(),
		FS:           fsys,
		Clock:        timeutil.NewMockClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)),
		Stdin:        strings.NewReader(""),
		Stdout:       stdout,
	}, fsys, stdout
}

func TestRun_RenderPNG(t *testing.T) {
	o, fsys, _ := testOptions(t)
	o.Out = "out/report.png"

	require.NoError(t, run(context.Background(), o))

	data, err := fsys.ReadFile("out/report.png")
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), int(testutil.SamplePageWidth)-1)
}

func TestRun_RenderHTML(t *testing.T) {
	o, fsys, _ := testOptions(t)
	o.Format = formatHTML

	require.NoError(t, run(context.Background(), o))

	data, err := fsys.ReadFile("fixture-report.html")
	require.NoError(t, err)
	assert.Contains(t, string(data), pipeline.HTMLTitle)
}

func TestRun_RenderJSON(t *testing.T) {
	o, fsys, _ := testOptions(t)
	o.Format = formatJSON

	require.NoError(t, run(context.Background(), o))

	data, err := fsys.ReadFile("fixture-report.json")
	require.NoError(t, err)
	var res pipeline.Result
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Len(t, res.Charts, testutil.SampleVisibleCharts)
	assert.NotEmpty(t, res.RunID)
}

func TestRun_Stdin(t *testing.T) {
	o, fsys, _ := testOptions(t)
	o.Input = "-"
	o.Format = formatJSON
	o.Stdin = bytes.NewReader(testutil.SampleJSON(t))

	require.NoError(t, run(context.Background(), o))
	assert.True(t, fsys.Exists("report.json"))
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*options)
		want   string
	}{
		{"missing input", func(o *options) { o.Input = "" }, "-input is required"},
		{"unknown format", func(o *options) { o.Format = "svg" }, `unknown format "svg"`},
		{"unreadable input", func(o *options) { o.Input = "missing.json" }, "read input"},
		{"unknown command", func(o *options) { o.Args = []string{"serve"} }, `unknown command "serve"`},
		{"migrate without db", func(o *options) { o.Args = []string{"migrate", "up"} }, "migrate needs -db"},
		{"history without db", func(o *options) { o.History = true }, "-history needs -db"},
		{"watch stdin", func(o *options) { o.Input = "-"; o.Watch = true }, "-watch needs a file input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, _, _ := testOptions(t)
			tt.modify(&o)
			err := run(context.Background(), o)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_NoVisibleCharts(t *testing.T) {
	o, fsys, _ := testOptions(t)
	body := []byte(`{"DefectScale":5,"ChannelVisibility":{"TwistBase1":false,"Cant":false,"GaugeDeviation":false,"Localizations":false}}`)
	require.NoError(t, fsys.WriteFile(fixtureName, body, 0o644))

	err := run(context.Background(), o)
	assert.ErrorIs(t, err, errNoCharts)
	assert.False(t, fsys.Exists("fixture-report.png"))
}

func TestRun_MigrateAndHistory(t *testing.T) {
	o, _, stdout := testOptions(t)
	o.DBPath = filepath.Join(t.TempDir(), "history.db")

	o.Args = []string{"migrate", "up"}
	require.NoError(t, run(context.Background(), o))
	assert.Contains(t, stdout.String(), "Current version: 2 (dirty: false)")

	o.Args = nil
	o.Format = formatJSON
	require.NoError(t, run(context.Background(), o))
	require.NoError(t, run(context.Background(), o))

	stdout.Reset()
	o.History = true
	o.HistoryLimit = 1
	require.NoError(t, run(context.Background(), o))

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "RUN"))
	assert.Contains(t, lines[1], fixtureName)
	assert.Contains(t, lines[1], "2026-03-01T08:00:00Z")
}

func TestRun_Remote(t *testing.T) {
	o, fsys, _ := testOptions(t)
	ts := httptest.NewServer(api.NewServer(nil, nil).Handler())
	defer ts.Close()
	o.Remote = ts.URL

	o.Format = formatJSON
	require.NoError(t, run(context.Background(), o))
	var res pipeline.Result
	data, err := fsys.ReadFile("fixture-report.json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Len(t, res.Charts, testutil.SampleVisibleCharts)

	o.Format = formatPNG
	require.NoError(t, run(context.Background(), o))
	data, err = fsys.ReadFile("fixture-report.png")
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	assert.NoError(t, err)

	o.Format = formatHTML
	require.NoError(t, run(context.Background(), o))
	data, err = fsys.ReadFile("fixture-report.html")
	require.NoError(t, err)
	assert.Contains(t, string(data), "echarts")
}

type watchHarness struct {
	events chan fsnotify.Event
	errs   chan error
	clock  *timeutil.MockClock
	calls  atomic.Int32
	cancel context.CancelFunc
	done   chan error
}

func startWatch(t *testing.T, target string) *watchHarness {
	t.Helper()
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	ctx, cancel := context.WithCancel(context.Background())
	h := &watchHarness{
		events: make(chan fsnotify.Event),
		errs:   make(chan error),
		clock:  timeutil.NewMockClock(time.Unix(0, 0)),
		cancel: cancel,
		done:   make(chan error, 1),
	}
	go func() {
		h.done <- watchLoop(ctx, h.events, h.errs, target, h.clock, time.Second, func() { h.calls.Add(1) })
	}()
	t.Cleanup(cancel)
	return h
}

// sync blocks until the loop has handled every event sent before it.
func (h *watchHarness) sync() {
	h.events <- fsnotify.Event{Name: "unrelated", Op: fsnotify.Write}
}

func TestWatchLoop_DebouncesBurst(t *testing.T) {
	h := startWatch(t, "data/run.json")

	for i := 0; i < 3; i++ {
		if i > 0 {
			h.clock.Advance(500 * time.Millisecond)
		}
		h.events <- fsnotify.Event{Name: "data/run.json", Op: fsnotify.Write}
		h.sync()
	}

	h.clock.Advance(999 * time.Millisecond)
	h.sync()
	assert.Equal(t, int32(0), h.calls.Load())

	h.clock.Advance(time.Millisecond)
	assert.Eventually(t, func() bool { return h.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	h.clock.Advance(10 * time.Second)
	h.sync()
	assert.Equal(t, int32(1), h.calls.Load())
}

func TestWatchLoop_IgnoresOtherEvents(t *testing.T) {
	h := startWatch(t, "./data/run.json")

	h.events <- fsnotify.Event{Name: "data/other.json", Op: fsnotify.Write}
	h.events <- fsnotify.Event{Name: "data/run.json", Op: fsnotify.Chmod}
	h.events <- fsnotify.Event{Name: "data/run.json", Op: fsnotify.Remove}
	h.sync()
	h.clock.Advance(5 * time.Second)
	h.sync()
	assert.Equal(t, int32(0), h.calls.Load())

	// Atomic saves show up as a create of the target.
	h.events <- fsnotify.Event{Name: "data/run.json", Op: fsnotify.Create}
	h.sync()
	h.clock.Advance(time.Second)
	assert.Eventually(t, func() bool { return h.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWatchLoop_Stops(t *testing.T) {
	h := startWatch(t, "run.json")
	h.errs <- assert.AnError
	h.cancel()
	select {
	case err := <-h.done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch loop did not stop on cancel")
	}

	h = startWatch(t, "run.json")
	close(h.events)
	select {
	case err := <-h.done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch loop did not stop when events closed")
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	o, _, _ := testOptions(t)
	o.Listen = "127.0.0.1:0"
	o.DBPath = filepath.Join(t.TempDir(), "history.db")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, o) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServe_ListenError(t *testing.T) {
	o, _, _ := testOptions(t)
	o.Listen = "not-an-address"
	assert.Error(t, run(context.Background(), o))
}
