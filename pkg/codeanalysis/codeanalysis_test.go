package codeanalysis

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/vulnpilot/pkg/api"
	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
	"github.com/odvcencio/vulnpilot/pkg/telemetry"
)

type fakeAPI struct {
	mu       sync.Mutex
	scanned  []api.AnalyzeRequest
	failFile string
	failErr  error
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
	svc      *Service
	loading  bool
}

func (f *fakeAPI) AnalyzeCode(_ context.Context, req api.AnalyzeRequest) (api.Analysis, error) {
	if f.svc != nil {
		f.loading = f.svc.Loading()
	}
	if f.failErr != nil {
		return api.Analysis{}, f.failErr
	}
	return api.Analysis{Analysis: "ok", SecurityScore: 80, VulnerabilityCount: 1, Vulnerabilities: []string{"sqli"}}, nil
}

func (f *fakeAPI) QuickScan(ctx context.Context, req api.AnalyzeRequest) (api.ScanResult, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.scanned = append(f.scanned, req)
	f.mu.Unlock()
	if f.failFile != "" && req.Filename == f.failFile {
		return api.ScanResult{}, f.failErr
	}
	return api.ScanResult{ScanType: "quick", SecurityScore: 90, VulnerabilityCount: 0}, nil
}

func (f *fakeAPI) CompareCode(_ context.Context, req api.CompareRequest) (api.Comparison, error) {
	if f.failErr != nil {
		return api.Comparison{}, f.failErr
	}
	return api.Comparison{Similarity: 0.5, SimilarityPercent: 50}, nil
}

func writeFiles(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("print('"+name+"')\n"), 0o600))
		paths = append(paths, p)
	}
	return paths
}

func TestAnalyzeCodeStateAndTelemetry(t *testing.T) {
	hub := telemetry.NewHub("run")
	events, cancel := hub.Subscribe()
	defer cancel()

	fake := &fakeAPI{}
	svc := New(fake, nil, hub)
	fake.svc = svc

	res, err := svc.AnalyzeCode(context.Background(), api.AnalyzeRequest{Code: "x", Language: "python", Filename: "a.py"})
	require.NoError(t, err)
	assert.True(t, fake.loading)
	assert.False(t, svc.Loading())
	assert.Equal(t, 80, res.SecurityScore)

	select {
	case ev := <-events:
		assert.Equal(t, telemetry.EventAnalysisCompleted, ev.Type)
		assert.Equal(t, "a.py", ev.Data["filename"])
	case <-time.After(time.Second):
		t.Fatal("no analysis event")
	}
}

func TestFailuresSetError(t *testing.T) {
	fake := &fakeAPI{failErr: &api.StatusError{StatusCode: http.StatusBadRequest, ErrorField: "Code is required"}}
	svc := New(fake, nil, nil)

	_, err := svc.CompareCode(context.Background(), api.CompareRequest{})
	require.Error(t, err)
	msg, ok := svc.Err()
	assert.True(t, ok)
	assert.Equal(t, "Code is required", msg)

	svc.ClearError()
	_, ok = svc.Err()
	assert.False(t, ok)
}

func TestQuickScan(t *testing.T) {
	svc := New(&fakeAPI{}, nil, nil)
	res, err := svc.QuickScan(context.Background(), api.AnalyzeRequest{Code: "x", Language: "go"})
	require.NoError(t, err)
	assert.Equal(t, "quick", res.ScanType)
}

func TestScanFilesKeepsOrderAndBoundsConcurrency(t *testing.T) {
	paths := writeFiles(t, "a.py", "b.py", "c.py", "d.py", "e.py")
	fake := &fakeAPI{delay: 20 * time.Millisecond}
	svc := New(fake, nil, nil)

	results, err := svc.ScanFiles(context.Background(), paths, 2)
	require.NoError(t, err)
	require.Len(t, results, len(paths))
	for i, r := range results {
		assert.Equal(t, paths[i], r.Path)
		assert.Equal(t, "python", r.Language)
		assert.NoError(t, r.Err)
	}
	assert.LessOrEqual(t, fake.maxSeen.Load(), int32(2))
	assert.Len(t, fake.scanned, len(paths))
	assert.False(t, svc.Loading())
}

func TestScanFilesRecordsPerFileFailures(t *testing.T) {
	paths := writeFiles(t, "ok.py", "bad.py")
	paths = append(paths, filepath.Join(t.TempDir(), "missing.py"))
	fake := &fakeAPI{failFile: "bad.py", failErr: &api.StatusError{StatusCode: 500, ErrorField: "scanner down"}}
	svc := New(fake, nil, nil)

	results, err := svc.ScanFiles(context.Background(), paths, 0)
	require.Error(t, err)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.True(t, verrors.IsCode(results[2].Err, verrors.ErrCodeInvalidInput))
	msg, _ := svc.Err()
	assert.Equal(t, "scanner down", msg)
}

func TestScanFilesEmpty(t *testing.T) {
	results, err := New(&fakeAPI{}, nil, nil).ScanFiles(context.Background(), nil, 1)
	assert.NoError(t, err)
	assert.Nil(t, results)
}

func TestScanFilesStopsOnUnauthorized(t *testing.T) {
	paths := writeFiles(t, "a.py", "b.py", "c.py")
	fake := &fakeAPI{failFile: "a.py", failErr: &api.StatusError{StatusCode: http.StatusUnauthorized}}
	svc := New(fake, nil, nil)

	_, err := svc.ScanFiles(context.Background(), paths, 1)
	assert.True(t, api.IsUnauthorized(err))
	assert.Len(t, fake.scanned, 1, "remaining files are skipped")
}

func TestReadSource(t *testing.T) {
	paths := writeFiles(t, "main.go")
	req, err := ReadSource(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "go", req.Language)
	assert.Equal(t, "main.go", req.Filename)

	_, err = ReadSource(filepath.Dir(paths[0]))
	assert.Error(t, err)

	bin := filepath.Join(t.TempDir(), "blob.bin")
	require.NoError(t, os.WriteFile(bin, []byte{0xff, 0xfe, 0x00}, 0o600))
	_, err = ReadSource(bin)
	assert.Error(t, err)
}

func TestWatchRescansOnWrite(t *testing.T) {
	paths := writeFiles(t, "app.py")
	svc := New(&fakeAPI{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan FileScan, 4)
	done := make(chan error, 1)
	go func() {
		done <- svc.Watch(ctx, paths[0], func(fs FileScan) {
			select {
			case got <- fs:
			default:
			}
		})
	}()

	// give the watcher time to register before writing
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(400 * time.Millisecond)
	defer tick.Stop()
	for {
		require.NoError(t, os.WriteFile(paths[0], []byte("print(1)\n"), 0o600))
		select {
		case fs := <-got:
			assert.Equal(t, paths[0], fs.Path)
			assert.NoError(t, fs.Err)
			cancel()
			assert.NoError(t, <-done)
			return
		case <-tick.C:
		case <-deadline:
			t.Fatal("no rescan after write")
		}
	}
}

func TestWatchMissingTarget(t *testing.T) {
	svc := New(&fakeAPI{}, nil, nil)
	err := svc.Watch(context.Background(), filepath.Join(t.TempDir(), "nope"), func(FileScan) {})
	assert.Error(t, err)
}

func TestDetectLanguage(t *testing.T) {
	tests := map[string]string{
		"main.go":       "go",
		"app.PY":        "python",
		"web/index.tsx": "typescript",
		"lib.rs":        "rust",
		"notes":         LanguageText,
	}
	for file, want := range tests {
		assert.Equal(t, want, DetectLanguage(file), file)
	}
}

func TestUnifiedDiff(t *testing.T) {
	out, err := UnifiedDiff("a.py", "x = 1\ny = 2\n", "b.py", "x = 1\ny = 3\n")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "--- a.py\n+++ b.py\n"))
	assert.Contains(t, out, "-y = 2")
	assert.Contains(t, out, "+y = 3")

	same, err := UnifiedDiff("a", "x\n", "b", "x\n")
	require.NoError(t, err)
	assert.Empty(t, same)
}
