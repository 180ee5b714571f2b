package staging

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStager(t *testing.T, maxSize int64) *Stager {
	t.Helper()
	return NewStager(Config{Dir: t.TempDir(), MaxFileSize: maxSize}, nil, nil)
}

func stagingFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading staging dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestStage_Success(t *testing.T) {
	body := strings.Repeat("x", 1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		if r.Method == http.MethodHead {
			return
		}
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	stager := newTestStager(t, 10*1024)
	run := NewRun(nil)

	asset, err := stager.Stage(context.Background(), run, "guild", "msg", srv.URL+"/file.jpg", ".jpg")
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if asset.Size != int64(len(body)) {
		t.Errorf("Size = %d, want %d", asset.Size, len(body))
	}
	if !strings.HasSuffix(asset.Path, ".jpg") {
		t.Errorf("Path = %q, want .jpg suffix", asset.Path)
	}
	if !strings.Contains(filepath.Base(asset.Path), "guild-msg-") {
		t.Errorf("Path = %q, want tenant/message token in name", asset.Path)
	}
	data, err := os.ReadFile(asset.Path)
	if err != nil || string(data) != body {
		t.Errorf("staged content mismatch: %v", err)
	}

	run.Cleanup()
	if _, err := os.Stat(asset.Path); !os.IsNotExist(err) {
		t.Error("cleanup should remove the staged file")
	}
}

func TestStage_ProbeOversize_NoFetch(t *testing.T) {
	var gets int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "15000000")
			return
		}
		gets++
	}))
	defer srv.Close()

	stager := newTestStager(t, DefaultMaxFileSize)
	run := NewRun(nil)
	defer run.Cleanup()

	_, err := stager.Stage(context.Background(), run, "g", "m", srv.URL+"/big.jpg", ".jpg")
	if err == nil {
		t.Fatal("expected oversize error")
	}
	if gets != 0 {
		t.Error("oversized probe must prevent the full fetch")
	}
	if files := stagingFiles(t, stager.Dir()); len(files) != 0 {
		t.Errorf("no file should be written, found %v", files)
	}
}

func TestStage_ActualOversize_Discarded(t *testing.T) {
	// HEAD lies small, body is oversized: verification must catch it.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "10")
			return
		}
		w.Write([]byte(strings.Repeat("y", 200)))
	}))
	defer srv.Close()

	stager := newTestStager(t, 100)
	run := NewRun(nil)

	_, err := stager.Stage(context.Background(), run, "g", "m", srv.URL+"/lie.png", ".png")
	if err == nil {
		t.Fatal("expected oversize error after verification")
	}

	run.Cleanup()
	if files := stagingFiles(t, stager.Dir()); len(files) != 0 {
		t.Errorf("partial file should be cleaned up, found %v", files)
	}
}

func TestStage_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	stager := newTestStager(t, DefaultMaxFileSize)
	run := NewRun(nil)
	defer run.Cleanup()

	if _, err := stager.Stage(context.Background(), run, "g", "m", srv.URL+"/gone.jpg", ".jpg"); err == nil {
		t.Fatal("expected error for 404 response")
	}
	if files := stagingFiles(t, stager.Dir()); len(files) != 0 {
		t.Errorf("no file should remain, found %v", files)
	}
}

func TestStage_ProbeFailure_Continues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			http.Error(w, "no HEAD here", http.StatusMethodNotAllowed)
			return
		}
		w.Write([]byte("content"))
	}))
	defer srv.Close()

	stager := newTestStager(t, DefaultMaxFileSize)
	run := NewRun(nil)
	defer run.Cleanup()

	asset, err := stager.Stage(context.Background(), run, "g", "m", srv.URL+"/f.gif", ".gif")
	if err != nil {
		t.Fatalf("probe failure should not abort staging: %v", err)
	}
	if asset.Size != int64(len("content")) {
		t.Errorf("Size = %d", asset.Size)
	}
}

func TestRun_CleanupIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.tmp")
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	run := NewRun(nil)
	run.Track(path)
	run.Track(filepath.Join(dir, "already-gone.tmp"))

	run.Cleanup()
	run.Cleanup() // second call must be a no-op

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("tracked file should be removed")
	}
}

func TestJanitor_Sweep(t *testing.T) {
	stager := newTestStager(t, DefaultMaxFileSize)
	if err := stager.EnsureDir(); err != nil {
		t.Fatal(err)
	}

	stale := filepath.Join(stager.Dir(), "old.jpg")
	fresh := filepath.Join(stager.Dir(), "new.jpg")
	for _, p := range []string{stale, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	j := NewJanitor(JanitorConfig{Enabled: true, MaxAge: "1h"}, stager, nil)
	if n := j.Sweep(); n != 1 {
		t.Errorf("Sweep removed %d files, want 1", n)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale file should be removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh file must survive the sweep")
	}
}
