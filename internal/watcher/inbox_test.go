package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) handle(_ context.Context, path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func (r *recorder) count(suffix string) int {
	n := 0
	for _, p := range r.snapshot() {
		if strings.HasSuffix(p, suffix) {
			n++
		}
	}
	return n
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func startInbox(t *testing.T, roots []string, rec *recorder) *Inbox {
	t.Helper()
	in := NewInbox(roots, []string{".json", ".jsonl"}, true, rec.handle, WithSettleDelay(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := in.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(in.Stop)
	return in
}

func TestInbox_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	in := startInbox(t, nil, rec)

	if err := in.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	if err := in.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	dirs := in.Directories()
	if len(dirs) != 1 || filepath.Clean(dirs[0]) != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}

	if err := in.RemoveDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(in.Directories()) != 0 {
		t.Errorf("after remove: %v", in.Directories())
	}
}

func TestInbox_ProcessesDroppedDumpOnce(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startInbox(t, []string{dir}, rec)

	path := filepath.Join(dir, "report.jsonl")
	if err := writeFile(path, `{"results":[]}`); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "notes.txt"), "skip"); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, func() bool { return rec.count("report.jsonl") == 1 }) {
		t.Fatalf("expected report.jsonl to be processed, got %v", rec.snapshot())
	}
	// Settle window passes without further events; nothing is reprocessed.
	time.Sleep(200 * time.Millisecond)
	if n := rec.count("report.jsonl"); n != 1 {
		t.Errorf("expected one handler call, got %d", n)
	}
	if rec.count("notes.txt") != 0 {
		t.Error("notes.txt should be ignored")
	}
}

func TestInbox_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startInbox(t, []string{dir}, rec)

	nested := filepath.Join(dir, "batch", "day1")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "lab.json"), `{"results":[]}`); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, func() bool { return rec.count("lab.json") >= 1 }) {
		t.Errorf("expected lab.json to be processed, got %v", rec.snapshot())
	}
}

func TestInbox_SyncExisting(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "a.json"), "{}"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "ignore.xyz"), "x"); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	in := startInbox(t, []string{dir}, rec)
	in.SyncExisting()
	in.SyncExisting()

	got := rec.snapshot()
	if len(got) != 1 || !strings.HasSuffix(got[0], "a.json") {
		t.Errorf("expected a.json processed once, got %v", got)
	}
}

func TestInbox_Start_createsMissingRootDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "inbox", "lab")
	startInbox(t, []string{root}, &recorder{})

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.json", []string{".json"}, true},
		{"/a/b.JSONL", []string{".jsonl"}, true},
		{"/a/b.txt", []string{".json"}, false},
		{"/a/b", nil, true},
		{"/a/b.jsonl", []string{"json"}, false},
	}
	for _, tt := range tests {
		if got := matchExtension(tt.path, tt.extensions); got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.json", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
