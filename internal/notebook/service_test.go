package notebook

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/starford/daylog/internal/apperr"
	"github.com/starford/daylog/internal/index"
	"github.com/starford/daylog/internal/notes"
	"github.com/starford/daylog/internal/sse"
	"github.com/starford/daylog/internal/vcs"
)

var today = time.Date(2024, time.January, 10, 9, 0, 0, 0, time.Local)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Publish(e sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e.Type)
}

func (r *recorder) PublishNoteEvent(kind, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "note."+kind+":"+path)
}

func (r *recorder) PublishStats(any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sse.StatsUpdated)
}

func (r *recorder) has(ev string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == ev {
			return true
		}
	}
	return false
}

func quiet() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newService(t *testing.T, dir, remote string, pub Publisher) *Service {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	cfg := vcs.RepositoryConfig{
		Name: "Tester", Email: "tester@example.com",
		LocalPath: dir, RemoteURL: remote, Transport: vcs.TransportExec,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	store, err := vcs.Open(cfg, vcs.WithLogger(quiet()))
	if err != nil {
		t.Fatal(err)
	}
	db, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	svc := New(store,
		WithIndex(db),
		WithPublisher(pub),
		WithLogger(quiet()),
		WithClock(func() time.Time { return today }),
	)
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	return svc
}

func date(t *testing.T, s string) notes.Date {
	t.Helper()
	d, err := notes.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestReadNote_MissingDayHasTemplate(t *testing.T) {
	svc := newService(t, t.TempDir(), "", nil)
	n, err := svc.ReadNote(context.Background(), date(t, "2024-01-10"))
	if err != nil {
		t.Fatal(err)
	}
	if n.Exists || n.Content != "" || n.Path != "2024/01/10.md" {
		t.Errorf("detail = %+v", n)
	}
	if !strings.Contains(n.Template, "## 待办事项") {
		t.Errorf("template = %q", n.Template)
	}
}

func TestWriteNote_CommitsIndexesAndUpdatesStats(t *testing.T) {
	rec := &recorder{}
	svc := newService(t, t.TempDir(), "", rec)
	ctx := context.Background()
	d := date(t, "2024-01-09")

	n, err := svc.WriteNote(ctx, d, []byte("## 待办事项\n- [x] a\n- [ ] uniquetask\n"), "")
	if err != nil {
		t.Fatal(err)
	}
	if !n.Exists || n.Stats.Total != 2 {
		t.Errorf("detail = %+v", n)
	}

	st, err := svc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := st.Daily["2024-01-09"]; got.Total != 2 || got.Completed != 1 {
		t.Errorf("daily = %+v", st.Daily)
	}

	hits, err := svc.Search(ctx, "uniquetask", 10)
	if err != nil || len(hits) != 1 {
		t.Errorf("search = %v, %v", hits, err)
	}

	history, err := svc.History(ctx, "2024/01/09.md", 0)
	if err != nil || len(history) != 1 {
		t.Errorf("history = %v, %v", history, err)
	}
	if !rec.has("note.updated:2024/01/09.md") || !rec.has(sse.StatsUpdated) {
		t.Errorf("events = %v", rec.events)
	}
}

func TestWriteNote_IfMatch(t *testing.T) {
	svc := newService(t, t.TempDir(), "", nil)
	ctx := context.Background()
	d := date(t, "2024-01-09")

	first, err := svc.WriteNote(ctx, d, []byte("v1\n"), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.WriteNote(ctx, d, []byte("v2\n"), first.Checksum); err != nil {
		t.Fatalf("matching checksum: %v", err)
	}
	if _, err := svc.WriteNote(ctx, d, []byte("v3\n"), first.Checksum); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale checksum: %v", err)
	}
}

func TestWriteFile_ConcurrentIfMatch(t *testing.T) {
	svc := newService(t, t.TempDir(), "", nil)
	ctx := context.Background()

	base, err := svc.WriteFile(ctx, "shared.md", []byte("base\n"), "")
	if err != nil {
		t.Fatal(err)
	}

	const writers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			content := []byte(strings.Repeat("x", i+1) + "\n")
			_, err := svc.WriteFile(ctx, "shared.md", content, base.Checksum)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperr.ErrConflict):
				conflicts++
			default:
				t.Errorf("writer %d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || conflicts != writers-1 {
		t.Errorf("ok = %d, conflicts = %d; want exactly one winner", ok, conflicts)
	}
}

func TestWriteNote_FutureDayNotCounted(t *testing.T) {
	svc := newService(t, t.TempDir(), "", nil)
	ctx := context.Background()
	if _, err := svc.WriteNote(ctx, date(t, "2024-01-11"), []byte("- [ ] later\n"), ""); err != nil {
		t.Fatal(err)
	}
	st, _ := svc.Stats(ctx)
	if len(st.Daily) != 0 {
		t.Errorf("future day counted: %+v", st.Daily)
	}
}

func TestCalendarListing(t *testing.T) {
	svc := newService(t, t.TempDir(), "", nil)
	ctx := context.Background()
	for _, d := range []string{"2023-12-31", "2024-01-02", "2024-01-09"} {
		if _, err := svc.WriteNote(ctx, date(t, d), []byte("x\n"), ""); err != nil {
			t.Fatal(err)
		}
	}
	if got := svc.Years(); strings.Join(got, ",") != "2023,2024" {
		t.Errorf("years = %v", got)
	}
	if got := svc.Days("2024", "01"); strings.Join(got, ",") != "02,09" {
		t.Errorf("days = %v", got)
	}
	if got := svc.Months("2030"); len(got) != 0 {
		t.Errorf("missing year months = %v", got)
	}
}

func TestRecomputeStats(t *testing.T) {
	svc := newService(t, t.TempDir(), "", nil)
	ctx := context.Background()
	_, _ = svc.WriteNote(ctx, date(t, "2024-01-08"), []byte("- [x] a\n"), "")
	_, _ = svc.WriteNote(ctx, date(t, "2024-01-09"), []byte("- [x] a\n- [x] b\n"), "")

	st, err := svc.RecomputeStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Summary.PerfectDays != 2 || st.Summary.CurrentStreak != 2 || st.Summary.LongestStreak != 2 {
		t.Errorf("summary = %+v", st.Summary)
	}
	if _, err := svc.UpdateDayStats(ctx, date(t, "2024-02-01"), 1, 1, 0); !errors.Is(err, apperr.ErrFutureDate) {
		t.Errorf("future: %v", err)
	}
}

func TestPastTasksFlow(t *testing.T) {
	svc := newService(t, t.TempDir(), "", nil)
	ctx := context.Background()
	note := "## 待办事项\n- [ ] buy milk\n  - [ ] 2%\n- [ ] call mom\n## 完成事项\n- [x] done\n"
	if _, err := svc.WriteNote(ctx, date(t, "2024-01-01"), []byte(note), ""); err != nil {
		t.Fatal(err)
	}

	tasks, err := svc.ScanPastTasks(ctx)
	if err != nil || len(tasks) != 2 {
		t.Fatalf("scan = %+v, %v", tasks, err)
	}

	if _, err := svc.DismissPastTask(ctx, tasks[1].ID); err != nil {
		t.Fatal(err)
	}
	rel, err := svc.DeletePastTask(ctx, "2024-01-01", "buy milk")
	if err != nil {
		t.Fatal(err)
	}
	content, _ := svc.ReadFile(ctx, rel)
	if strings.Contains(content.Content, "buy milk") || strings.Contains(content.Content, "2%") {
		t.Errorf("task not removed: %q", content.Content)
	}

	tasks, _ = svc.ScanPastTasks(ctx)
	if len(tasks) != 0 {
		t.Errorf("after delete and dismiss = %+v", tasks)
	}
	st, _ := svc.PastState(ctx)
	if st.LastChecked != "2024-01-10" || len(st.Dismissed) != 1 {
		t.Errorf("state = %+v", st)
	}
}

func TestAttachments(t *testing.T) {
	svc := newService(t, t.TempDir(), "", nil)
	ctx := context.Background()

	a, err := svc.UploadAttachment(ctx, "2024", "01", "../截图 1.png", []byte("png"))
	if err != nil {
		t.Fatal(err)
	}
	if a.Path != "2024/01/assets/截图_1.png" || a.Ref != "assets/截图_1.png" {
		t.Errorf("attachment = %+v", a)
	}
	history, _ := svc.History(ctx, a.Path, 1)
	if len(history) != 1 || history[0].Message != "upload attachment 截图_1.png" {
		t.Errorf("history = %+v", history)
	}

	if _, err := svc.UploadAttachment(ctx, "24", "1", "a.png", nil); !errors.Is(err, apperr.ErrMalformedInput) {
		t.Errorf("bad month: %v", err)
	}
	if err := svc.DeleteAttachment(ctx, "2024/01/10.md"); !errors.Is(err, apperr.ErrMalformedInput) {
		t.Errorf("non-attachment delete: %v", err)
	}
	if err := svc.DeleteAttachment(ctx, a.Path); err != nil {
		t.Fatal(err)
	}
	if abs, _ := svc.AttachmentFile(a.Path); fileExists(abs) {
		t.Error("attachment still on disk")
	}
}

func TestFetchAttachment_DataURI(t *testing.T) {
	svc := newService(t, t.TempDir(), "", nil)
	png := []byte("\x89PNG\r\n\x1a\n0000")
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	a, err := svc.FetchAttachment(context.Background(), "2024", "01", uri, "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(a.Name, ".png") || !strings.HasPrefix(a.Path, "2024/01/assets/") {
		t.Errorf("attachment = %+v", a)
	}

	bad := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("not a png"))
	if _, err := svc.FetchAttachment(context.Background(), "2024", "01", bad, ""); !errors.Is(err, apperr.ErrMalformedInput) {
		t.Errorf("mismatched content: %v", err)
	}
}

func TestBestEffortSync_NoRemote(t *testing.T) {
	svc := newService(t, t.TempDir(), "", nil)
	res := svc.BestEffortSync(context.Background())
	if res.Err != nil || res.Pushed {
		t.Errorf("result = %+v", res)
	}
	if _, err := svc.Sync(context.Background()); !errors.Is(err, vcs.ErrNoRemote) {
		t.Errorf("Sync: %v", err)
	}
}

func bare(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "remote.git")
	for _, args := range [][]string{
		{"init", "-q", "--bare", dir},
		{"-C", dir, "symbolic-ref", "HEAD", "refs/heads/main"},
	} {
		if out, err := exec.Command("git", args...).CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	return dir
}

func TestSyncConflictAndMerge(t *testing.T) {
	ctx := context.Background()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	remote := bare(t)
	a := newService(t, t.TempDir(), remote, nil)
	if _, err := a.Sync(ctx); err != nil {
		t.Fatalf("seed sync: %v", err)
	}

	bDir, err := vcs.Clone(ctx, vcs.CloneOptions{URL: remote, ParentDir: t.TempDir(), Transport: vcs.TransportExec})
	if err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	b := newService(t, bDir, remote, rec)

	d := date(t, "2024-01-09")
	if _, err := a.WriteNote(ctx, d, []byte("- [ ] from a\n"), ""); err != nil {
		t.Fatal(err)
	}
	if res := a.BestEffortSync(ctx); res.Err != nil || !res.Pushed {
		t.Fatalf("a sync = %+v", res)
	}
	if _, err := b.WriteNote(ctx, d, []byte("- [x] from b\n"), ""); err != nil {
		t.Fatal(err)
	}

	res := b.BestEffortSync(ctx)
	if !errors.Is(res.Err, vcs.ErrMergeRequired) || res.Pushed {
		t.Fatalf("b sync = %+v", res)
	}
	if len(res.Conflicts) == 0 {
		t.Errorf("no conflicts reported")
	}
	if !rec.has(sse.SyncConflict) {
		t.Errorf("events = %v", rec.events)
	}

	status, err := b.ConflictStatus(ctx)
	if err != nil || status.State != vcs.StateConflicted {
		t.Fatalf("status = %+v, %v", status, err)
	}
	for _, p := range status.Conflicts {
		c := b.Conflict(ctx, p)
		if p == notes.PathFor(d) && len(c.Diffs) == 0 {
			t.Errorf("no diff for %s", p)
		}
		resolved := c.Remote
		if p == notes.PathFor(d) {
			resolved = "- [ ] from a\n- [x] from b\n"
		}
		if err := b.ResolveConflict(ctx, p, []byte(resolved)); err != nil {
			t.Fatal(err)
		}
	}

	merge, err := b.CompleteMerge(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if !merge.Pushed {
		t.Errorf("merge = %+v", merge)
	}
	st, _ := b.Stats(ctx)
	if got := st.Daily["2024-01-09"]; got.Total != 2 {
		t.Errorf("stats after merge = %+v", st.Daily)
	}

	if _, err := a.Pull(ctx); err != nil {
		t.Fatal(err)
	}
	n, _ := a.ReadNote(ctx, d)
	if n.Content != "- [ ] from a\n- [x] from b\n" {
		t.Errorf("a content = %q", n.Content)
	}
}

func TestLineDiff(t *testing.T) {
	diffs := lineDiff("a\nb\n", "a\nc\n")
	var ops []diffmatchpatch.Operation
	for _, d := range diffs {
		ops = append(ops, d.Type)
	}
	if len(ops) != 3 || ops[0] != diffmatchpatch.DiffEqual {
		t.Errorf("diffs = %+v", diffs)
	}
}

func TestIsAttachmentPath(t *testing.T) {
	tests := map[string]bool{
		"2024/01/assets/a.png":    true,
		"2024/01/assets/../a.png": false,
		"2024/13/assets/a.png":    false,
		"2024/01/05.md":           false,
		"2024/01/assets/.hidden":  false,
	}
	for in, want := range tests {
		if got := IsAttachmentPath(in); got != want {
			t.Errorf("IsAttachmentPath(%q) = %v, want %v", in, got, want)
		}
	}
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
