package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/daylog/internal/apperr"
	"github.com/starford/daylog/internal/index"
	"github.com/starford/daylog/internal/notebook"
	"github.com/starford/daylog/internal/testutil"
	"github.com/starford/daylog/internal/vcs"
)

var today = time.Date(2024, time.January, 10, 12, 0, 0, 0, time.Local)

func testEnv(t *testing.T, authToken string) (*notebook.Service, http.Handler) {
	t.Helper()
	return testEnvFull(t, authToken != "", authToken, nil)
}

func testEnvFull(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (*notebook.Service, http.Handler) {
	t.Helper()
	svc := testutil.TestService(t, today)
	return svc, NewRouter(svc, authEnabled, authToken, sseHandler)
}

func do(t *testing.T, router http.Handler, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestGetNote_Missing(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/notes/2024-01-05", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	note := decode[NoteDetail](t, w)
	if note.Exists || note.Path != "2024/01/05.md" || note.Template == "" {
		t.Errorf("note = %+v", note)
	}
}

func TestGetNote_BadDate(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/notes/2024-13-40", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestPutNoteWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPut, "/notes/2024-01-05", PutNoteRequest{Content: "- [x] a\n- [ ] b\n"})
	if w.Code != http.StatusOK {
		t.Fatalf("put = %d, body = %s", w.Code, w.Body.String())
	}
	note := decode[NoteDetail](t, w)
	if !note.Exists || note.Stats.Total != 2 || note.Stats.Completed != 1 {
		t.Errorf("note = %+v", note)
	}

	w = do(t, router, http.MethodPut, "/notes/2024-01-05", PutNoteRequest{Content: "v2\n"}, "If-Match", `"`+note.Checksum+`"`)
	if w.Code != http.StatusOK {
		t.Fatalf("matching If-Match = %d", w.Code)
	}

	w = do(t, router, http.MethodPut, "/notes/2024-01-05", PutNoteRequest{Content: "v3\n"}, "If-Match", note.Checksum)
	if w.Code != http.StatusConflict {
		t.Errorf("stale If-Match = %d, want 409", w.Code)
	}
	if body := decode[errResponse](t, w); body.Code != "checksum_mismatch" {
		t.Errorf("code = %q", body.Code)
	}
}

func TestFilesAndTree(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPut, "/files/notes%2Fidea.md", PutNoteRequest{Content: "idea"})
	if w.Code != http.StatusOK {
		t.Fatalf("put file = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodGet, "/files/notes/idea.md", nil)
	if f := decode[notebook.FileDetail](t, w); f.Content != "idea" {
		t.Errorf("file = %+v", f)
	}
	w = do(t, router, http.MethodGet, "/tree?dir=notes", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("idea.md")) {
		t.Errorf("tree = %d %s", w.Code, w.Body.String())
	}
}

func TestCalendar(t *testing.T) {
	_, router := testEnv(t, "")
	for _, d := range []string{"2023-12-31", "2024-01-02"} {
		do(t, router, http.MethodPut, "/notes/"+d, PutNoteRequest{Content: "x"})
	}

	w := do(t, router, http.MethodGet, "/calendar", nil)
	years := decode[map[string][]string](t, w)["years"]
	if len(years) != 2 {
		t.Errorf("years = %v", years)
	}
	w = do(t, router, http.MethodGet, "/calendar/2024/01", nil)
	days := decode[map[string][]string](t, w)["days"]
	if len(days) != 1 || days[0] != "02" {
		t.Errorf("days = %v", days)
	}

	w = do(t, router, http.MethodGet, "/calendar/2024/01/summary", nil)
	summary := decode[map[string][]index.DayRow](t, w)["days"]
	if len(summary) != 1 || summary[0].Date != "2024-01-02" {
		t.Errorf("summary = %+v", summary)
	}
	if w := do(t, router, http.MethodGet, "/calendar/2024/13/summary", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad month = %d, want 400", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPut, "/notes/2024-01-03", PutNoteRequest{Content: "- [ ] water the ferns\n"})

	w := do(t, router, http.MethodGet, "/search?q=ferns", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	res := decode[map[string][]map[string]any](t, w)["results"]
	if len(res) != 1 || res[0]["path"] != "2024/01/03.md" {
		t.Errorf("results = %v", res)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHistory(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPut, "/notes/2024-01-03", PutNoteRequest{Content: "one"})
	do(t, router, http.MethodPut, "/notes/2024-01-03", PutNoteRequest{Content: "two"})

	w := do(t, router, http.MethodGet, "/history?path=2024/01/03.md", nil)
	commits := decode[map[string][]vcs.CommitInfo](t, w)["commits"]
	if len(commits) != 2 {
		t.Errorf("commits = %+v", commits)
	}
}

func TestStatsEndpoints(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPut, "/stats/days/2024-01-09", DayStatsRequest{Total: 2, Completed: 2})
	if w.Code != http.StatusOK {
		t.Fatalf("day update = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodPut, "/stats/days/2024-02-01", DayStatsRequest{Total: 1, Completed: 1})
	if w.Code != http.StatusBadRequest {
		t.Errorf("future day = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodGet, "/stats", nil)
	body := decode[map[string]any](t, w)
	summary, _ := body["summary"].(map[string]any)
	if summary["currentStreak"] != float64(1) {
		t.Errorf("summary = %v", summary)
	}

	// Recompute replaces the manual entry with what the notes say.
	w = do(t, router, http.MethodPost, "/stats/recompute", nil)
	body = decode[map[string]any](t, w)
	if daily, _ := body["daily"].(map[string]any); len(daily) != 0 {
		t.Errorf("daily after recompute = %v", daily)
	}
}

func TestPastTaskEndpoints(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPut, "/notes/2024-01-01", PutNoteRequest{Content: "## 待办事项\n- [ ] buy milk\n- [ ] call mom\n"})

	w := do(t, router, http.MethodGet, "/past-tasks", nil)
	tasks := decode[map[string][]map[string]string](t, w)["tasks"]
	if len(tasks) != 2 {
		t.Fatalf("tasks = %v", tasks)
	}

	w = do(t, router, http.MethodPost, "/past-tasks/dismiss", DismissPastTaskRequest{ID: tasks[1]["id"]})
	if w.Code != http.StatusOK {
		t.Fatalf("dismiss = %d", w.Code)
	}
	w = do(t, router, http.MethodPost, "/past-tasks/delete", DeletePastTaskRequest{SourceDate: "2024-01-01", Text: "buy milk"})
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodPost, "/past-tasks/delete", DeletePastTaskRequest{SourceDate: "2024-01-01", Text: "buy milk"})
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}

	w = do(t, router, http.MethodGet, "/past-tasks", nil)
	if tasks := decode[map[string][]map[string]string](t, w)["tasks"]; len(tasks) != 0 {
		t.Errorf("tasks after = %v", tasks)
	}
	w = do(t, router, http.MethodGet, "/past-tasks/state", nil)
	if st := decode[map[string]any](t, w); st["lastChecked"] != "2024-01-10" {
		t.Errorf("state = %v", st)
	}
}

func TestSyncWithoutRemote(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/sync", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("sync = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/sync/push", nil); w.Code != http.StatusBadRequest {
		t.Errorf("push = %d, want 400", w.Code)
	}
}

func TestConflictEndpoints_Clean(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/conflicts", nil)
	st := decode[notebook.ConflictStatus](t, w)
	if st.State != vcs.StateClean || len(st.Conflicts) != 0 {
		t.Errorf("status = %+v", st)
	}
	if w := do(t, router, http.MethodPost, "/conflicts/complete", nil); w.Code != http.StatusConflict {
		t.Errorf("complete without merge = %d, want 409", w.Code)
	}
	body := CompleteMergeRequest{Message: "Merge from laptop"}
	if w := do(t, router, http.MethodPost, "/conflicts/complete", body); w.Code != http.StatusConflict {
		t.Errorf("complete with message, no merge = %d, want 409", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/conflicts/complete", "nope"); w.Code != http.StatusBadRequest {
		t.Errorf("complete with bad body = %d, want 400", w.Code)
	}
}

func TestRepositoryEndpoints(t *testing.T) {
	svc, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/repository", nil)
	repo := decode[RepositoryResponse](t, w)
	if repo.Branch != "main" || repo.State != vcs.StateClean || repo.Root != svc.Store().Root() {
		t.Errorf("repository = %+v", repo)
	}

	w = do(t, router, http.MethodGet, "/repository/detect", nil)
	if d := decode[vcs.DetectedRepository](t, w); d.Email != "tester@example.com" {
		t.Errorf("detect = %+v", d)
	}
	w = do(t, router, http.MethodGet, "/repository/detect?path="+t.TempDir(), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("detect plain dir = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/repository/clone", CloneRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("clone without url = %d, want 400", w.Code)
	}
}

// Auth middleware tests.

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := do(t, router, http.MethodGet, "/calendar", nil, "Authorization", "Bearer secret123")
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/calendar", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("missing token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := do(t, router, http.MethodGet, "/calendar", nil, "Authorization", "Bearer wrong")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnvFull(t, false, "ignored", nil)
	if w := do(t, router, http.MethodGet, "/calendar", nil); w.Code != http.StatusOK {
		t.Errorf("disabled auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

func sseStub() http.Handler {
	// Writes headers and blocks until the request context is done.
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvFull(t, true, "secret", sseStub())
	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvFull(t, true, "tok", sseStub())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

// Attachment tests.

func uploadFile(t *testing.T, router http.Handler, target, field, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadServeAndDeleteAttachment(t *testing.T) {
	svc, router := testEnv(t, "")

	w := uploadFile(t, router, "/attachments/2024/01", "file", "test.png", []byte("fake-png-data"))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	a := decode[notebook.Attachment](t, w)
	if a.Path != "2024/01/assets/test.png" || a.Markdown != "![test.png](assets/test.png)" {
		t.Errorf("attachment = %+v", a)
	}

	data, err := os.ReadFile(filepath.Join(svc.Store().Root(), "2024", "01", "assets", "test.png"))
	if err != nil || string(data) != "fake-png-data" {
		t.Fatalf("file on disk = %q, %v", data, err)
	}

	w = do(t, router, http.MethodGet, "/attachments/2024/01/assets/test.png", nil)
	if w.Code != http.StatusOK || w.Body.String() != "fake-png-data" {
		t.Errorf("serve = %d %q", w.Code, w.Body.String())
	}

	if w := do(t, router, http.MethodDelete, "/attachments/2024/01/assets/test.png", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d, body = %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodGet, "/attachments/2024/01/assets/test.png", nil); w.Code != http.StatusNotFound {
		t.Errorf("serve after delete = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/attachments/2024/01/assets/test.png", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestServeAttachment_TraversalBlocked(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/attachments/2024%2F01%2F..%2F..%2F.git%2Fconfig", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("traversal = %d, want 400", w.Code)
	}
}

func TestUploadAttachment_BadMonth(t *testing.T) {
	_, router := testEnv(t, "")
	w := uploadFile(t, router, "/attachments/2024/13", "file", "a.png", []byte("x"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad month = %d, want 400", w.Code)
	}
}

func TestUploadAttachment_MissingFileField(t *testing.T) {
	_, router := testEnv(t, "")
	w := uploadFile(t, router, "/attachments/2024/01", "other", "a.png", []byte("x"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing field = %d, want 400", w.Code)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrap: %w", apperr.ErrConflict), http.StatusConflict},
		{vcs.ErrMergeRequired, http.StatusConflict},
		{vcs.ErrUnresolvedConflicts, http.StatusConflict},
		{apperr.ErrFutureDate, http.StatusBadRequest},
		{apperr.ErrMalformedInput, http.StatusBadRequest},
		{apperr.ErrNotInitialized, http.StatusServiceUnavailable},
		{vcs.ErrAuthFailure, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := statusOf(tt.err); got != tt.want {
			t.Errorf("statusOf(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
