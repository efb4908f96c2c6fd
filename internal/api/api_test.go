package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/newsdesk/internal/backup"
	"github.com/starford/newsdesk/internal/editor"
	"github.com/starford/newsdesk/internal/images"
	"github.com/starford/newsdesk/internal/storage"
	"github.com/starford/newsdesk/internal/testutil"
)

const seed = `[{"title":"Alpha","categories":["sport"]},{"title":"Beta","categories":["x","politics"]}]`

type testEnv struct {
	router http.Handler
	store  *testutil.MemStore
	ctl    *editor.Controller
}

func newEnv(t *testing.T, authToken string) *testEnv {
	t.Helper()
	return newEnvWithSSE(t, authToken, nil)
}

func newEnvWithSSE(t *testing.T, authToken string, sseHandler http.Handler) *testEnv {
	t.Helper()
	store := testutil.NewMemStore()
	store.Seed("data/news.json", "main", []byte(seed))

	now := func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }
	uploader := images.NewUploader(
		images.NewRemoteSink(store, "main", "Upload image", "https://cdn.example.com"),
		images.NewTranscoder(1280, 1280),
		images.UploaderConfig{Folder: "images", Quality: 85},
		now, testutil.Logger())
	ctl := editor.New(store, editor.Config{Path: "data/news.json", Branch: "main"},
		editor.WithClock(now), editor.WithLogger(testutil.Logger()), editor.WithUploader(uploader))

	files, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	ledger, err := backup.OpenLedger(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })
	exporter := backup.NewExporter(files, ledger, ctl, 0, testutil.Logger())

	return &testEnv{
		router: NewRouter(ctl, exporter, authToken != "", authToken, sseHandler),
		store:  store,
		ctl:    ctl,
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, _ := json.Marshal(b)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) load(t *testing.T) {
	t.Helper()
	if w := e.do(t, http.MethodPost, "/session/load", nil); w.Code != http.StatusOK {
		t.Fatalf("load status = %d, body = %s", w.Code, w.Body.String())
	}
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestLoadAndFilter(t *testing.T) {
	env := newEnv(t, "")
	env.load(t)

	w := env.do(t, http.MethodGet, "/articles?q=X", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	resp := decodeBody[ArticleListResponse](t, w)
	if resp.Total != 2 || len(resp.Articles) != 1 || resp.Articles[0].Index != 1 {
		t.Errorf("list = %+v", resp)
	}
	if resp.Articles[0].Article.ID == "" {
		t.Error("loaded record has no id")
	}

	st := decodeBody[editor.Status](t, env.do(t, http.MethodGet, "/session/status", nil))
	if st.State != editor.StateLoaded || st.Count != 2 || st.Selected != 0 {
		t.Errorf("status = %+v", st)
	}
}

func TestLoadMissingFile(t *testing.T) {
	env := newEnv(t, "")
	w := env.do(t, http.MethodPost, "/session/load", TargetRequest{Path: "data/none.json"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if body := decodeBody[errResponse](t, w); body.Code != "not_found" {
		t.Errorf("code = %q", body.Code)
	}
}

func TestLoadRejectsBadPath(t *testing.T) {
	env := newEnv(t, "")
	for _, p := range []string{"../etc/passwd.json", "data/news.txt"} {
		w := env.do(t, http.MethodPost, "/session/load", TargetRequest{Path: p})
		if w.Code != http.StatusBadRequest {
			t.Errorf("path %q: status = %d, want 400", p, w.Code)
		}
	}
}

func TestLoadNonArrayIsUnprocessable(t *testing.T) {
	env := newEnv(t, "")
	env.store.Seed("data/object.json", "main", []byte(`{"title":"x"}`))
	w := env.do(t, http.MethodPost, "/session/load", TargetRequest{Path: "data/object.json"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestNewArticleSaveAndCommit(t *testing.T) {
	env := newEnv(t, "")
	env.load(t)

	if w := env.do(t, http.MethodPost, "/articles", nil); w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}
	w := env.do(t, http.MethodPut, "/articles/selected", FormRequest{Title: "", Categories: "a, b"})
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d, body = %s", w.Code, w.Body.String())
	}
	sel := decodeBody[SelectedResponse](t, w)
	if sel.Article.Title != editor.PlaceholderTitle || sel.Article.ID == "" || sel.Form.Categories != "a, b" {
		t.Errorf("selected = %+v", sel)
	}

	w = env.do(t, http.MethodPost, "/session/commit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("commit status = %d, body = %s", w.Code, w.Body.String())
	}
	data, _ := env.store.Content("data/news.json", "main")
	if !strings.Contains(string(data), editor.PlaceholderTitle) {
		t.Errorf("committed file missing new article: %s", data)
	}
}

func TestCommitConflict(t *testing.T) {
	env := newEnv(t, "")
	env.load(t)
	env.store.Seed("data/news.json", "main", []byte(`[]`))

	w := env.do(t, http.MethodPost, "/session/commit", CommitRequest{Form: &FormRequest{Title: "mine"}})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	body := decodeBody[errResponse](t, w)
	if body.Code != "conflict" || !strings.Contains(body.Error, "does not match") {
		t.Errorf("body = %+v", body)
	}
	// Edits are kept.
	list := decodeBody[ArticleListResponse](t, env.do(t, http.MethodGet, "/articles", nil))
	if list.Articles[0].Article.Title != "mine" {
		t.Errorf("edit lost: %+v", list.Articles[0])
	}
}

func TestCommitRejectsInvalidForm(t *testing.T) {
	env := newEnv(t, "")
	env.load(t)
	w := env.do(t, http.MethodPost, "/session/commit", CommitRequest{Form: &FormRequest{YouTubeURL: "not a url"}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSelectAndDelete(t *testing.T) {
	env := newEnv(t, "")
	env.load(t)

	w := env.do(t, http.MethodPost, "/articles/1/select", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("select status = %d", w.Code)
	}
	if sel := decodeBody[SelectedResponse](t, w); sel.Index != 1 || sel.Article.Title != "Beta" {
		t.Errorf("selected = %+v", sel)
	}

	if w := env.do(t, http.MethodPost, "/articles/9/select", nil); w.Code != http.StatusBadRequest {
		t.Errorf("select out of range = %d, want 400", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/articles/x/select", nil); w.Code != http.StatusBadRequest {
		t.Errorf("select non-integer = %d, want 400", w.Code)
	}

	if w := env.do(t, http.MethodDelete, "/articles/1", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/articles/selected", nil); w.Code != http.StatusBadRequest {
		t.Errorf("selected after delete = %d, want 400", w.Code)
	}
}

func TestSnapshotDownload(t *testing.T) {
	env := newEnv(t, "")
	if w := env.do(t, http.MethodGet, "/session/backup", nil); w.Code != http.StatusNotFound {
		t.Errorf("backup before load = %d, want 404", w.Code)
	}
	env.load(t)
	_ = env.do(t, http.MethodPut, "/articles/selected", FormRequest{Title: "unsaved"})

	w := env.do(t, http.MethodGet, "/session/backup", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != seed {
		t.Errorf("snapshot = %q", w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "20250301-100000-news.json") {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestBackupsExportAndList(t *testing.T) {
	env := newEnv(t, "")
	env.load(t)

	w := env.do(t, http.MethodPost, "/backups", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("export status = %d, body = %s", w.Code, w.Body.String())
	}
	res := decodeBody[backup.Result](t, w)

	if w := env.do(t, http.MethodPost, "/backups", nil); w.Code != http.StatusOK {
		t.Errorf("unchanged export = %d, want 200 (skipped)", w.Code)
	}

	list := decodeBody[map[string][]json.RawMessage](t, env.do(t, http.MethodGet, "/backups", nil))
	if len(list["backups"]) != 1 {
		t.Errorf("backups = %d, want 1", len(list["backups"]))
	}

	w = env.do(t, http.MethodGet, "/backups/"+res.Record.Name, nil)
	if w.Code != http.StatusOK || w.Body.String() != seed {
		t.Errorf("download = %d %q", w.Code, w.Body.String())
	}
	if w := env.do(t, http.MethodGet, "/backups/nope.json", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing backup = %d, want 404", w.Code)
	}
}

func TestImport(t *testing.T) {
	env := newEnv(t, "")
	env.load(t)
	w := env.do(t, http.MethodPost, "/import", `[{"title":"Alpha"},{"title":"Gamma"}]`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decodeBody[ImportResponse](t, w); got.Added != 1 {
		t.Errorf("added = %d, want 1", got.Added)
	}
	if w := env.do(t, http.MethodPost, "/import", `{"title":"x"}`); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("object import = %d, want 422", w.Code)
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func upload(t *testing.T, router http.Handler, filename, title string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if title != "" {
		_ = mw.WriteField("title", title)
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadImage(t *testing.T) {
	env := newEnv(t, "")
	env.load(t)

	w := upload(t, env.router, "photo.png", "", pngBytes(t))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	res := decodeBody[images.Result](t, w)
	if !strings.HasPrefix(res.Path, "images/2025/03/alpha-") || !strings.HasSuffix(res.Path, ".jpg") {
		t.Errorf("path = %q", res.Path)
	}
	if res.URL != "https://cdn.example.com/"+res.Path {
		t.Errorf("url = %q", res.URL)
	}
	if _, ok := env.store.Content(res.Path, "main"); !ok {
		t.Error("image not committed")
	}

	again := upload(t, env.router, "photo.png", "", pngBytes(t))
	if again.Code != http.StatusOK || !decodeBody[images.Result](t, again).Skipped {
		t.Errorf("repeat upload = %d %s", again.Code, again.Body.String())
	}
}

func TestUploadImageRejectsGarbage(t *testing.T) {
	env := newEnv(t, "")
	w := upload(t, env.router, "notes.png", "Some title", []byte("definitely not an image"))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestUploadImageInvalidFilename(t *testing.T) {
	env := newEnv(t, "")
	w := upload(t, env.router, "../evil.png", "t", pngBytes(t))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUploadImageMissingFileField(t *testing.T) {
	env := newEnv(t, "")
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("title", "x")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	env := newEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodPost, "/session/load", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed load = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	env := newEnv(t, "secret123")
	if w := env.do(t, http.MethodGet, "/articles", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	env := newEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/articles", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_QueryTokenOnlyForGet(t *testing.T) {
	env := newEnv(t, "secret123")
	if w := env.do(t, http.MethodGet, "/articles?access_token=secret123", nil); w.Code != http.StatusOK {
		t.Errorf("GET with query token = %d, want 200", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/session/load?access_token=secret123", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("POST with query token = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	env := newEnvWithSSE(t, "secret", blockingSSE())
	if w := env.do(t, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	env := newEnvWithSSE(t, "tok", blockingSSE())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

// blockingSSE writes stream headers and blocks until the client leaves.
func blockingSSE() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestStatusOfMapping(t *testing.T) {
	env := newEnv(t, "")
	// Local save with nothing selected.
	w := env.do(t, http.MethodPut, "/articles/selected", FormRequest{Title: "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("save without selection = %d, want 400", w.Code)
	}
	if body := decodeBody[errResponse](t, w); body.Code != "invalid_selection" {
		t.Errorf("code = %q", body.Code)
	}
}
