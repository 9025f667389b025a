package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/quill/internal/bookservice"
	"github.com/starford/quill/internal/library"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/resolver"
	"github.com/starford/quill/internal/testutil"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

// testEnv sets up a temp library, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*bookservice.Service, http.Handler) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) (*bookservice.Service, http.Handler) {
	t.Helper()
	res, err := resolver.New(resolver.DefaultLimits(), testutil.QuietLogger())
	if err != nil {
		t.Fatalf("resolver.New: %v", err)
	}
	svc := bookservice.New(bookservice.Options{
		Resolver: res,
		Library:  library.New(filepath.Join(t.TempDir(), library.FileName), testutil.QuietLogger()),
		DB:       testutil.TestDB(t),
		Logger:   testutil.QuietLogger(),
	})
	return svc, NewRouter(svc, authEnabled, token, sseHandler)
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func withPath(route, bookPath string) string {
	return route + "?path=" + url.QueryEscape(bookPath)
}

// createBook creates a book through the API and returns its root.
func createBook(t *testing.T, router http.Handler, title string) string {
	t.Helper()
	w := do(t, router, http.MethodPost, "/books", CreateBookRequest{ParentDir: t.TempDir(), Title: title, Author: "Ana"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create book status = %d, body = %s", w.Code, w.Body.String())
	}
	var p models.BookProject
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	return p.Path
}

func TestCreateAndGetBook(t *testing.T) {
	_, router := testEnv(t, "")
	root := createBook(t, router, "Saga")

	w := do(t, router, http.MethodGet, withPath("/books", root), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", w.Code, w.Body.String())
	}
	var p models.BookProject
	_ = json.Unmarshal(w.Body.Bytes(), &p)
	if p.Metadata.Title != "Saga" {
		t.Errorf("title = %q, want Saga", p.Metadata.Title)
	}
	if len(p.Metadata.ChapterOrder) != 1 || p.Chapters["01"] == nil {
		t.Errorf("chapters = %v", p.Metadata.ChapterOrder)
	}

	w = do(t, router, http.MethodGet, "/library", nil)
	var idx models.LibraryIndex
	_ = json.Unmarshal(w.Body.Bytes(), &idx)
	if len(idx.Books) != 1 || idx.Books[0].Path != root {
		t.Errorf("library = %+v", idx.Books)
	}
}

func TestCreateBookValidation(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/books", CreateBookRequest{Title: "No parent"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing parentDir = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/books", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", rec.Code)
	}
}

func TestOpenBook(t *testing.T) {
	svc, router := testEnv(t, "")
	root := createBook(t, router, "Opened")
	if err := svc.RemoveBook(context.Background(), root, false); err != nil {
		t.Fatal(err)
	}

	w := do(t, router, http.MethodPost, "/library/open", OpenBookRequest{Path: filepath.Join(root, "book.json")})
	if w.Code != http.StatusOK {
		t.Fatalf("open status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodPost, "/library/open", OpenBookRequest{Path: t.TempDir()})
	if w.Code != http.StatusNotFound {
		t.Errorf("open empty dir = %d, want 404", w.Code)
	}
	var body errResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Kind != "not_found" {
		t.Errorf("kind = %q", body.Kind)
	}
}

func TestChapterRoutes(t *testing.T) {
	_, router := testEnv(t, "")
	root := createBook(t, router, "Chapters")

	w := do(t, router, http.MethodPost, withPath("/books/chapters", root), TitleRequest{Title: "Two"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create chapter = %d, body = %s", w.Code, w.Body.String())
	}
	var created ChapterMutationResponse
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if created.Chapter.ID != "02" {
		t.Errorf("new id = %q, want 02", created.Chapter.ID)
	}

	content := "<p>storm over the harbour</p>"
	w = do(t, router, http.MethodPut, withPath("/books/chapters/02", root), ChapterPatch{Content: &content})
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, withPath("/books/chapters/02", root), nil)
	var c models.ChapterDocument
	_ = json.Unmarshal(w.Body.Bytes(), &c)
	if c.Content != content {
		t.Errorf("content = %q", c.Content)
	}

	w = do(t, router, http.MethodPost, withPath("/books/chapters/02/rename", root), RenameRequest{Title: ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty rename = %d, want 400", w.Code)
	}
	w = do(t, router, http.MethodPost, withPath("/books/chapters/02/rename", root), RenameRequest{Title: "Storm"})
	if w.Code != http.StatusOK {
		t.Errorf("rename = %d", w.Code)
	}

	w = do(t, router, http.MethodPost, withPath("/books/chapters/02/move", root), MoveRequest{Direction: "sideways"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad direction = %d, want 400", w.Code)
	}
	w = do(t, router, http.MethodPost, withPath("/books/chapters/02/move", root), MoveRequest{Direction: "up"})
	var meta models.BookMetadata
	_ = json.Unmarshal(w.Body.Bytes(), &meta)
	if len(meta.ChapterOrder) != 2 || meta.ChapterOrder[0] != "02" {
		t.Errorf("order after move = %v", meta.ChapterOrder)
	}

	w = do(t, router, http.MethodPost, withPath("/books/chapters/02/duplicate", root), nil)
	if w.Code != http.StatusCreated {
		t.Errorf("duplicate = %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/search?q=harbour", nil)
	var sr SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &sr)
	if len(sr.Results) != 2 {
		t.Errorf("search hits = %d, want 2 (original and copy)", len(sr.Results))
	}

	w = do(t, router, http.MethodDelete, withPath("/books/chapters/02", root), nil)
	_ = json.Unmarshal(w.Body.Bytes(), &meta)
	if w.Code != http.StatusOK || len(meta.ChapterOrder) != 2 {
		t.Errorf("delete = %d, order = %v", w.Code, meta.ChapterOrder)
	}

	w = do(t, router, http.MethodPut, withPath("/books/chapters/99", root), ChapterPatch{Content: &content})
	if w.Code != http.StatusNotFound {
		t.Errorf("update unknown chapter = %d, want 404", w.Code)
	}
}

func TestSnapshotRoutes(t *testing.T) {
	_, router := testEnv(t, "")
	root := createBook(t, router, "Snapshots")

	w := do(t, router, http.MethodPost, withPath("/books/chapters/01/restore", root), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("restore without snapshots = %d, want 404", w.Code)
	}

	w = do(t, router, http.MethodPost, withPath("/books/chapters/01/snapshots", root), SnapshotRequest{Reason: "first"})
	if w.Code != http.StatusCreated {
		t.Fatalf("snapshot = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, withPath("/books/chapters/01/snapshots", root), nil)
	var list struct {
		Snapshots []models.ChapterSnapshot `json:"snapshots"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Snapshots) != 1 || list.Snapshots[0].Reason != "first" {
		t.Errorf("snapshots = %+v", list.Snapshots)
	}

	w = do(t, router, http.MethodPost, withPath("/books/chapters/01/restore", root), nil)
	if w.Code != http.StatusOK {
		t.Errorf("restore = %d", w.Code)
	}
}

func TestPublishAndMetadata(t *testing.T) {
	_, router := testEnv(t, "")
	root := createBook(t, router, "Meta")

	w := do(t, router, http.MethodPut, withPath("/books/publish", root), PublishRequest{Published: true})
	var meta models.BookMetadata
	_ = json.Unmarshal(w.Body.Bytes(), &meta)
	if !meta.IsPublished || meta.PublishedAt == "" {
		t.Errorf("publish = %d, meta = %+v", w.Code, meta)
	}

	meta.Subtitle = "A subtitle"
	w = do(t, router, http.MethodPut, withPath("/books/metadata", root), meta)
	if w.Code != http.StatusOK {
		t.Fatalf("save metadata = %d, body = %s", w.Code, w.Body.String())
	}

	meta.ChapterOrder = []string{"../x"}
	w = do(t, router, http.MethodPut, withPath("/books/metadata", root), meta)
	if w.Code != http.StatusConflict {
		t.Errorf("bad chapter order = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodGet, "/library", nil)
	var idx models.LibraryIndex
	_ = json.Unmarshal(w.Body.Bytes(), &idx)
	if len(idx.Books) != 1 || idx.Books[0].Status != models.StatusPublished {
		t.Errorf("library = %+v", idx.Books)
	}
}

func TestChatsAndConfig(t *testing.T) {
	_, router := testEnv(t, "")
	root := createBook(t, router, "Chats")

	chats := models.BookChats{Book: []models.ChatMessage{{Role: "robot", Content: "hi"}}}
	w := do(t, router, http.MethodPut, withPath("/books/chats", root), chats)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad role = %d, want 400", w.Code)
	}

	chats.Book[0].Role = models.RoleUser
	w = do(t, router, http.MethodPut, withPath("/books/chats", root), chats)
	if w.Code != http.StatusOK {
		t.Fatalf("chats = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, withPath("/books/config", root), nil)
	var cfg models.AppConfig
	_ = json.Unmarshal(w.Body.Bytes(), &cfg)
	cfg.Temperature = 5
	w = do(t, router, http.MethodPut, withPath("/books/config", root), cfg)
	_ = json.Unmarshal(w.Body.Bytes(), &cfg)
	if cfg.Temperature > 2 {
		t.Errorf("temperature = %v, want clamped to default", cfg.Temperature)
	}
}

func TestRemoveBook(t *testing.T) {
	_, router := testEnv(t, "")
	root := createBook(t, router, "Gone")

	plain := t.TempDir()
	w := do(t, router, http.MethodDelete, "/library?deleteFiles=true&path="+url.QueryEscape(plain), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unsafe delete = %d, want 400", w.Code)
	}
	if _, err := os.Stat(plain); err != nil {
		t.Errorf("plain folder touched: %v", err)
	}

	w = do(t, router, http.MethodDelete, "/library?deleteFiles=true&path="+url.QueryEscape(root), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d, body = %s", w.Code, w.Body.String())
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Error("book folder should be gone")
	}
}

func TestMissingPathParam(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/books", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("no path = %d, want 400", w.Code)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/library", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := do(t, router, http.MethodGet, "/library", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/library", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_QueryTokenOnlyForGet(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := do(t, router, http.MethodGet, "/library?access_token=secret123", nil)
	if w.Code != http.StatusOK {
		t.Errorf("GET with query token = %d, want 200", w.Code)
	}
	w = do(t, router, http.MethodPost, "/books?access_token=secret123", CreateBookRequest{ParentDir: t.TempDir(), Title: "x"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("POST with query token = %d, want 401", w.Code)
	}
}

// sseStub writes headers and blocks until the request context is done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "secret", sseStub)
	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "tok", sseStub)

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

// Cover tests.

func uploadCover(t *testing.T, router http.Handler, target, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
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

func TestUploadAndServeCover(t *testing.T) {
	_, router := testEnv(t, "")
	root := createBook(t, router, "Covered")

	w := uploadCover(t, router, withPath("/books/cover", root)+"&kind=back-cover", "art.png", pngBytes)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var resp CoverUploadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Metadata.BackCoverImage != "assets/back-cover.png" {
		t.Errorf("backCoverImage = %q", resp.Metadata.BackCoverImage)
	}

	data, err := os.ReadFile(filepath.Join(root, "assets", "back-cover.png"))
	if err != nil || !bytes.Equal(data, pngBytes) {
		t.Fatalf("file on disk: %v", err)
	}

	w = do(t, router, http.MethodGet, withPath("/books/cover", root)+"&kind=back-cover", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Errorf("serve = %d, type = %q", w.Code, w.Header().Get("Content-Type"))
	}

	w = do(t, router, http.MethodGet, withPath("/books/cover", root), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("front cover not set = %d, want 404", w.Code)
	}
}

func TestUploadCover_Rejections(t *testing.T) {
	_, router := testEnv(t, "")
	root := createBook(t, router, "Rejected")

	w := uploadCover(t, router, withPath("/books/cover", root)+"&kind=poster", "a.png", pngBytes)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown kind = %d, want 400", w.Code)
	}

	w = uploadCover(t, router, withPath("/books/cover", root), "a.png", []byte("not an image at all"))
	if w.Code != http.StatusConflict {
		t.Errorf("bad magic bytes = %d, want 409", w.Code)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("wrong", "data")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, withPath("/books/cover", root), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing field = %d, want 400", rec.Code)
	}
}
