package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hkids/catalog/internal/auth"
	"github.com/hkids/catalog/internal/domain"
	"github.com/hkids/catalog/internal/repository"
	"github.com/hkids/catalog/internal/service"
	"github.com/hkids/catalog/internal/storage"
)

// =============================================================================
// In-memory fixtures
// =============================================================================

type memUserRepo struct {
	users  map[int64]*domain.User
	nextID int64
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int64]*domain.User), nextID: 1}
}

func (m *memUserRepo) Create(ctx context.Context, user *domain.User) error {
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return nil
}

func (m *memUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUserRepo) List(ctx context.Context) ([]*domain.User, error) { return nil, nil }

func (m *memUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := m.GetByUsername(ctx, username)
	return err == nil, nil
}

func (m *memUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

type memBookRepo struct {
	books  map[int64]*domain.Book
	nextID int64
}

func newMemBookRepo() *memBookRepo {
	return &memBookRepo{books: make(map[int64]*domain.Book), nextID: 1}
}

func (m *memBookRepo) Create(ctx context.Context, book *domain.Book) error {
	book.ID = m.nextID
	m.nextID++
	copied := *book
	m.books[book.ID] = &copied
	return nil
}

func (m *memBookRepo) GetByID(ctx context.Context, id int64) (*domain.Book, error) {
	if b, ok := m.books[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memBookRepo) ListPublished(ctx context.Context, filter repository.BookFilter) ([]*domain.Book, error) {
	var result []*domain.Book
	for _, b := range m.books {
		if !b.IsPublished {
			continue
		}
		if filter.AgeGroup != "" && b.AgeGroup != filter.AgeGroup {
			continue
		}
		if filter.Category != "" && b.Category != filter.Category {
			continue
		}
		copied := *b
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *memBookRepo) ListAll(ctx context.Context) ([]*domain.Book, error) {
	var result []*domain.Book
	for _, b := range m.books {
		copied := *b
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *memBookRepo) Update(ctx context.Context, book *domain.Book) error {
	if _, ok := m.books[book.ID]; !ok {
		return repository.ErrNotFound
	}
	copied := *book
	m.books[book.ID] = &copied
	return nil
}

func (m *memBookRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.books[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.books, id)
	return nil
}

func (m *memBookRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(m.books)), nil
}

type stubHealth struct{ err error }

func (s stubHealth) Ping(ctx context.Context) error { return s.err }
func (s stubHealth) Close() error                   { return nil }

// =============================================================================
// Test server
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := zerolog.Nop()
	userRepo := newMemUserRepo()
	bookRepo := newMemBookRepo()

	images, err := storage.NewFilesystemStore(t.TempDir(), "/uploads", logger)
	require.NoError(t, err)

	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	authService := service.NewAuthService(userRepo, issuer, logger)
	catalogService := service.NewCatalogService(bookRepo, nil, 0, service.NopCleanup(), logger)

	router := NewRouter(RouterConfig{
		AuthHandler:   NewAuthHandler(authService, logger),
		HealthHandler: NewHealthHandler(stubHealth{}, logger),
		BookHandler: NewBookHandler(BookHandlerConfig{
			Catalog:       catalogService,
			Images:        images,
			Cleanup:       service.NopCleanup(),
			MaxUploadSize: 10 << 20,
			Logger:        logger,
		}),
		AuthMiddleware: auth.NewMiddleware(issuer, userRepo, logger),
		AllowedOrigin:  "*",
		UploadsDir:     images.BaseDir(),
		Logger:         logger,
	})

	srv := httptest.NewServer(router.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]interface{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &decoded))
	}
	return resp, decoded
}

func registerUser(t *testing.T, srv *httptest.Server, username, role string) string {
	t.Helper()

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/auth/register", "", map[string]interface{}{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func sampleBookBody(title string) map[string]interface{} {
	return map[string]interface{}{
		"title":      title,
		"ageGroup":   "3-5",
		"category":   "Bedtime",
		"coverImage": "/uploads/covers/sample.jpg",
		"pages":      []string{"/uploads/pages/sample-1.jpg"},
	}
}

// =============================================================================
// Tests
// =============================================================================

func TestPublishLifecycle(t *testing.T) {
	srv := newTestServer(t)
	admin := registerUser(t, srv, "admin", "admin")

	// Create a draft.
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/books/", admin, sampleBookBody("The Sleepy Fox"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "Book created successfully", body["message"])

	book, ok := body["book"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, false, book["isPublished"])
	bookID := int64(book["id"].(float64))

	// Drafts are invisible to readers.
	listBody := fetchList(t, srv.URL+"/books/published")
	require.Empty(t, listBody)

	// Publish it.
	resp, body = doJSON(t, http.MethodPut, fmt.Sprintf("%s/books/%d", srv.URL, bookID), admin,
		map[string]interface{}{"isPublished": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Book updated successfully", body["message"])

	// Now readers see it, without internal fields.
	listBody = fetchList(t, srv.URL+"/books/published")
	require.Len(t, listBody, 1)
	require.Equal(t, "The Sleepy Fox", listBody[0]["title"])
	require.NotContains(t, listBody[0], "isPublished")
	require.NotContains(t, listBody[0], "uploadedBy")

	// Delete and confirm it is gone.
	resp, body = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/books/%d", srv.URL, bookID), admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Book deleted successfully", body["message"])

	resp, _ = doJSON(t, http.MethodGet, fmt.Sprintf("%s/books/%d", srv.URL, bookID), admin, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func fetchList(t *testing.T, url string) []map[string]interface{} {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	return list
}

func TestPublishedFilters(t *testing.T) {
	srv := newTestServer(t)
	admin := registerUser(t, srv, "admin", "admin")

	seed := []struct {
		title, ageGroup, category string
	}{
		{"Fox", "3-5", "Bedtime"},
		{"Stars", "3-5", "Learning"},
		{"Map", "9-12", "Adventure"},
	}
	for _, s := range seed {
		body := sampleBookBody(s.title)
		body["ageGroup"] = s.ageGroup
		body["category"] = s.category
		body["isPublished"] = true
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/books/", admin, body)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	list := fetchList(t, srv.URL+"/books/published?ageGroup=3-5")
	require.Len(t, list, 2)

	list = fetchList(t, srv.URL+"/books/published?ageGroup=3-5&category=Learning")
	require.Len(t, list, 1)
	require.Equal(t, "Stars", list[0]["title"])

	list = fetchList(t, srv.URL+"/books/published?ageGroup=9-12&category=Bedtime")
	require.Empty(t, list)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	srv := newTestServer(t)
	reader := registerUser(t, srv, "reader", "")

	// No token at all.
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/books/", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Not authorized, no token", body["message"])

	// Authenticated but not an admin.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/books/", reader, sampleBookBody("Nope"))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "Access denied. Admin privileges required.", body["message"])
}

func TestCreateValidationMessages(t *testing.T) {
	srv := newTestServer(t)
	admin := registerUser(t, srv, "admin", "admin")

	body := sampleBookBody("Missing Cover")
	delete(body, "coverImage")

	resp, decoded := doJSON(t, http.MethodPost, srv.URL+"/books/", admin, body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, decoded["message"], "coverImage")
}

func TestLoginAndProfile(t *testing.T) {
	srv := newTestServer(t)
	registerUser(t, srv, "reader", "")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/auth/login", "", map[string]interface{}{
		"username": "reader",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := body["token"].(string)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "reader", body["username"])
	require.NotContains(t, body, "passwordHash")

	// Wrong password yields 401 without account detail.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/auth/login", "", map[string]interface{}{
		"username": "reader",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Invalid username or password", body["message"])
}

// writeFilePart adds a file part with an explicit content type, the way
// browsers send uploads.
func writeFilePart(t *testing.T, w *multipart.Writer, field, filename, contentType string, data []byte) {
	t.Helper()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
}

func TestMultipartCreateStoresFiles(t *testing.T) {
	srv := newTestServer(t)
	admin := registerUser(t, srv, "admin", "admin")

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("title", "Uploaded Book"))
	require.NoError(t, w.WriteField("ageGroup", "6-8"))
	require.NoError(t, w.WriteField("category", "Adventure"))

	writeFilePart(t, w, "coverImage", "cover.png", "image/png", []byte("png-bytes"))
	for i := 1; i <= 2; i++ {
		writeFilePart(t, w, "pages", fmt.Sprintf("page-%d.jpg", i), "image/jpeg", []byte("jpg-bytes"))
	}
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/books/", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+admin)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		Book struct {
			CoverImage string   `json:"coverImage"`
			Pages      []string `json:"pages"`
		} `json:"book"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, strings.HasPrefix(body.Book.CoverImage, "/uploads/covers/"))
	require.Len(t, body.Book.Pages, 2)
	for _, p := range body.Book.Pages {
		require.True(t, strings.HasPrefix(p, "/uploads/pages/"))
	}

	// Stored files are served back under /uploads/.
	fileResp, err := http.Get(srv.URL + body.Book.CoverImage)
	require.NoError(t, err)
	defer fileResp.Body.Close()
	require.Equal(t, http.StatusOK, fileResp.StatusCode)
	data, err := io.ReadAll(fileResp.Body)
	require.NoError(t, err)
	require.Equal(t, "png-bytes", string(data))
}

func TestMultipartCreateRejectsBadUploads(t *testing.T) {
	srv := newTestServer(t)
	admin := registerUser(t, srv, "admin", "admin")

	tests := []struct {
		name        string
		files       func(t *testing.T, w *multipart.Writer)
		wantMessage string
	}{
		{
			name: "executable cover",
			files: func(t *testing.T, w *multipart.Writer) {
				writeFilePart(t, w, "coverImage", "evil.exe", "application/x-msdownload", []byte("MZ"))
			},
			wantMessage: "Only image files and PDFs are allowed",
		},
		{
			name: "executable page among images",
			files: func(t *testing.T, w *multipart.Writer) {
				writeFilePart(t, w, "coverImage", "cover.png", "image/png", []byte("png-bytes"))
				writeFilePart(t, w, "pages", "page-1.jpg", "image/jpeg", []byte("jpg-bytes"))
				writeFilePart(t, w, "pages", "payload.sh", "application/x-sh", []byte("#!/bin/sh"))
			},
			wantMessage: "Only image files and PDFs are allowed",
		},
		{
			name: "missing content type",
			files: func(t *testing.T, w *multipart.Writer) {
				h := make(textproto.MIMEHeader)
				h.Set("Content-Disposition", `form-data; name="coverImage"; filename="cover.png"`)
				part, err := w.CreatePart(h)
				require.NoError(t, err)
				_, err = part.Write([]byte("png-bytes"))
				require.NoError(t, err)
			},
			wantMessage: "Only image files and PDFs are allowed",
		},
		{
			name: "oversized cover",
			files: func(t *testing.T, w *multipart.Writer) {
				writeFilePart(t, w, "coverImage", "huge.png", "image/png", bytes.Repeat([]byte("x"), 11<<20))
			},
			wantMessage: "File too large",
		},
		{
			name: "too many pages",
			files: func(t *testing.T, w *multipart.Writer) {
				writeFilePart(t, w, "coverImage", "cover.png", "image/png", []byte("png-bytes"))
				for i := 0; i <= 50; i++ {
					writeFilePart(t, w, "pages", fmt.Sprintf("page-%d.jpg", i), "image/jpeg", []byte("jpg"))
				}
			},
			wantMessage: "Too many files",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := multipart.NewWriter(&buf)
			require.NoError(t, w.WriteField("title", "Rejected Book"))
			require.NoError(t, w.WriteField("ageGroup", "6-8"))
			require.NoError(t, w.WriteField("category", "Adventure"))
			tt.files(t, w)
			require.NoError(t, w.Close())

			req, err := http.NewRequest(http.MethodPost, srv.URL+"/books/", &buf)
			require.NoError(t, err)
			req.Header.Set("Content-Type", w.FormDataContentType())
			req.Header.Set("Authorization", "Bearer "+admin)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			require.Equal(t, tt.wantMessage, body["message"])
		})
	}

	// None of the rejected requests created a book.
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/books/", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+admin)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Empty(t, list)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/books/published", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "OK", body["status"])
	require.Equal(t, "connected", body["database"])
}

func TestUnknownBookIs404(t *testing.T) {
	srv := newTestServer(t)
	admin := registerUser(t, srv, "admin", "admin")

	for _, path := range []string{"/books/999", "/books/not-a-number"} {
		resp, body := doJSON(t, http.MethodGet, srv.URL+path, admin, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.Equal(t, "Book not found", body["message"])
	}
}
