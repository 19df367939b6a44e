package handler

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hkids/catalog/internal/auth"
	"github.com/hkids/catalog/internal/domain"
	"github.com/hkids/catalog/internal/repository"
	"github.com/hkids/catalog/internal/service"
	"github.com/hkids/catalog/internal/storage"
)

// maxPageFiles bounds how many page images one request may upload.
const maxPageFiles = 50

// Upload rejections. Mapped to 400 responses before any file is persisted.
var (
	errUnsupportedFile = errors.New("unsupported file type")
	errFileTooLarge    = errors.New("file too large")
	errTooManyFiles    = errors.New("too many files")
)

// BookHandler handles catalog requests. Create and update accept either a
// JSON body carrying image references, or a multipart form whose files are
// persisted through the image store before the record is written.
type BookHandler struct {
	catalog       *service.CatalogService
	images        storage.ImageStore
	cleanup       service.CleanupQueue
	maxUploadSize int64
	logger        zerolog.Logger
}

// BookHandlerConfig contains the dependencies for a BookHandler.
type BookHandlerConfig struct {
	Catalog       *service.CatalogService
	Images        storage.ImageStore
	Cleanup       service.CleanupQueue
	MaxUploadSize int64
	Logger        zerolog.Logger
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(cfg BookHandlerConfig) *BookHandler {
	return &BookHandler{
		catalog:       cfg.Catalog,
		images:        cfg.Images,
		cleanup:       cfg.Cleanup,
		maxUploadSize: cfg.MaxUploadSize,
		logger:        cfg.Logger.With().Str("handler", "books").Logger(),
	}
}

// publishedBook is the reader-facing projection of a book. Internal-only
// fields (uploader, publish flag) are excluded.
type publishedBook struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	AgeGroup    domain.AgeGroup `json:"ageGroup"`
	Category    string          `json:"category"`
	CoverImage  string          `json:"coverImage"`
	Pages       []string        `json:"pages"`
	FileType    domain.FileType `json:"fileType"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ListPublished handles GET /books/published. Public.
func (h *BookHandler) ListPublished(w http.ResponseWriter, r *http.Request) {
	filter := repository.BookFilter{
		AgeGroup: domain.AgeGroup(r.URL.Query().Get("ageGroup")),
		Category: r.URL.Query().Get("category"),
	}

	books, err := h.catalog.ListPublished(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]publishedBook, 0, len(books))
	for _, b := range books {
		out = append(out, publishedBook{
			ID:          b.ID,
			Title:       b.Title,
			Description: b.Description,
			AgeGroup:    b.AgeGroup,
			Category:    b.Category,
			CoverImage:  b.CoverImage,
			Pages:       b.Pages,
			FileType:    b.FileType,
			CreatedAt:   b.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// ListAll handles GET /books. Admin only.
func (h *BookHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	books, err := h.catalog.ListAll(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

// GetByID handles GET /books/{id}. Admin only.
func (h *BookHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		writeMessage(w, http.StatusNotFound, "Book not found")
		return
	}

	book, err := h.catalog.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

type createBookRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	AgeGroup    string   `json:"ageGroup"`
	Category    string   `json:"category"`
	CoverImage  string   `json:"coverImage"`
	Pages       []string `json:"pages"`
	FileType    string   `json:"fileType"`
	IsPublished bool     `json:"isPublished"`
}

// Create handles POST /books. Admin only.
func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	admin, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Not authorized, no token")
		return
	}

	var req createBookRequest
	var uploaded []string

	if isMultipart(r) {
		form, err := h.parseUploadForm(r)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid multipart form")
			return
		}
		if err := h.validateUpload(form); err != nil {
			writeError(w, h.logger, err)
			return
		}

		req.Title = form.value("title")
		req.Description = form.value("description")
		req.AgeGroup = form.value("ageGroup")
		req.Category = form.value("category")
		req.FileType = form.value("fileType")
		req.IsPublished = form.value("isPublished") == "true"

		refs, err := h.storeFiles(r, form)
		if err != nil {
			h.cleanup.Enqueue(refs...)
			writeError(w, h.logger, err)
			return
		}
		uploaded = refs
		if form.cover != "" {
			req.CoverImage = form.cover
		}
		if len(form.pages) > 0 {
			req.Pages = form.pages
		} else {
			req.Pages = form.values("pages")
		}
	} else {
		if err := decodeJSON(r, &req); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	book, err := h.catalog.Create(r.Context(), admin, service.CreateBookInput{
		Title:       req.Title,
		Description: req.Description,
		AgeGroup:    domain.AgeGroup(req.AgeGroup),
		Category:    req.Category,
		CoverImage:  req.CoverImage,
		Pages:       req.Pages,
		FileType:    domain.FileType(req.FileType),
		IsPublished: req.IsPublished,
	})
	if err != nil {
		// Files already persisted for a record that will not exist.
		h.cleanup.Enqueue(uploaded...)
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Book created successfully",
		"book":    book,
	})
}

type updateBookRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	AgeGroup    *string  `json:"ageGroup"`
	Category    *string  `json:"category"`
	CoverImage  *string  `json:"coverImage"`
	Pages       []string `json:"pages"`
	FileType    *string  `json:"fileType"`
	IsPublished *bool    `json:"isPublished"`
}

// Update handles PUT /books/{id}. Admin only. Absent fields stay unchanged.
func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		writeMessage(w, http.StatusNotFound, "Book not found")
		return
	}

	var req updateBookRequest
	var uploaded []string

	if isMultipart(r) {
		form, err := h.parseUploadForm(r)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid multipart form")
			return
		}
		if err := h.validateUpload(form); err != nil {
			writeError(w, h.logger, err)
			return
		}

		req.Title = form.optional("title")
		req.Description = form.optional("description")
		req.AgeGroup = form.optional("ageGroup")
		req.Category = form.optional("category")
		req.FileType = form.optional("fileType")
		if v := form.optional("isPublished"); v != nil {
			published := *v == "true"
			req.IsPublished = &published
		}

		refs, err := h.storeFiles(r, form)
		if err != nil {
			h.cleanup.Enqueue(refs...)
			writeError(w, h.logger, err)
			return
		}
		uploaded = refs
		if form.cover != "" {
			req.CoverImage = &form.cover
		}
		if len(form.pages) > 0 {
			req.Pages = form.pages
		} else if vals := form.values("pages"); vals != nil {
			req.Pages = vals
		}
	} else {
		if err := decodeJSON(r, &req); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	input := service.UpdateBookInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		CoverImage:  req.CoverImage,
		Pages:       req.Pages,
		IsPublished: req.IsPublished,
	}
	if req.AgeGroup != nil {
		ag := domain.AgeGroup(*req.AgeGroup)
		input.AgeGroup = &ag
	}
	if req.FileType != nil {
		ft := domain.FileType(*req.FileType)
		input.FileType = &ft
	}

	book, err := h.catalog.Update(r.Context(), id, input)
	if err != nil {
		h.cleanup.Enqueue(uploaded...)
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Book updated successfully",
		"book":    book,
	})
}

// Delete handles DELETE /books/{id}. Admin only.
func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		writeMessage(w, http.StatusNotFound, "Book not found")
		return
	}

	if err := h.catalog.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeMessage(w, http.StatusOK, "Book deleted successfully")
}

// =============================================================================
// Upload helpers
// =============================================================================

func bookID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// uploadForm wraps a parsed multipart form plus the stored references.
type uploadForm struct {
	form  *multipart.Form
	cover string
	pages []string
}

func (f *uploadForm) value(key string) string {
	if vals := f.form.Value[key]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func (f *uploadForm) values(key string) []string {
	return f.form.Value[key]
}

func (f *uploadForm) optional(key string) *string {
	if vals := f.form.Value[key]; len(vals) > 0 {
		return &vals[0]
	}
	return nil
}

func (h *BookHandler) parseUploadForm(r *http.Request) (*uploadForm, error) {
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		return nil, err
	}
	return &uploadForm{form: r.MultipartForm}, nil
}

// validateUpload checks every file part against the upload restrictions
// before anything is persisted: at most maxPageFiles pages, each file within
// the size limit and declared as an image or PDF.
func (h *BookHandler) validateUpload(form *uploadForm) error {
	if len(form.form.File["pages"]) > maxPageFiles {
		return errTooManyFiles
	}

	for _, field := range []string{"coverImage", "pages"} {
		for _, fh := range form.form.File[field] {
			if fh.Size > h.maxUploadSize {
				return errFileTooLarge
			}
			if !allowedMediaType(fh.Header.Get("Content-Type")) {
				return errUnsupportedFile
			}
		}
	}
	return nil
}

func allowedMediaType(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt, "image/") || mt == "application/pdf"
}

// storeFiles persists the uploaded cover and page files in field order and
// records their references on the form. It returns every stored reference
// so the caller can schedule cleanup if the request ultimately fails.
func (h *BookHandler) storeFiles(r *http.Request, form *uploadForm) ([]string, error) {
	var stored []string

	if headers := form.form.File["coverImage"]; len(headers) > 0 {
		ref, err := h.storeFile(r, storage.KindCover, headers[0])
		if err != nil {
			return stored, err
		}
		stored = append(stored, ref)
		form.cover = ref
	}

	for _, fh := range form.form.File["pages"] {
		ref, err := h.storeFile(r, storage.KindPage, fh)
		if err != nil {
			return stored, err
		}
		stored = append(stored, ref)
		form.pages = append(form.pages, ref)
	}

	return stored, nil
}

func (h *BookHandler) storeFile(r *http.Request, kind storage.Kind, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	return h.images.Save(r.Context(), kind, fh.Filename, f)
}
