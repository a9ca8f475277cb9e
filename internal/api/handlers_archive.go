// handlers_archive.go - Support archive management handlers
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pos-insight/backend/internal/storage"
)

// Archive formats accepted at upload.
var allowedArchiveSuffixes = []string{".zip", ".tar.gz", ".tgz"}

// ArchiveHandlerImpl implements the ArchiveHandler interface
type ArchiveHandlerImpl struct {
	store storage.Store
}

// NewArchiveHandler creates a new archive handler instance
func NewArchiveHandler(store storage.Store) ArchiveHandler {
	return &ArchiveHandlerImpl{store: store}
}

// HandleUploadArchive accepts a support archive as multipart/form-data
func (h *ArchiveHandlerImpl) HandleUploadArchive(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	if !isSupportedArchive(file.Filename) {
		return NewBadRequestError("unsupported archive format, want .zip or .tar.gz", nil)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(file.Filename, src)
	if err != nil {
		return NewInternalError("failed to save archive", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleListArchives returns recently uploaded archives
func (h *ArchiveHandlerImpl) HandleListArchives(c echo.Context) error {
	archives, err := h.store.List(20)
	if err != nil {
		return NewInternalError("failed to list archives", err)
	}
	return c.JSON(http.StatusOK, archives)
}

// HandleGetArchive returns metadata for a specific archive
func (h *ArchiveHandlerImpl) HandleGetArchive(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("archive", id)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleDeleteArchive deletes an archive and its stored file
func (h *ArchiveHandlerImpl) HandleDeleteArchive(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.store.Delete(id); err != nil {
		return NewNotFoundError("archive", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleRenameArchive updates the display name of an archive
func (h *ArchiveHandlerImpl) HandleRenameArchive(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req renameArchiveRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Name == "" {
		return NewValidationError("name")
	}

	info, err := h.store.Rename(id, req.Name)
	if err != nil {
		return NewNotFoundError("archive", id)
	}
	return c.JSON(http.StatusOK, info)
}

type renameArchiveRequest struct {
	Name string `json:"name"`
}

func isSupportedArchive(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range allowedArchiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
