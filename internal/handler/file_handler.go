package handler

import (
	"errors"
	"net/http"
	"os"

	"backoffice/internal/storage"
	"backoffice/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
)

// FileOpener resolves a signed download token to a stored object.
type FileOpener interface {
	Open(token string) (afero.File, os.FileInfo, error)
}

type FileHandler struct {
	files FileOpener
}

func NewFileHandler(files FileOpener) *FileHandler {
	return &FileHandler{files: files}
}

// RegisterRoutes mounts the public download route; the token is the credential.
func (h *FileHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/files/:token", h.Download)
}

// Download streams the object named by a signed token
// @Summary      Download a stored document
// @Tags         documents
// @Param        token  path  string  true  "Signed download token"
// @Success      200
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /files/{token} [get]
func (h *FileHandler) Download(c *gin.Context) {
	f, info, err := h.files.Open(c.Param("token"))
	switch {
	case errors.Is(err, storage.ErrInvalidToken):
		c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, "invalid_token", "Download link is invalid or expired"))
		return
	case errors.Is(err, storage.ErrObjectMissing):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "not_found", "File not found"))
		return
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "storage_failed", "Failed to open file"))
		return
	}
	defer f.Close()

	c.Header("Cache-Control", "private, no-store")
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}
