package handler

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zenbook/service-booking/internal/storage"
)

// StorageHandler serves stored files. Local files are streamed; remote stores redirect.
type StorageHandler struct {
	store storage.Store
}

// NewStorageHandler creates a new StorageHandler.
func NewStorageHandler(store storage.Store) *StorageHandler {
	return &StorageHandler{store: store}
}

// RegisterRoutes registers the public storage route.
func (h *StorageHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/api/v1/storage/*path", h.Serve)
	r.HEAD("/api/v1/storage/*path", h.Serve)
}

// Serve handles GET /api/v1/storage/*path.
func (h *StorageHandler) Serve(c *gin.Context) {
	p := strings.TrimPrefix(c.Param("path"), "/")

	local, ok := h.store.(*storage.LocalStore)
	if !ok {
		if p == "" || strings.Contains(p, "..") {
			c.Status(http.StatusNotFound)
			return
		}
		c.Redirect(http.StatusFound, h.store.URL(p))
		return
	}

	file, info, err := local.Open(p)
	if err != nil {
		if !errors.Is(err, storage.ErrInvalidPath) && !os.IsNotExist(err) {
			_ = c.Error(err)
		}
		c.Status(http.StatusNotFound)
		return
	}
	defer file.Close()

	c.Header("Cache-Control", "public, max-age=86400")
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), file)
}
