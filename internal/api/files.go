package api

import (
	"net/http"

	"resumable-chat/backend/internal/service"

	"github.com/gin-gonic/gin"
)

type FileHandler struct {
	attachments *service.AttachmentService
}

func NewFileHandler(attachments *service.AttachmentService) *FileHandler {
	return &FileHandler{attachments: attachments}
}

// Upload accepts a multipart "file" field.
func (h *FileHandler) Upload(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "No file uploaded", err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "Unreadable file", err)
		return
	}
	defer f.Close()

	a, err := h.attachments.Upload(c.Request.Context(), user.ID, service.Upload{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}
