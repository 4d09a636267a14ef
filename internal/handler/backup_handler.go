package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bav-systems/visitas-api/internal/service"
	appErrors "github.com/bav-systems/visitas-api/pkg/errors"
	"github.com/bav-systems/visitas-api/pkg/response"
)

// maxRestorePayload caps uploaded archives at 32 MiB.
const maxRestorePayload = 32 << 20

// BackupHandler wires database backup and restore.
type BackupHandler struct {
	service *service.BackupService
}

// NewBackupHandler creates a new handler.
func NewBackupHandler(svc *service.BackupService) *BackupHandler {
	return &BackupHandler{service: svc}
}

// Export godoc
// @Summary Download a full-database JSON backup
// @Tags Backup
// @Produce application/json
// @Success 200 {file} binary
// @Router /backup [get]
func (h *BackupHandler) Export(c *gin.Context) {
	filename, payload, err := h.service.Export(c.Request.Context(), actorID(c), originIP(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, "application/json", payload)
}

// Restore godoc
// @Summary Restore the database from a JSON backup
// @Tags Backup
// @Accept json
// @Produce json
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /backup/restore [post]
func (h *BackupHandler) Restore(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRestorePayload))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read backup payload"))
		return
	}

	if err := h.service.Restore(c.Request.Context(), actorID(c), originIP(c), payload); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
