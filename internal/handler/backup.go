package handler

import (
	"log/slog"
	"net/http"

	"github.com/rosevale/habitloop/internal/backup"
	"github.com/rosevale/habitloop/internal/store"
)

type BackupHandler struct {
	manager *backup.Manager
	backups *store.BackupStore
	logger  *slog.Logger
}

func NewBackupHandler(manager *backup.Manager, backups *store.BackupStore, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{
		manager: manager,
		backups: backups,
		logger:  logger,
	}
}

// List returns recent backup records, newest first.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.backups.List(50)
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// Run triggers an immediate backup. Admin only, enforced by routing.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "backups are not configured")
		return
	}

	record, err := h.manager.RunNow(r.Context())
	if err != nil {
		h.logger.Error("run backup", "error", err)
		writeError(w, http.StatusInternalServerError, "backup failed")
		return
	}
	writeJSON(w, http.StatusCreated, record)
}
