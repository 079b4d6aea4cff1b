package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"commission-service/internal/models"
	"commission-service/internal/repositories"
	"commission-service/internal/services"
)

const maxImportSizeBytes = 64 << 20

type ImportHandler struct {
	importService *services.ImportService
}

func NewImportHandler(importService *services.ImportService) *ImportHandler {
	return &ImportHandler{
		importService: importService,
	}
}

// UploadImport registers an uploaded export file and returns its import
// id and row count. Processing is a separate call.
func (h *ImportHandler) UploadImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportSizeBytes); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Import file is required")
		return
	}
	defer file.Close()

	run, err := h.importService.CreateImport(r.Context(), header.Filename, file)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"importId":  run.ID,
		"totalRows": run.TotalRows,
	})
}

// ProcessImport starts asynchronous processing and returns immediately
// with an accepted response; callers poll progress.
func (h *ImportHandler) ProcessImport(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	importID := vars["import_id"]

	if importID == "" {
		respondWithError(w, http.StatusBadRequest, "Import ID is required")
		return
	}

	err := h.importService.StartProcessing(r.Context(), importID)
	switch {
	case errors.Is(err, repositories.ErrImportNotFound):
		respondWithError(w, http.StatusNotFound, "Import not found")
		return
	case errors.Is(err, services.ErrImportInProgress):
		respondWithError(w, http.StatusConflict, "Import is already being processed")
		return
	case err != nil:
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]string{
		"importId": importID,
		"status":   models.ImportStatusProcessing,
	})
}

// GetImportProgress returns the run's checkpoint: status, current row,
// percentage, and running stats. Stats are present even after a failure.
func (h *ImportHandler) GetImportProgress(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	importID := vars["import_id"]

	if importID == "" {
		respondWithError(w, http.StatusBadRequest, "Import ID is required")
		return
	}

	run, err := h.importService.Progress(r.Context(), importID)
	if errors.Is(err, repositories.ErrImportNotFound) {
		respondWithError(w, http.StatusNotFound, "Import not found")
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	percentage := 100.0
	if run.TotalRows > 0 {
		percentage = float64(run.CurrentRow) / float64(run.TotalRows) * 100
	}

	response := map[string]interface{}{
		"importId":   run.ID,
		"status":     run.Status,
		"currentRow": run.CurrentRow,
		"totalRows":  run.TotalRows,
		"percentage": percentage,
		"stats":      run.Stats,
	}
	if run.ErrorMessage != "" {
		response["error"] = run.ErrorMessage
	}

	respondWithJSON(w, http.StatusOK, response)
}
