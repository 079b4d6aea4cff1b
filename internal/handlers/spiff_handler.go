package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"commission-service/internal/importer"
	"commission-service/internal/models"
	"commission-service/internal/repositories"
)

type SpiffHandler struct {
	spiffs   repositories.SpiffRepository
	validate *validator.Validate
}

func NewSpiffHandler(spiffs repositories.SpiffRepository) *SpiffHandler {
	return &SpiffHandler{
		spiffs:   spiffs,
		validate: validator.New(),
	}
}

type createSpiffRequest struct {
	ProductNumber  string `json:"productNumber" validate:"required"`
	IncentiveType  string `json:"incentiveType" validate:"required"`
	IncentiveValue string `json:"incentiveValue" validate:"required"`
	StartDate      string `json:"startDate" validate:"required"`
	EndDate        string `json:"endDate,omitempty"`
}

func (h *SpiffHandler) CreateSpiff(w http.ResponseWriter, r *http.Request) {
	var req createSpiffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	value, err := decimal.NewFromString(req.IncentiveValue)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid incentive value")
		return
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid start date. Use YYYY-MM-DD")
		return
	}

	var endDate sql.NullTime
	if req.EndDate != "" {
		d, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid end date. Use YYYY-MM-DD")
			return
		}
		endDate = sql.NullTime{Time: d, Valid: true}
	}

	spiff := &models.Spiff{
		ProductNumber:  req.ProductNumber,
		IncentiveType:  req.IncentiveType,
		IncentiveValue: value,
		StartDate:      startDate,
		EndDate:        endDate,
	}
	if err := h.spiffs.InsertSpiff(r.Context(), spiff); err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, spiff)
}

// ListSpiffs returns all spiffs, or only those active for a commission
// month when a ?month=YYYY-MM filter is given.
func (h *SpiffHandler) ListSpiffs(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")

	if month == "" {
		spiffs, err := h.spiffs.ListSpiffs(r.Context())
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondWithJSON(w, http.StatusOK, spiffs)
		return
	}

	periodStart, periodEnd, err := importer.FormatPeriod(month)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid month filter. Use YYYY-MM")
		return
	}
	spiffs, err := h.spiffs.ListActiveSpiffs(r.Context(), periodStart, periodEnd)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, spiffs)
}
