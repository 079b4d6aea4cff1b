package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"commission-service/internal/repositories"
	"commission-service/internal/services"
)

type CommissionHandler struct {
	commissionService *services.CommissionService
	validate          *validator.Validate
}

func NewCommissionHandler(commissionService *services.CommissionService) *CommissionHandler {
	return &CommissionHandler{
		commissionService: commissionService,
		validate:          validator.New(),
	}
}

type applyAdjustmentRequest struct {
	CommissionDetailID int64  `json:"commissionDetailId" validate:"required,gt=0"`
	Amount             string `json:"amount" validate:"required"`
	Note               string `json:"note" validate:"required"`
}

// ApplyAdjustment applies a manual adjustment on top of the calculated
// amount and returns the new total. The rep-month summary recompute it
// triggers is asynchronous.
func (h *CommissionHandler) ApplyAdjustment(w http.ResponseWriter, r *http.Request) {
	var req applyAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid adjustment amount")
		return
	}

	newTotal, err := h.commissionService.ApplyAdjustment(r.Context(), req.CommissionDetailID, amount, req.Note)
	if errors.Is(err, repositories.ErrDetailNotFound) {
		respondWithError(w, http.StatusNotFound, "Commission detail not found")
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"newTotal": newTotal.String(),
	})
}

type recalculateRequest struct {
	Month string `json:"month" validate:"required,len=7"`
}

// RecalculateMonth recomputes every commission detail for one month.
func (h *CommissionHandler) RecalculateMonth(w http.ResponseWriter, r *http.Request) {
	var req recalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.commissionService.RecalculateMonth(r.Context(), req.Month)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}

type clearOverrideRequest struct {
	CommissionDetailID int64 `json:"commissionDetailId" validate:"required,gt=0"`
}

// ClearOverride releases a manual override so automatic recalculation
// can own the amount again.
func (h *CommissionHandler) ClearOverride(w http.ResponseWriter, r *http.Request) {
	var req clearOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	detail, err := h.commissionService.ClearOverride(r.Context(), req.CommissionDetailID)
	if errors.Is(err, repositories.ErrDetailNotFound) {
		respondWithError(w, http.StatusNotFound, "Commission detail not found")
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, detail)
}
