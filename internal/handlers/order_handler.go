package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"commission-service/internal/repositories"
)

type OrderHandler struct {
	orders   repositories.OrderRepository
	validate *validator.Validate
}

func NewOrderHandler(orders repositories.OrderRepository) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		validate: validator.New(),
	}
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	soNumber := vars["so_number"]

	order, err := h.orders.GetOrder(r.Context(), soNumber)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if order == nil {
		respondWithError(w, http.StatusNotFound, "Order not found")
		return
	}
	respondWithJSON(w, http.StatusOK, order)
}

type manualLinkRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// MarkManuallyLinked flags an order as an admin correction. Once set,
// imports leave the order untouched and count it as unchanged.
func (h *OrderHandler) MarkManuallyLinked(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	soNumber := vars["so_number"]

	var req manualLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.orders.MarkManuallyLinked(r.Context(), soNumber, req.Reason)
	if errors.Is(err, sql.ErrNoRows) {
		respondWithError(w, http.StatusNotFound, "Order not found")
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message":   "Order marked as manually linked",
		"so_number": soNumber,
	})
}
