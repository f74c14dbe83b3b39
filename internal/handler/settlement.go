// Package handler provides HTTP handlers for the settlement API.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"settleup/internal/domain"
	"settleup/internal/ledger"
	"settleup/internal/ledgerio"
	"settleup/internal/middleware"
	"settleup/internal/settlement"
	"settleup/pkg/errors"
	"settleup/pkg/logger"
	"settleup/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// SettlementService is what the handler needs from the settlement service.
type SettlementService interface {
	Settle(ctx context.Context, req settlement.SettleRequest) (*domain.SettlementRun, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.SettlementRun, error)
}

type SettlementHandler struct {
	service    SettlementService
	codec      *ledgerio.Codec
	validator  *validator.Validator
	logger     logger.Logger
	maxEntries int
}

func NewSettlementHandler(service SettlementService, codec *ledgerio.Codec, val *validator.Validator, log logger.Logger, maxEntries int) *SettlementHandler {
	return &SettlementHandler{
		service:    service,
		codec:      codec,
		validator:  val,
		logger:     log,
		maxEntries: maxEntries,
	}
}

// EntryRequest is one raw IOU: Giver paid Amount on Receiver's behalf.
type EntryRequest struct {
	Giver    string          `json:"giver" validate:"required,participant"`
	Receiver string          `json:"receiver" validate:"required,participant"`
	Amount   decimal.Decimal `json:"amount" validate:"gt=0"`
}

type CreateSettlementRequest struct {
	Name     string         `json:"name" validate:"max=128"`
	Strategy string         `json:"strategy" validate:"strategy"`
	Entries  []EntryRequest `json:"entries" validate:"required,min=1,dive"`
}

type BalanceResponse struct {
	Name       string `json:"name"`
	NetBalance string `json:"net_balance"`
}

type TransferResponse struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type SettlementResponse struct {
	ID               uuid.UUID               `json:"id"`
	Name             string                  `json:"name"`
	Strategy         domain.Strategy         `json:"strategy"`
	Status           domain.SettlementStatus `json:"status"`
	Fingerprint      string                  `json:"fingerprint"`
	ParticipantCount int                     `json:"participant_count"`
	InputCount       int                     `json:"input_count"`
	TransactionCount int                     `json:"transaction_count"`
	GrossVolume      string                  `json:"gross_volume"`
	SettledVolume    string                  `json:"settled_volume"`
	Balances         []BalanceResponse       `json:"balances"`
	Transfers        []TransferResponse      `json:"transfers"`
	Metadata         domain.Metadata         `json:"metadata"`
	CreatedAt        time.Time               `json:"created_at"`
}

// CreateSettlement settles a batch of IOUs and returns the recorded run.
func (h *SettlementHandler) CreateSettlement(w http.ResponseWriter, r *http.Request) {
	var req CreateSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errs := h.validator.ValidateStructured(&req); errs != nil {
		h.respondValidationErrors(w, errs)
		return
	}
	if h.maxEntries > 0 && len(req.Entries) > h.maxEntries {
		h.respondError(w, http.StatusRequestEntityTooLarge, "Too many entries")
		return
	}

	kind, ok := domain.ParseStrategy(req.Strategy)
	if !ok {
		h.respondValidationErrors(w, map[string]string{"Strategy": "Unknown settlement strategy"})
		return
	}

	entries := make([]ledger.Entry, 0, len(req.Entries))
	for i, e := range req.Entries {
		amount, err := h.codec.ToMinor(e.Amount)
		if err != nil {
			h.respondValidationErrors(w, map[string]string{entryField(i, "Amount"): err.Error()})
			return
		}
		entries = append(entries, ledger.Entry{Giver: e.Giver, Receiver: e.Receiver, Amount: amount})
	}

	run, err := h.service.Settle(r.Context(), settlement.SettleRequest{
		Name:     validator.Sanitize(req.Name),
		Entries:  entries,
		Strategy: kind,
	})
	if err != nil {
		h.respondSettleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, h.toResponse(run))
}

// GetSettlement returns a recorded run.
func (h *SettlementHandler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid settlement ID")
		return
	}

	run, err := h.service.Get(r.Context(), id)
	if errors.Is(err, errors.ErrSettlementNotFound) {
		h.respondError(w, http.StatusNotFound, "Settlement not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to fetch settlement", map[string]interface{}{
			"id":    id.String(),
			"error": err.Error(),
		})
		h.respondError(w, http.StatusInternalServerError, "Failed to fetch settlement")
		return
	}

	h.respondJSON(w, http.StatusOK, h.toResponse(run))
}

func (h *SettlementHandler) respondSettleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errors.ErrSelfPayment),
		errors.Is(err, errors.ErrEmptyName),
		errors.Is(err, errors.ErrInvalidWeight),
		errors.Is(err, errors.ErrInvalidAmount),
		errors.Is(err, errors.ErrNoResult):
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, errors.ErrUnknownStrategy):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.respondError(w, http.StatusServiceUnavailable, "Settlement cancelled")
	case errors.Is(err, errors.ErrConservationViolated):
		h.logger.Error("Settlement failed its audit", map[string]interface{}{
			"error":      err.Error(),
			"request_id": middleware.RequestID(r.Context()),
		})
		h.respondError(w, http.StatusInternalServerError, "Settlement failed its audit")
	default:
		h.logger.Error("Settlement failed", map[string]interface{}{"error": err.Error()})
		h.respondError(w, http.StatusInternalServerError, "Settlement failed")
	}
}

func (h *SettlementHandler) toResponse(run *domain.SettlementRun) SettlementResponse {
	resp := SettlementResponse{
		ID:               run.ID,
		Name:             run.LedgerName,
		Strategy:         run.Strategy,
		Status:           run.Status,
		Fingerprint:      run.Fingerprint,
		ParticipantCount: run.ParticipantCount,
		InputCount:       run.InputCount,
		TransactionCount: run.TransactionCount,
		GrossVolume:      h.codec.FormatAmount(run.GrossVolume),
		SettledVolume:    h.codec.FormatAmount(run.SettledVolume),
		Balances:         make([]BalanceResponse, 0, len(run.Balances)),
		Transfers:        make([]TransferResponse, 0, len(run.Transfers)),
		Metadata:         run.Metadata,
		CreatedAt:        run.CreatedAt,
	}

	for _, b := range run.Balances {
		resp.Balances = append(resp.Balances, BalanceResponse{
			Name:       b.Name,
			NetBalance: h.codec.FormatAmount(b.InitialNetBalance),
		})
	}
	for _, t := range run.Transfers {
		resp.Transfers = append(resp.Transfers, TransferResponse{
			From:   t.Origin,
			To:     t.Destination,
			Amount: h.codec.FormatAmount(t.Weight),
		})
	}

	return resp
}

func entryField(i int, field string) string {
	return fmt.Sprintf("Entries[%d].%s", i, field)
}
