/*
handlers.go - HTTP API handlers for the wallet ledger.

PURPOSE:
  Translates HTTP requests into engine.Engine calls and engine/ledger
  results into JSON responses.

ERROR MAPPING:
  Malformed request fields are answered with 422 directly via
  writeError. Engine and store errors go through writeEngineError,
  which unwraps a *ledger.Error and maps its Kind to the boundary
  status code (see ledger.Kind.HTTPStatus). Anything that is not a
  *ledger.Error is logged and reported as a generic 500.

SEE ALSO:
  - dto.go: request/response types and conversion helpers
  - server.go: route wiring
  - engine: the movement protocol these handlers drive
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/warp/wallet-ledger/engine"
	"github.com/warp/wallet-ledger/ledger"
	"github.com/warp/wallet-ledger/logging"
)

// Handler holds the dependencies every route needs.
type Handler struct {
	Engine  *engine.Engine
	Store   ledger.Store
	Project string
	Log     *logging.Logger
}

// NewHandler creates a new handler.
func NewHandler(eng *engine.Engine, store ledger.Store, project string, log *logging.Logger) *Handler {
	return &Handler{Engine: eng, Store: store, Project: project, Log: log}
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		h.Log.Warn("health check failed", "error", err, "request_id", middleware.GetReqID(r.Context()))
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Project: h.Project})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Project: h.Project})
}

// =============================================================================
// MOVEMENTS
// =============================================================================

func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	h.movement(w, r, h.Engine.TopUp)
}

func (h *Handler) Bonus(w http.ResponseWriter, r *http.Request) {
	h.movement(w, r, h.Engine.Bonus)
}

func (h *Handler) Spend(w http.ResponseWriter, r *http.Request) {
	h.movement(w, r, h.Engine.Spend)
}

type movementFunc func(ctx context.Context, req engine.MovementRequest) (*engine.Result, error)

func (h *Handler) movement(w http.ResponseWriter, r *http.Request, fn movementFunc) {
	var body MovementRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body", err)
		return
	}

	amount, err := ledger.ParseMoney(body.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount", err)
		return
	}
	if body.AssetType == "" {
		writeError(w, http.StatusUnprocessableEntity, "asset_type is required", nil)
		return
	}

	result, err := fn(r.Context(), engine.MovementRequest{
		IdempotencyKey: body.IdempotencyKey,
		Owner:          ledger.OwnerID(body.UserID),
		AssetCode:      body.AssetType,
		Amount:         amount,
		Metadata:       body.Metadata,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MovementResponse{
		Transaction: toTransactionDTO(result.Transaction),
		Entries:     toLedgerEntryDTOs(result.Entries),
	})
}

// =============================================================================
// BALANCE
// =============================================================================

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid user_id", err)
		return
	}
	assetTypeID, err := strconv.ParseInt(r.URL.Query().Get("asset_type_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "asset_type_id query parameter is required", err)
		return
	}

	asset, err := h.Store.Assets().GetByID(r.Context(), ledger.AssetTypeID(assetTypeID))
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			h.writeEngineError(w, r, ledger.NewError(ledger.KindWalletNotFound, "wallet not found: unknown asset_type_id"))
			return
		}
		h.writeEngineError(w, r, ledger.WrapError(ledger.KindStoreError, "resolving asset type", err))
		return
	}

	wallet, err := h.Store.Wallets().GetByOwnerAsset(r.Context(), ledger.OwnerID(userID), asset.ID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			h.writeEngineError(w, r, ledger.NewError(ledger.KindWalletNotFound, "wallet not found"))
			return
		}
		h.writeEngineError(w, r, ledger.WrapError(ledger.KindStoreError, "resolving wallet", err))
		return
	}

	writeJSON(w, http.StatusOK, BalanceDTO{
		UserID:        userID,
		AssetTypeID:   int64(asset.ID),
		AssetTypeCode: asset.Code,
		Balance:       wallet.Balance.String(),
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError unwraps a *ledger.Error to pick the boundary status
// code from its Kind; anything else is an unexpected internal failure.
// Every path logs the request id so a boundary log line can be
// correlated back to the X-Request-Id returned to the caller.
func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetReqID(r.Context())
	var lerr *ledger.Error
	if errors.As(err, &lerr) {
		resp := ErrorResponse{Error: lerr.Message, Kind: string(lerr.Kind)}
		h.Log.Debug("engine error", "kind", lerr.Kind, "error", lerr.Message, "request_id", reqID)
		writeJSON(w, lerr.Kind.HTTPStatus(), resp)
		return
	}
	h.Log.Error("unhandled engine error", "error", err, "request_id", reqID)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}
