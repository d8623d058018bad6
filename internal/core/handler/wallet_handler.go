package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Nzyazin/miniwallet/internal/core/logger"
	"github.com/Nzyazin/miniwallet/internal/core/middleware"
	"github.com/Nzyazin/miniwallet/internal/core/models"
	"github.com/Nzyazin/miniwallet/internal/core/usecase"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type WalletHandler struct {
	lifecycle usecase.WalletLifecycle
	engine    usecase.TransactionEngine
	query     usecase.WalletQuery
	validate  *validator.Validate
	log       logger.Logger
	now       func() time.Time
}

func NewWalletHandler(
	lifecycle usecase.WalletLifecycle,
	engine usecase.TransactionEngine,
	query usecase.WalletQuery,
	log logger.Logger,
) *WalletHandler {
	return &WalletHandler{
		lifecycle: lifecycle,
		engine:    engine,
		query:     query,
		validate:  newValidator(),
		log:       log,
		now:       time.Now,
	}
}

// RegisterRoutes mounts the wallet API. Every route except init goes through
// authenticate.
func (h *WalletHandler) RegisterRoutes(router *mux.Router, authenticate mux.MiddlewareFunc) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/init", h.InitWallet).Methods(http.MethodPost)

	protected := func(fn http.HandlerFunc) http.Handler { return authenticate(fn) }
	api.Handle("/wallet", protected(h.GetWallet)).Methods(http.MethodGet)
	api.Handle("/wallet", protected(h.EnableWallet)).Methods(http.MethodPost)
	api.Handle("/wallet", protected(h.DisableWallet)).Methods(http.MethodPatch)
	api.Handle("/wallet/deposits", protected(h.Deposit)).Methods(http.MethodPost)
	api.Handle("/wallet/withdrawals", protected(h.Withdraw)).Methods(http.MethodPost)
	api.Handle("/wallet/transactions", protected(h.ListTransactions)).Methods(http.MethodGet)
}

func (h *WalletHandler) InitWallet(w http.ResponseWriter, r *http.Request) {
	var req InitRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		h.log.Warn("Invalid init request", logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, usecase.ErrInvalidInput.Code, err.Error())
		return
	}

	res, err := h.lifecycle.Initialize(r.Context(), req.CustomerXID)
	if err != nil {
		h.handleError(w, err)
		return
	}

	respondWithData(w, http.StatusCreated, InitResponse{Token: res.Token})
}

func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	wallet, err := h.lifecycle.GetStatus(r.Context(), ownerID)
	if err != nil {
		h.handleError(w, err)
		return
	}

	respondWithData(w, http.StatusOK, walletData{Wallet: newWalletResponse(wallet)})
}

func (h *WalletHandler) EnableWallet(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	wallet, err := h.lifecycle.Enable(r.Context(), ownerID, h.now())
	if err != nil {
		h.handleError(w, err)
		return
	}

	respondWithData(w, http.StatusCreated, walletData{Wallet: newWalletResponse(wallet)})
}

func (h *WalletHandler) DisableWallet(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req DisableRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, usecase.ErrInvalidInput.Code, "is_disabled must be true")
		return
	}

	wallet, err := h.lifecycle.Disable(r.Context(), ownerID, h.now())
	if err != nil {
		h.handleError(w, err)
		return
	}

	respondWithData(w, http.StatusOK, walletData{Wallet: newWalletResponse(wallet)})
}

func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	res, ownerID, ok := h.processTransaction(w, r, models.DirectionCredit)
	if !ok {
		return
	}

	respondWithData(w, http.StatusCreated, depositData{Deposit: DepositResponse{
		ID:          res.Transaction.ID,
		DepositedBy: ownerID,
		Status:      statusSuccess,
		DepositedAt: res.Transaction.CommittedAt,
		Amount:      res.Transaction.Amount.StringFixed(models.MinorUnits),
		ReferenceID: res.Transaction.ReferenceID,
		Balance:     res.Balance.StringFixed(models.MinorUnits),
	}})
}

func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	res, ownerID, ok := h.processTransaction(w, r, models.DirectionDebit)
	if !ok {
		return
	}

	respondWithData(w, http.StatusCreated, withdrawalData{Withdrawal: WithdrawalResponse{
		ID:          res.Transaction.ID,
		WithdrawnBy: ownerID,
		Status:      statusSuccess,
		WithdrawnAt: res.Transaction.CommittedAt,
		Amount:      res.Transaction.Amount.StringFixed(models.MinorUnits),
		ReferenceID: res.Transaction.ReferenceID,
		Balance:     res.Balance.StringFixed(models.MinorUnits),
	}})
}

func (h *WalletHandler) processTransaction(w http.ResponseWriter, r *http.Request, direction models.Direction) (*usecase.TransactionResult, uuid.UUID, bool) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return nil, uuid.Nil, false
	}

	var req TransactionRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		h.log.Warn("Invalid transaction request", logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, usecase.ErrInvalidInput.Code, err.Error())
		return nil, uuid.Nil, false
	}

	amount, err := parseAmount(req.Amount.String())
	if err != nil {
		h.log.Warn("Invalid amount", logger.StringField("amount", req.Amount.String()), logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, usecase.ErrInvalidAmount.Code, err.Error())
		return nil, uuid.Nil, false
	}

	call := h.engine.Credit
	if direction == models.DirectionDebit {
		call = h.engine.Debit
	}
	res, err := call(r.Context(), ownerID, amount, req.ReferenceID, h.now())
	if err != nil {
		h.handleError(w, err)
		return nil, uuid.Nil, false
	}
	return res, ownerID, true
}

func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, usecase.ErrInvalidInput.Code, "limit must be an integer")
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, usecase.ErrInvalidInput.Code, "offset must be an integer")
		return
	}

	txs, err := h.query.ListTransactions(r.Context(), ownerID, limit, offset)
	if err != nil {
		h.handleError(w, err)
		return
	}

	respondWithData(w, http.StatusOK, transactionsData{Transactions: newTransactionResponses(txs)})
}

func (h *WalletHandler) owner(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	ownerID, ok := middleware.OwnerIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
	}
	return ownerID, ok
}

func (h *WalletHandler) handleError(w http.ResponseWriter, err error) {
	var domainErr *usecase.Error
	if !errors.As(err, &domainErr) {
		domainErr = usecase.ErrStorage.Wrap(err)
	}

	if domainErr.Kind == usecase.KindStorageFailure {
		h.log.Error("Failed to process operation", logger.ErrorField("error", err))
		respondWithError(w, http.StatusInternalServerError, domainErr.Code, usecase.ErrStorage.Message)
		return
	}

	message := domainErr.Message
	if domainErr.Err != nil {
		message = domainErr.Err.Error()
	}
	respondWithError(w, statusFor(domainErr.Kind), domainErr.Code, message)
}

func statusFor(kind usecase.Kind) int {
	switch kind {
	case usecase.KindInvalidInput:
		return http.StatusBadRequest
	case usecase.KindNotFound:
		return http.StatusNotFound
	case usecase.KindConflict:
		return http.StatusConflict
	case usecase.KindPreconditionFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
