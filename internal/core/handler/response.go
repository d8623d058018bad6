package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Nzyazin/miniwallet/internal/core/models"
	"github.com/google/uuid"
)

const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"
)

type envelope struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

type errorData struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type InitResponse struct {
	Token string `json:"token"`
}

type WalletResponse struct {
	ID              uuid.UUID  `json:"id"`
	OwnedBy         uuid.UUID  `json:"owned_by"`
	Status          string     `json:"status"`
	StatusChangedAt *time.Time `json:"status_changed_at"`
	Balance         string     `json:"balance"`
}

type walletData struct {
	Wallet WalletResponse `json:"wallet"`
}

type DepositResponse struct {
	ID          uuid.UUID `json:"id"`
	DepositedBy uuid.UUID `json:"deposited_by"`
	Status      string    `json:"status"`
	DepositedAt time.Time `json:"deposited_at"`
	Amount      string    `json:"amount"`
	ReferenceID string    `json:"reference_id"`
	Balance     string    `json:"balance"`
}

type depositData struct {
	Deposit DepositResponse `json:"deposit"`
}

type WithdrawalResponse struct {
	ID          uuid.UUID `json:"id"`
	WithdrawnBy uuid.UUID `json:"withdrawn_by"`
	Status      string    `json:"status"`
	WithdrawnAt time.Time `json:"withdrawn_at"`
	Amount      string    `json:"amount"`
	ReferenceID string    `json:"reference_id"`
	Balance     string    `json:"balance"`
}

type withdrawalData struct {
	Withdrawal WithdrawalResponse `json:"withdrawal"`
}

type TransactionResponse struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	CommittedAt time.Time `json:"committed_at"`
	Amount      string    `json:"amount"`
	ReferenceID string    `json:"reference_id"`
}

type transactionsData struct {
	Transactions []TransactionResponse `json:"transactions"`
}

func newWalletResponse(w *models.Wallet) WalletResponse {
	return WalletResponse{
		ID:              w.ID,
		OwnedBy:         w.OwnerID,
		Status:          string(w.Status),
		StatusChangedAt: w.StatusChangedAt,
		Balance:         w.Balance.StringFixed(models.MinorUnits),
	}
}

func newTransactionResponses(txs []models.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, TransactionResponse{
			ID:          tx.ID,
			Type:        string(tx.Direction),
			Status:      string(tx.Status),
			CommittedAt: tx.CommittedAt,
			Amount:      tx.Amount.StringFixed(models.MinorUnits),
			ReferenceID: tx.ReferenceID,
		})
	}
	return out
}

func respondWithData(w http.ResponseWriter, code int, data any) {
	respondWithJSON(w, code, envelope{Status: statusSuccess, Data: data})
}

func respondWithError(w http.ResponseWriter, code int, errCode, message string) {
	status := statusFail
	if code >= http.StatusInternalServerError {
		status = statusError
	}
	respondWithJSON(w, code, envelope{Status: status, Data: errorData{Error: message, Code: errCode}})
}

func respondWithJSON(w http.ResponseWriter, code int, body envelope) {
	response, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"status":"error","data":{"error":"internal server error"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
