package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"cardvault/internal/model"
	"cardvault/internal/service"
)

// TransactionHandler handles balance transfer endpoints.
type TransactionHandler struct {
	transferService service.TransferService
}

// NewTransactionHandler creates a new transaction handler.
func NewTransactionHandler(transferService service.TransferService) *TransactionHandler {
	return &TransactionHandler{transferService: transferService}
}

// TransferRequest represents a transfer between two of the caller's cards.
type TransferRequest struct {
	FromCardID  string `json:"from_card_id" validate:"required,uuid"`
	ToCardID    string `json:"to_card_id" validate:"required,uuid"`
	Amount      string `json:"amount" validate:"required,numeric"`
	Description string `json:"description" validate:"max=200"`
}

// TransactionResponse represents a ledger entry.
type TransactionResponse struct {
	ID          string `json:"id"`
	FromCardID  string `json:"from_card_id"`
	ToCardID    string `json:"to_card_id"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// TransactionPageResponse is one page of ledger entries.
type TransactionPageResponse struct {
	Items []TransactionResponse `json:"items"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Size  int                   `json:"size"`
}

func toTransactionResponse(t *model.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:          t.ID.String(),
		FromCardID:  t.FromCardID.String(),
		ToCardID:    t.ToCardID.String(),
		Amount:      t.Amount.StringFixed(2),
		Description: t.Description,
		CreatedAt:   t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Transfer godoc
// @Summary Transfer funds between two of the caller's cards
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TransferRequest true "Transfer data"
// @Success 201 {object} TransactionResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /transactions [post]
func (h *TransactionHandler) Transfer(c echo.Context) error {
	var req TransferRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	userID, _, err := actor(c)
	if err != nil {
		return err
	}

	fromID, err := uuid.Parse(req.FromCardID)
	if err != nil {
		return badRequest("invalid from_card_id", "INVALID_UUID")
	}
	toID, err := uuid.Parse(req.ToCardID)
	if err != nil {
		return badRequest("invalid to_card_id", "INVALID_UUID")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return badRequest("invalid amount", "INVALID_AMOUNT")
	}
	if !model.FitsMoneyScale(amount) {
		return badRequest("amount must have at most 2 decimal places", "INVALID_AMOUNT")
	}

	record, err := h.transferService.Transfer(c.Request().Context(), userID, fromID, toID, amount, req.Description)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toTransactionResponse(record))
}

// ListTransactions godoc
// @Summary List the caller's transfers
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param page query int false "Zero-based page"
// @Param size query int false "Page size"
// @Success 200 {object} TransactionPageResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /transactions [get]
func (h *TransactionHandler) ListTransactions(c echo.Context) error {
	var q PageQuery
	if err := bindAndValidate(c, &q); err != nil {
		return err
	}
	userID, _, err := actor(c)
	if err != nil {
		return err
	}

	result, err := h.transferService.ListByUser(c.Request().Context(), userID, q.toPage())
	if err != nil {
		return err
	}

	resp := TransactionPageResponse{
		Items: make([]TransactionResponse, 0, len(result.Items)),
		Total: result.Total,
		Page:  result.Page,
		Size:  result.Size,
	}
	for i := range result.Items {
		resp.Items = append(resp.Items, toTransactionResponse(&result.Items[i]))
	}
	return c.JSON(http.StatusOK, resp)
}
