package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"cardvault/internal/model"
	"cardvault/internal/service"
)

const dateLayout = "2006-01-02"

// CardHandler handles card vault endpoints.
type CardHandler struct {
	cardService service.CardService
}

// NewCardHandler creates a new card handler.
func NewCardHandler(cardService service.CardService) *CardHandler {
	return &CardHandler{cardService: cardService}
}

// CreateCardRequest represents a card issue request.
type CreateCardRequest struct {
	OwnerID    string `json:"owner_id" validate:"required,uuid"`
	HolderName string `json:"holder_name" validate:"required,max=255"`
	ExpiryDate string `json:"expiry_date" validate:"required,datetime=2006-01-02"`
}

// SetBalanceRequest represents an administrative balance overwrite.
type SetBalanceRequest struct {
	Balance string `json:"balance" validate:"required,numeric"`
}

// CardQuery represents the card list filter.
type CardQuery struct {
	PageQuery
	OwnerID    string `query:"owner_id" validate:"omitempty,uuid"`
	Status     string `query:"status" validate:"omitempty,oneof=ACTIVE BLOCKED EXPIRED"`
	MinBalance string `query:"min_balance" validate:"omitempty,numeric"`
	MaxBalance string `query:"max_balance" validate:"omitempty,numeric"`
	ExpiryFrom string `query:"expiry_from" validate:"omitempty,datetime=2006-01-02"`
	ExpiryTo   string `query:"expiry_to" validate:"omitempty,datetime=2006-01-02"`
	HolderName string `query:"holder_name" validate:"omitempty,max=255"`
}

// CardResponse is the public view of a card. The number is always masked.
type CardResponse struct {
	ID           string `json:"id"`
	MaskedNumber string `json:"masked_number"`
	HolderName   string `json:"holder_name"`
	ExpiryDate   string `json:"expiry_date"`
	Status       string `json:"status"`
	Balance      string `json:"balance"`
	OwnerID      string `json:"owner_id"`
}

// CardPageResponse is one page of cards.
type CardPageResponse struct {
	Items []CardResponse `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}

func toCardResponse(card *model.Card) CardResponse {
	return CardResponse{
		ID:           card.ID.String(),
		MaskedNumber: card.MaskedNumber,
		HolderName:   card.HolderName,
		ExpiryDate:   card.ExpiryDate.Format(dateLayout),
		Status:       string(card.Status),
		Balance:      card.Balance.StringFixed(2),
		OwnerID:      card.OwnerID.String(),
	}
}

func (q CardQuery) toFilter() model.CardFilter {
	var f model.CardFilter
	if id, err := uuid.Parse(q.OwnerID); err == nil {
		f.OwnerID = &id
	}
	if q.Status != "" {
		status := model.CardStatus(q.Status)
		f.Status = &status
	}
	if d, err := decimal.NewFromString(q.MinBalance); err == nil {
		f.MinBalance = &d
	}
	if d, err := decimal.NewFromString(q.MaxBalance); err == nil {
		f.MaxBalance = &d
	}
	if t, err := time.Parse(dateLayout, q.ExpiryFrom); err == nil {
		f.ExpiryFrom = &t
	}
	if t, err := time.Parse(dateLayout, q.ExpiryTo); err == nil {
		f.ExpiryTo = &t
	}
	f.HolderName = q.HolderName
	return f
}

// ListCards godoc
// @Summary List cards
// @Description Admins see every card; other users only their own.
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Param status query string false "ACTIVE, BLOCKED or EXPIRED"
// @Param min_balance query string false "Minimum balance"
// @Param max_balance query string false "Maximum balance"
// @Param expiry_from query string false "Earliest expiry date (YYYY-MM-DD)"
// @Param expiry_to query string false "Latest expiry date (YYYY-MM-DD)"
// @Param holder_name query string false "Holder name substring"
// @Param owner_id query string false "Owner id (admin only)"
// @Param page query int false "Zero-based page"
// @Param size query int false "Page size"
// @Success 200 {object} CardPageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /cards [get]
func (h *CardHandler) ListCards(c echo.Context) error {
	var q CardQuery
	if err := bindAndValidate(c, &q); err != nil {
		return err
	}
	userID, role, err := actor(c)
	if err != nil {
		return err
	}

	result, err := h.cardService.ListFiltered(c.Request().Context(), userID, role, q.toFilter(), q.toPage())
	if err != nil {
		return err
	}

	resp := CardPageResponse{
		Items: make([]CardResponse, 0, len(result.Items)),
		Total: result.Total,
		Page:  result.Page,
		Size:  result.Size,
	}
	for i := range result.Items {
		resp.Items = append(resp.Items, toCardResponse(&result.Items[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

// GetCard godoc
// @Summary Get a card
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Success 200 {object} CardResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /cards/{id} [get]
func (h *CardHandler) GetCard(c echo.Context) error {
	cardID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	userID, role, err := actor(c)
	if err != nil {
		return err
	}

	var card *model.Card
	if role == model.RoleAdmin {
		card, err = h.cardService.FindByID(c.Request().Context(), cardID)
	} else {
		card, err = h.cardService.FindOwnedBy(c.Request().Context(), cardID, userID)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCardResponse(card))
}

// CreateCard godoc
// @Summary Issue a card
// @Tags cards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateCardRequest true "Card data"
// @Success 201 {object} CardResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /cards [post]
func (h *CardHandler) CreateCard(c echo.Context) error {
	var req CreateCardRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	userID, _, err := actor(c)
	if err != nil {
		return err
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		return badRequest("invalid owner_id", "INVALID_UUID")
	}
	expiry, err := time.Parse(dateLayout, req.ExpiryDate)
	if err != nil {
		return badRequest("invalid expiry_date", "INVALID_DATE")
	}

	card, err := h.cardService.Create(c.Request().Context(), userID, ownerID, req.HolderName, expiry)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toCardResponse(card))
}

// BlockCard godoc
// @Summary Block a card
// @Description Allowed for the card owner and for admins.
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Success 200 {object} CardResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /cards/{id}/block [patch]
func (h *CardHandler) BlockCard(c echo.Context) error {
	return h.transition(c, h.cardService.Block)
}

// ActivateCard godoc
// @Summary Activate a card
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Success 200 {object} CardResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /cards/{id}/activate [patch]
func (h *CardHandler) ActivateCard(c echo.Context) error {
	return h.transition(c, h.cardService.Activate)
}

func (h *CardHandler) transition(c echo.Context, apply func(ctx context.Context, actorID, cardID uuid.UUID) (*model.Card, error)) error {
	cardID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	userID, _, err := actor(c)
	if err != nil {
		return err
	}

	card, err := apply(c.Request().Context(), userID, cardID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCardResponse(card))
}

// SetBalance godoc
// @Summary Overwrite a card balance
// @Description Administrative correction. Recorded in the card audit trail, not in the ledger.
// @Tags cards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Param request body SetBalanceRequest true "New balance"
// @Success 200 {object} CardResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /cards/{id}/balance [patch]
func (h *CardHandler) SetBalance(c echo.Context) error {
	cardID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req SetBalanceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	userID, _, err := actor(c)
	if err != nil {
		return err
	}

	balance, err := decimal.NewFromString(req.Balance)
	if err != nil {
		return badRequest("invalid balance", "INVALID_AMOUNT")
	}
	if !model.FitsMoneyScale(balance) {
		return badRequest("balance must have at most 2 decimal places", "INVALID_AMOUNT")
	}

	card, err := h.cardService.SetBalance(c.Request().Context(), userID, cardID, balance)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCardResponse(card))
}

// DeleteCard godoc
// @Summary Delete a card
// @Tags cards
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Success 204
// @Failure 404 {object} errors.ErrorResponse
// @Router /cards/{id} [delete]
func (h *CardHandler) DeleteCard(c echo.Context) error {
	cardID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	userID, _, err := actor(c)
	if err != nil {
		return err
	}

	if err := h.cardService.Delete(c.Request().Context(), userID, cardID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
