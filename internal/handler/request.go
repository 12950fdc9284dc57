package handler

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"cardvault/internal/auth"
	"cardvault/internal/errors"
	"cardvault/internal/model"
)

// ContextKeyUser is where the JWT middleware stores the parsed token.
const ContextKeyUser = "user"

// PageQuery carries the shared pagination query parameters.
type PageQuery struct {
	Page int `query:"page" validate:"omitempty,min=0"`
	Size int `query:"size" validate:"omitempty,min=1,max=100"`
}

func (q PageQuery) toPage() model.Page {
	return model.Page{Number: q.Page, Size: q.Size}.Normalize()
}

// ClaimsFrom returns the access token claims of the authenticated request.
func ClaimsFrom(c echo.Context) (*auth.Claims, error) {
	token, ok := c.Get(ContextKeyUser).(*jwt.Token)
	if !ok {
		return nil, unauthorized()
	}
	claims, ok := token.Claims.(*auth.Claims)
	if !ok {
		return nil, unauthorized()
	}
	return claims, nil
}

// actor returns the authenticated user's id and role.
func actor(c echo.Context) (uuid.UUID, model.Role, error) {
	claims, err := ClaimsFrom(c)
	if err != nil {
		return uuid.Nil, "", err
	}
	id, err := claims.UserUUID()
	if err != nil {
		return uuid.Nil, "", unauthorized()
	}
	return id, claims.Role, nil
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return badRequest("invalid request body", "INVALID_REQUEST")
	}
	if err := c.Validate(req); err != nil {
		return badRequest(err.Error(), "VALIDATION_ERROR")
	}
	return nil
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, badRequest("invalid "+name, "INVALID_UUID")
	}
	return id, nil
}

func badRequest(message, code string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func unauthorized() *echo.HTTPError {
	return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
		Error: "invalid or missing token",
		Code:  "UNAUTHORIZED",
	})
}
