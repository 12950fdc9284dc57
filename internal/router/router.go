package router

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	echoSwagger "github.com/swaggo/echo-swagger"

	"cardvault/docs"
	"cardvault/internal/auth"
	"cardvault/internal/config"
	apperrors "cardvault/internal/errors"
	"cardvault/internal/handler"
	"cardvault/internal/model"
	"cardvault/internal/service"
)

// Handlers groups the HTTP handlers mounted by Register.
type Handlers struct {
	Auth         *handler.AuthHandler
	Cards        *handler.CardHandler
	Transactions *handler.TransactionHandler
	Users        *handler.UserHandler
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	log logrus.FieldLogger,
	jwtService *auth.JWTService,
	tokenStore auth.TokenStoreInterface,
	h Handlers,
) {
	e.HideBanner = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(RequestLogger(log))

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = cfg.SwaggerHost
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api/v1")

	// Public routes
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)

	// Secured routes (require JWT authentication)
	secured := api.Group("", echojwt.WithConfig(echojwt.Config{
		SigningKey:  jwtService.Secret(),
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ContextKey:  handler.ContextKeyUser,
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return new(auth.Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
				Error: "invalid or missing token",
				Code:  "UNAUTHORIZED",
			}).SetInternal(err)
		},
	}), RejectRevoked(tokenStore))

	secured.POST("/auth/logout", h.Auth.Logout)

	// Card routes
	secured.GET("/cards", h.Cards.ListCards)
	secured.GET("/cards/:id", h.Cards.GetCard)
	secured.PATCH("/cards/:id/block", h.Cards.BlockCard)

	// Transaction routes
	secured.POST("/transactions", h.Transactions.Transfer)
	secured.GET("/transactions", h.Transactions.ListTransactions)

	// Admin routes
	admin := secured.Group("", RequireAdmin())
	admin.POST("/cards", h.Cards.CreateCard)
	admin.PATCH("/cards/:id/activate", h.Cards.ActivateCard)
	admin.PATCH("/cards/:id/balance", h.Cards.SetBalance)
	admin.DELETE("/cards/:id", h.Cards.DeleteCard)

	admin.POST("/users", h.Users.CreateUser)
	admin.GET("/users", h.Users.ListUsers)
	admin.GET("/users/:id", h.Users.GetUser)
	admin.PATCH("/users/:id/block", h.Users.BlockUser)
	admin.PATCH("/users/:id/unblock", h.Users.UnblockUser)
	admin.DELETE("/users/:id", h.Users.DeleteUser)
}

// RejectRevoked refuses refresh tokens presented as bearer tokens, access
// tokens blacklisted by logout, and tokens of users blocked or deleted since.
func RejectRevoked(tokenStore auth.TokenStoreInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := handler.ClaimsFrom(c)
			if err != nil {
				return err
			}
			if claims.Type != auth.TokenTypeAccess {
				return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
					Error: "invalid or missing token",
					Code:  "UNAUTHORIZED",
				})
			}
			ctx := c.Request().Context()

			revoked := false
			if claims.ID != "" {
				if revoked, err = tokenStore.IsAccessTokenBlacklisted(ctx, claims.ID); err != nil {
					return err
				}
			}
			if !revoked {
				userID, err := claims.UserUUID()
				if err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
						Error: "invalid or missing token",
						Code:  "UNAUTHORIZED",
					})
				}
				if revoked, err = tokenStore.IsUserRevoked(ctx, userID); err != nil {
					return err
				}
			}
			if revoked {
				return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
					Error: "token has been revoked",
					Code:  "TOKEN_REVOKED",
				})
			}
			return next(c)
		}
	}
}

// RequireAdmin lets only ADMIN tokens through.
func RequireAdmin() echo.MiddlewareFunc {
	policy := service.AccessPolicy{}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := handler.ClaimsFrom(c)
			if err != nil {
				return err
			}
			if err := policy.RequireManage(&model.User{Role: claims.Role}); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// NewHTTPErrorHandler renders every error as errors.ErrorResponse. Domain
// errors go through the status table; unexpected ones are logged in full and
// reported generically.
func NewHTTPErrorHandler(log logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := http.StatusInternalServerError, apperrors.ErrorResponse{}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			switch msg := he.Message.(type) {
			case apperrors.ErrorResponse:
				body = msg
			default:
				body = apperrors.ErrorResponse{
					Error: fmt.Sprint(msg),
					Code:  codeForStatus(status),
				}
			}
		} else {
			mapped := apperrors.MapErrorToHTTP(err)
			status, body = mapped.StatusCode, mapped.ToErrorResponse()
		}

		entry := log.WithFields(logrus.Fields{
			"method":     c.Request().Method,
			"uri":        c.Request().RequestURI,
			"status":     status,
			"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
		})
		if status >= http.StatusInternalServerError {
			entry.WithError(err).Error("request failed")
		} else {
			entry.WithField("code", body.Code).Debug("request rejected")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.WithError(err).Warn("failed to write error response")
		}
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "ACCESS_DENIED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusServiceUnavailable:
		return "RETRY_LATER"
	}
	if status >= http.StatusInternalServerError {
		return "INTERNAL_ERROR"
	}
	return "ERROR"
}

// RequestLogger logs one structured line per request.
func RequestLogger(log logrus.FieldLogger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
				"request_id": v.RequestID,
			}).Info("request")
			return nil
		},
	})
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
