package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthAccount represents an authenticated account from JWT
type AuthAccount struct {
	AccountID uuid.UUID `json:"account_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
}

// contextKey is used for storing the account in context
type contextKey string

const (
	accountContextKey contextKey = "authenticated_account"
)

// JWTConfig holds the configuration for JWT middleware
type JWTConfig struct {
	Secret    string
	Logger    *zap.Logger
	SkipPaths []string // Paths to skip JWT validation
}

// JWTMiddleware creates a middleware that validates bearer tokens issued by
// the identity service. The account id comes from the "sub" claim.
func JWTMiddleware(config JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Skip JWT validation for certain paths
			path := c.Request().URL.Path
			for _, skipPath := range config.SkipPaths {
				if strings.HasPrefix(path, skipPath) {
					return next(c)
				}
			}

			// Extract token from Authorization header
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				config.Logger.Warn("Missing authorization header",
					zap.String("path", path),
					zap.String("method", c.Request().Method))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Authorization header required",
					"code":  "MISSING_AUTH_HEADER",
				})
			}

			// Check Bearer prefix
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				config.Logger.Warn("Invalid authorization header format",
					zap.String("path", path))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Invalid authorization header format. Expected: Bearer <token>",
					"code":  "INVALID_AUTH_FORMAT",
				})
			}

			// Parse and validate JWT token
			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				// Verify signing method
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(config.Secret), nil
			})

			if err != nil {
				config.Logger.Warn("JWT validation failed",
					zap.Error(err),
					zap.String("path", path))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Invalid or expired token",
					"code":  "INVALID_TOKEN",
				})
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok || !token.Valid {
				config.Logger.Warn("Invalid JWT claims",
					zap.String("path", path))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Invalid token claims",
					"code":  "INVALID_CLAIMS",
				})
			}

			sub, _ := claims["sub"].(string)
			accountID, err := uuid.Parse(sub)
			if err != nil {
				config.Logger.Warn("Invalid account id in token subject",
					zap.String("sub", sub),
					zap.String("path", path))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Token subject must be a valid account id",
					"code":  "INVALID_ACCOUNT_ID_FORMAT",
				})
			}

			// Extract optional fields from JWT claims
			email, _ := claims["email"].(string)
			role, _ := claims["role"].(string)

			authAccount := &AuthAccount{
				AccountID: accountID,
				Email:     email,
				Role:      role,
			}

			// Store account in request context
			ctx := WithAccount(c.Request().Context(), authAccount)
			c.SetRequest(c.Request().WithContext(ctx))

			c.Set("account_id", accountID.String())

			config.Logger.Debug("Account authenticated successfully",
				zap.String("account_id", accountID.String()),
				zap.String("path", path))

			return next(c)
		}
	}
}

// WithAccount returns a context carrying the authenticated account.
func WithAccount(ctx context.Context, account *AuthAccount) context.Context {
	return context.WithValue(ctx, accountContextKey, account)
}

// GetAccountFromContext extracts the authenticated account from the request context
func GetAccountFromContext(c echo.Context) (*AuthAccount, error) {
	account, ok := c.Request().Context().Value(accountContextKey).(*AuthAccount)
	if !ok || account == nil {
		return nil, fmt.Errorf("no authenticated account found in context")
	}
	return account, nil
}

// RequireAuth is a helper function to get the account or return an error response
func RequireAuth(c echo.Context) (*AuthAccount, error) {
	account, err := GetAccountFromContext(c)
	if err != nil {
		return nil, c.JSON(http.StatusUnauthorized, echo.Map{
			"error": "Authentication required",
			"code":  "AUTH_REQUIRED",
		})
	}
	return account, nil
}
