package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/bug-snapshot-service/internal/api/dto"
	"github.com/spec-kit/bug-snapshot-service/internal/auth"
	apperrors "github.com/spec-kit/bug-snapshot-service/pkg/util"
)

// AuthHandler exchanges client API keys for bearer tokens.
type AuthHandler struct {
	keys   *auth.KeyVerifier
	tokens *auth.TokenManager
}

// NewAuthHandler constructs handler.
func NewAuthHandler(keys *auth.KeyVerifier, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{keys: keys, tokens: tokens}
}

// Token POST /auth/token.
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ClientID == "" || req.APIKey == "" {
		return apperrors.NewValidationError("client_id, api_key required", nil)
	}

	client, err := h.keys.Verify(req.ClientID, req.APIKey)
	if err != nil {
		if errors.Is(err, auth.ErrUnknownClient) {
			return apperrors.NewUnauthorized("invalid client credentials")
		}
		return err
	}

	token, expiresAt, err := h.tokens.GenerateToken(*client)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": dto.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	}})
}
