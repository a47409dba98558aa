package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"responder_server/pkg/apperr"
	"responder_server/pkg/response"
)

// TokenExchanger is the OAuth slice of the mail provider.
type TokenExchanger interface {
	AuthURL(state string) string
	ExchangeAndStore(ctx context.Context, account, code string) error
}

// OAuthHandler runs the one-time Gmail consent flow for a monitored
// account. The account address travels in the OAuth state parameter.
type OAuthHandler struct {
	exchanger TokenExchanger
}

func NewOAuthHandler(exchanger TokenExchanger) *OAuthHandler {
	return &OAuthHandler{exchanger: exchanger}
}

func (h *OAuthHandler) Register(router fiber.Router) {
	oauth := router.Group("/oauth")
	oauth.Get("/url", h.AuthURL)
	oauth.Get("/callback", h.Callback)
}

func (h *OAuthHandler) AuthURL(c *fiber.Ctx) error {
	account := c.Query("account")
	if account == "" {
		return apperr.MissingField("account")
	}
	return response.OK(c, fiber.Map{
		"auth_url": h.exchanger.AuthURL(account),
	})
}

func (h *OAuthHandler) Callback(c *fiber.Ctx) error {
	code := c.Query("code")
	account := c.Query("state")
	if code == "" {
		return apperr.MissingField("code")
	}
	if account == "" {
		return apperr.MissingField("state")
	}

	if err := h.exchanger.ExchangeAndStore(c.Context(), account, code); err != nil {
		return apperr.ProviderError("oauth exchange", err)
	}
	return response.OK(c, fiber.Map{"account": account, "authorized": true})
}
