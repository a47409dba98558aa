package http

import (
	"github.com/gofiber/fiber/v2"

	"responder_server/core/port/out"
	"responder_server/pkg/apperr"
	"responder_server/pkg/response"
)

// StatsHandler reports per-account processing counters from the log store.
type StatsHandler struct {
	logs out.LogRepository
}

func NewStatsHandler(logs out.LogRepository) *StatsHandler {
	return &StatsHandler{logs: logs}
}

func (h *StatsHandler) Register(router fiber.Router) {
	router.Get("/stats/:account", h.AccountStats)
}

func (h *StatsHandler) AccountStats(c *fiber.Ctx) error {
	account := c.Params("account")
	if account == "" {
		return apperr.MissingField("account")
	}

	counts, err := h.logs.CountByAction(c.Context(), account)
	if err != nil {
		return apperr.DatabaseError("count log entries", err)
	}

	return response.OK(c, fiber.Map{
		"account": account,
		"actions": counts,
	})
}
