package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"automation-service/internal/engine"
	"automation-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CronHandler serves the scheduled sweep entry points, protected by a shared
// bearer secret instead of user JWTs.
type CronHandler struct {
	Engine *engine.Engine
	Secret string
}

// NewCronHandler creates a CronHandler.
func NewCronHandler(eng *engine.Engine, secret string) *CronHandler {
	return &CronHandler{Engine: eng, Secret: secret}
}

func (h *CronHandler) authorized(c echo.Context) bool {
	if h.Secret == "" {
		return false
	}
	authHeader := c.Request().Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(parts[1]), []byte(h.Secret)) == 1
}

// InvoiceOverdueSweep handles the daily overdue-invoice sweep
// (GET /cron/invoice-overdue)
func (h *CronHandler) InvoiceOverdueSweep(c echo.Context) error {
	log := logger.FromContext(c)
	if !h.authorized(c) {
		log.Warn("Unauthorized cron request")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid cron secret"})
	}

	summary, err := h.Engine.RunOverdueInvoiceSweep(c.Request().Context())
	if err != nil {
		log.Error("Overdue invoice sweep failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed"})
	}
	return c.JSON(http.StatusOK, summary)
}
