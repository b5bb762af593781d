package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"rentals/internal/app/commands"
	"rentals/internal/app/queries"
	authsvc "rentals/internal/app/services/auth"
	"rentals/internal/domain/shared/errs"
)

var kindStatus = map[errs.Kind]int{
	errs.KindValidation:        http.StatusBadRequest,
	errs.KindNotFound:          http.StatusNotFound,
	errs.KindForbidden:         http.StatusForbidden,
	errs.KindConflict:          http.StatusConflict,
	errs.KindInvalidTransition: http.StatusUnprocessableEntity,
}

// StatusFor maps an application error to the HTTP status it is reported with.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, authsvc.ErrInvalidCredentials),
		errors.Is(err, authsvc.ErrInvalidToken),
		errors.Is(err, authsvc.ErrTokenRequired):
		return http.StatusUnauthorized
	case errors.Is(err, commands.ErrHandlerNotFound), errors.Is(err, queries.ErrHandlerNotFound):
		return http.StatusNotImplemented
	}
	if kind, ok := errs.KindOf(err); ok {
		if status, found := kindStatus[kind]; found {
			return status
		}
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		if logger != nil {
			logger.Error("request failed", "path", c.FullPath(), "err", err)
		}
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	body := gin.H{"error": err.Error()}
	if kind, ok := errs.KindOf(err); ok {
		body["kind"] = string(kind)
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": string(errs.KindValidation)})
}

func parsePositiveInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
