package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	roerrors "github.com/rosterhq/control-plane/internal/errors"
)

// writeError maps a control plane error Kind to an HTTP status and JSON
// body, per spec §6: 409 already-exists, 404 not-found or not-ready, 400
// invalid-input, 500 unexpected.
func writeError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch roerrors.KindOf(err) {
	case roerrors.KindAlreadyExists:
		status = http.StatusConflict
	case roerrors.KindNotFound, roerrors.KindNotReady:
		status = http.StatusNotFound
	case roerrors.KindInvalidEvent, roerrors.KindInvalidResource, roerrors.KindWebhookMalformed, roerrors.KindDeserialization:
		status = http.StatusBadRequest
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
