package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// errorCode maps a service error to its HTTP status and API code.
func errorCode(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrSessionNotActive):
		return http.StatusConflict, response.ErrSessionNotActive
	case errors.Is(err, service.ErrDecodeFailure):
		return http.StatusUnprocessableEntity, response.ErrDecodeFailure
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// failFromError writes the error envelope for err. Unexpected errors are
// logged; expected ones are part of normal operation.
func failFromError(c *gin.Context, log zerolog.Logger, err error) {
	status, code := errorCode(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	response.Fail(c, status, code)
}
