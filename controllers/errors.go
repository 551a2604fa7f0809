package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"acronym-restful/auth"
	"acronym-restful/services"

	restful "github.com/emicklei/go-restful/v3"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-2xx JSON answer.
type ErrorResponse struct {
	Message string `json:"message"`
}

func writeError(response *restful.Response, status int, message string) {
	_ = response.WriteHeaderAndJson(status, ErrorResponse{Message: message}, restful.MIME_JSON)
}

// handleServiceError translates service errors to HTTP responses.
// Internal errors are logged and answered with a generic message.
func handleServiceError(response *restful.Response, err error, logger *zap.Logger) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		writeError(response, http.StatusBadRequest, err.Error())
	case auth.IsAuthError(err):
		writeError(response, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, services.ErrForbidden):
		writeError(response, http.StatusForbidden, "Forbidden")
	case errors.Is(err, services.ErrNotFound):
		writeError(response, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrConflict):
		writeError(response, http.StatusConflict, err.Error())
	default:
		logger.Error("Unhandled service error", zap.Error(err))
		writeError(response, http.StatusInternalServerError, "An internal error occurred")
	}
}

// uintPathParameter parses a numeric path parameter. It writes a 400 and
// returns false when the value is not a positive integer.
func uintPathParameter(request *restful.Request, response *restful.Response, name string) (uint, bool) {
	id, err := strconv.ParseUint(request.PathParameter(name), 10, 32)
	if err != nil || id == 0 {
		writeError(response, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}
