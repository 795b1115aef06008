package httpapi

import (
	"errors"
	"net/http"

	"github.com/donets/jtrack/internal/common"
	"github.com/donets/jtrack/internal/protocol"
	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
}

func errorBody(msg string) ErrorResponse {
	return ErrorResponse{Error: msg}
}

func writeError(c *gin.Context, err error) {
	var ve *protocol.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: ve.Fields})
	case errors.Is(err, common.ErrForbidden):
		c.JSON(http.StatusForbidden, errorBody("forbidden"))
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		c.JSON(http.StatusUnauthorized, errorBody("unauthorized"))
	case errors.Is(err, common.ErrorNotFound):
		c.JSON(http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, common.ErrStorageDisabled):
		c.JSON(http.StatusNotImplemented, errorBody(err.Error()))
	case errors.Is(err, common.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "store unavailable", Retryable: true})
	default:
		c.JSON(http.StatusInternalServerError, errorBody("internal error"))
	}
}
