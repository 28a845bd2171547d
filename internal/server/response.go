package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/metcalfc/commonplace/internal/store"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

var errStoreUnavailable = errors.New("document store unavailable")

// respondStoreError maps a document store failure onto 404 or 500. Other
// failures are attached to the context for the request log and never shown
// to the client.
func respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		RespondError(c, http.StatusNotFound, "not_found", err)
		return
	}
	_ = c.Error(err)
	RespondError(c, http.StatusInternalServerError, "store_error", errStoreUnavailable)
}
