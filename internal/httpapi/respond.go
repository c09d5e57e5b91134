// Package httpapi is the thin gin surface exposing spec §6's RPC
// operations, grounded on apps/api/server's route-registration shape
// and apps/api/handlers' JSON response conventions.
package httpapi

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/basesub/subscriptions/internal/domain"
)

// errorResponse mirrors the teacher's ErrorResponse{Error string}
// shape, extended with a machine-readable code so merchants can branch
// on domain.ErrorCode without string-matching the message.
type errorResponse struct {
	Error struct {
		Code    domain.ErrorCode `json:"code"`
		Message string           `json:"message"`
	} `json:"error"`
}

// respondError maps a core error to its HTTP representation. A
// *domain.HTTPError carries its own status/code/message; anything
// else is treated as an unexpected internal failure.
func respondError(c *gin.Context, err error) {
	var httpErr *domain.HTTPError
	if errors.As(err, &httpErr) {
		resp := errorResponse{}
		resp.Error.Code = httpErr.Code
		resp.Error.Message = httpErr.Message
		c.JSON(httpErr.Status, resp)
		return
	}

	resp := errorResponse{}
	resp.Error.Code = domain.ErrInternal
	resp.Error.Message = "an internal error occurred"
	c.JSON(500, resp)
}
