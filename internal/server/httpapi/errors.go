package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/cryptox"
	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{common.ErrValidation, http.StatusBadRequest, "VALIDATION"},
	{common.ErrorNotFound, http.StatusNotFound, "NOT_FOUND"},
	{common.ErrorUnauthorized, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{common.ErrInvalidToken, http.StatusUnauthorized, "INVALID_TOKEN"},
	{common.ErrTokenExpired, http.StatusUnauthorized, "TOKEN_EXPIRED"},
	{common.ErrRefreshTokenExpired, http.StatusUnauthorized, "REFRESH_TOKEN_EXPIRED"},
	{common.ErrDuplicateAccount, http.StatusConflict, "DUPLICATE_ACCOUNT"},
	{common.ErrDelivery, http.StatusBadGateway, "DELIVERY_FAILED"},
	{common.ErrCodeExpired, http.StatusBadRequest, "CODE_EXPIRED"},
	{common.ErrCodeInvalid, http.StatusBadRequest, "CODE_INVALID"},
	{common.ErrAttemptsExhausted, http.StatusTooManyRequests, "ATTEMPTS_EXHAUSTED"},
	{common.ErrCodeAlreadyUsed, http.StatusBadRequest, "CODE_ALREADY_USED"},
	{common.ErrActionAlreadyCompleted, http.StatusBadRequest, "ACTION_ALREADY_COMPLETED"},
	{common.ErrMasterSecretInvalid, http.StatusUnauthorized, "MASTER_PASSWORD_INVALID"},
	{common.ErrMasterSecretRequired, http.StatusForbidden, "MASTER_PASSWORD_REQUIRED"},
	{common.ErrMasterSecretLocked, http.StatusLocked, "MASTER_PASSWORD_LOCKED"},
	{common.ErrVersionConflict, http.StatusConflict, "CONFLICT"},
}

// statusOf maps a service error to its status, code and client message.
func statusOf(err error) (int, errorBody) {
	var decErr *common.DecryptionError
	if errors.As(err, &decErr) {
		return http.StatusInternalServerError, errorBody{Message: decErr.Error(), Code: "DECRYPTION_FAILED"}
	}
	if errors.Is(err, cryptox.ErrCrypto) {
		return http.StatusInternalServerError, errorBody{Message: "stored data could not be decrypted", Code: "CRYPTO_ERROR"}
	}
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			msg := e.err.Error()
			if e.err == common.ErrValidation {
				msg = strings.TrimPrefix(err.Error(), common.ErrValidation.Error()+": ")
			}
			return e.status, errorBody{Message: msg, Code: e.code}
		}
	}
	return http.StatusInternalServerError, errorBody{Message: "internal error", Code: "INTERNAL"}
}

func (s *Server) fail(c *gin.Context, err error) {
	status, body := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, body)
}

func (s *Server) abort(c *gin.Context, err error) {
	status, body := statusOf(err)
	c.AbortWithStatusJSON(status, body)
}

// badRequest reports a body that could not be bound.
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorBody{Message: err.Error(), Code: "VALIDATION"})
}
