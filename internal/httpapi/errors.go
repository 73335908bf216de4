package httpapi

import (
	"errors"
	"net/http"

	"github.com/MarkoPoloResearchLab/internboard/internal/accounts"
	"github.com/MarkoPoloResearchLab/internboard/internal/board"
	"github.com/MarkoPoloResearchLab/internboard/internal/resume"
	"github.com/MarkoPoloResearchLab/internboard/pkg/credits"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// Ordered: the first matching target wins.
var errorMappings = []errorMapping{
	{target: credits.ErrInsufficientCredits, status: http.StatusForbidden, code: "insufficient_credits"},
	{target: credits.ErrNotAuthorized, status: http.StatusForbidden, code: "not_authorized"},
	{target: accounts.ErrRegistrationForbidden, status: http.StatusForbidden, code: "not_authorized"},
	{target: accounts.ErrAccountNotVerified, status: http.StatusForbidden, code: "account_not_verified"},
	{target: accounts.ErrInvalidCredentials, status: http.StatusUnauthorized, code: "invalid_credentials"},
	{target: board.ErrNotFound, status: http.StatusNotFound, code: "not_found"},
	{target: accounts.ErrUserNotFound, status: http.StatusNotFound, code: "not_found"},
	{target: credits.ErrAccountNotFound, status: http.StatusNotFound, code: "not_found"},
	{target: board.ErrDuplicateApplication, status: http.StatusConflict, code: "duplicate_application"},
	{target: accounts.ErrEmailTaken, status: http.StatusConflict, code: "email_taken"},
	{target: accounts.ErrInvalidOTP, status: http.StatusBadRequest, code: "invalid_otp"},
	{target: accounts.ErrInvalidEmail, status: http.StatusBadRequest, code: "invalid_request"},
	{target: accounts.ErrWeakPassword, status: http.StatusBadRequest, code: "invalid_request"},
	{target: board.ErrInvalidStatus, status: http.StatusBadRequest, code: "invalid_request"},
	{target: board.ErrInvalidPage, status: http.StatusBadRequest, code: "invalid_request"},
	{target: board.ErrInvalidInput, status: http.StatusBadRequest, code: "invalid_request"},
	{target: credits.ErrInvalidListLimit, status: http.StatusBadRequest, code: "invalid_request"},
	{target: credits.ErrInvalidAccountID, status: http.StatusBadRequest, code: "invalid_request"},
	{target: credits.ErrInvalidRole, status: http.StatusBadRequest, code: "invalid_request"},
	{target: resume.ErrInvalidResume, status: http.StatusBadRequest, code: "invalid_request"},
}

func (handler *httpHandler) writeError(ctx *gin.Context, err error) {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			ctx.JSON(mapping.status, errorResponse(mapping.code, err.Error()))
			return
		}
	}
	handler.logger.Error("request error", zap.String("path", ctx.FullPath()), zap.Error(err))
	ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "internal server error"))
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

func invalidPayload(ctx *gin.Context, err error) {
	ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", err.Error()))
}
