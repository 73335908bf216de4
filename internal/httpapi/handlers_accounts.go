package httpapi

import (
	"net/http"

	"github.com/MarkoPoloResearchLab/internboard/internal/accounts"
	"github.com/MarkoPoloResearchLab/internboard/pkg/credits"
	"github.com/gin-gonic/gin"
)

func (handler *httpHandler) handleRegister(role credits.Role) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var request registerRequest
		if err := ctx.ShouldBindJSON(&request); err != nil {
			invalidPayload(ctx, err)
			return
		}
		user, err := handler.accounts.Register(ctx.Request.Context(), accounts.Registration{
			Role:              role,
			Email:             request.Email,
			Password:          request.Password,
			FirstName:         request.FirstName,
			LastName:          request.LastName,
			PhoneNumber:       request.PhoneNumber,
			Address:           request.Address,
			Bio:               request.Bio,
			ProfilePictureURL: request.ProfilePictureURL,
		})
		if err != nil {
			handler.writeError(ctx, err)
			return
		}
		ctx.JSON(http.StatusCreated, gin.H{
			"id":      user.ID.String(),
			"email":   user.Email,
			"role":    user.Role.String(),
			"message": "verification code sent",
		})
	}
}

func (handler *httpHandler) handleVerifyEmail(ctx *gin.Context) {
	var request verifyEmailRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		invalidPayload(ctx, err)
		return
	}
	if err := handler.accounts.VerifyEmail(ctx.Request.Context(), request.Email, request.OTP); err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "email verified"})
}

func (handler *httpHandler) handleLogin(ctx *gin.Context) {
	var request loginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		invalidPayload(ctx, err)
		return
	}
	user, session, err := handler.accounts.Login(ctx.Request.Context(), request.Email, request.Password)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(handler.cfg.SessionCookieName, session.Token, int(handler.accounts.SessionTTL().Seconds()), "/", "", handler.cfg.CookieSecure, true)
	ctx.JSON(http.StatusOK, newSessionPayload(user, session))
}

func (handler *httpHandler) handleLogout(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(handler.cfg.SessionCookieName, "", -1, "/", "", handler.cfg.CookieSecure, true)
	ctx.Status(http.StatusNoContent)
}

func (handler *httpHandler) handleForgotPassword(ctx *gin.Context) {
	var request forgotPasswordRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		invalidPayload(ctx, err)
		return
	}
	if err := handler.accounts.ForgotPassword(ctx.Request.Context(), request.Email); err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "if the account exists a reset code has been sent"})
}

func (handler *httpHandler) handleResetPassword(ctx *gin.Context) {
	var request resetPasswordRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		invalidPayload(ctx, err)
		return
	}
	if err := handler.accounts.ResetPassword(ctx.Request.Context(), request.Email, request.OTP, request.NewPassword); err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

func (handler *httpHandler) handleMe(ctx *gin.Context) {
	user, err := handler.board.Me(ctx.Request.Context(), currentAccount(ctx))
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newUserPayload(user))
}

func (handler *httpHandler) handleCredits(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, newCreditsPayload(currentAccount(ctx), handler.credits.Policy()))
}

func (handler *httpHandler) handleCreditHistory(ctx *gin.Context) {
	var query historyQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		invalidPayload(ctx, err)
		return
	}
	if query.Limit == 0 {
		query.Limit = defaultHistoryLimit
	}
	events, err := handler.credits.History(ctx.Request.Context(), currentAccount(ctx).ID, query.Limit)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"events": newEventPayloads(events)})
}

func (handler *httpHandler) handleTopUp(ctx *gin.Context) {
	account, err := handler.credits.TopUp(ctx.Request.Context(), currentAccount(ctx).ID)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newCreditsPayload(account, handler.credits.Policy()))
}
