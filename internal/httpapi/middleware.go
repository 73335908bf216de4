package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/internboard/internal/obslog"
	"github.com/MarkoPoloResearchLab/internboard/pkg/credits"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		requestID := ctx.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx.Header(requestIDHeader, requestID)
		ctx.Request = ctx.Request.WithContext(obslog.WithRequestID(ctx.Request.Context(), requestID))

		startedAt := time.Now()
		ctx.Next()

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("latency", time.Since(startedAt)),
		}
		if ctx.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("request failed", fields...)
			return
		}
		logger.Info("request", fields...)
	}
}

// resolveAccount loads the caller's account and applies any due refill before the handler runs.
func (handler *httpHandler) resolveAccount(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	accountID, err := credits.NewAccountID(claims.GetUserID())
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid session"))
		return
	}
	account, err := handler.credits.Refresh(ctx.Request.Context(), accountID)
	if errors.Is(err, credits.ErrAccountNotFound) {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "account no longer exists"))
		return
	}
	if err != nil {
		handler.writeError(ctx, err)
		ctx.Abort()
		return
	}
	ctx.Set(accountContextKey, account)
	ctx.Next()
}

func getClaims(ctx *gin.Context) *sessionvalidator.Claims {
	claimsValue, ok := ctx.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*sessionvalidator.Claims)
	return claims
}

func currentAccount(ctx *gin.Context) credits.Account {
	value, _ := ctx.Get(accountContextKey)
	account, _ := value.(credits.Account)
	return account
}
