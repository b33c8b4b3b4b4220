package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/fallenleaves/ai"
	"github.com/cppla/fallenleaves/middleware"
	"github.com/cppla/fallenleaves/services"
	"github.com/cppla/fallenleaves/utils"
)

// currentUserID reads the authenticated user, answering 401 when it is missing.
func currentUserID(ctx *gin.Context) (uint, bool) {
	id, ok := middleware.UserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return 0, false
	}
	return id, true
}

// idParam parses a positive numeric path parameter, answering 400 when it is invalid.
func idParam(ctx *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(ctx.Param(name))
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || n == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid "+name)
		return 0, false
	}
	return uint(n), true
}

// respondError maps service errors onto the JSON envelope.
func respondError(ctx *gin.Context, err error) {
	var ve *services.ValidationError
	var se *ai.StatusError
	switch {
	case errors.As(err, &ve):
		utils.ErrorWithData(ctx, http.StatusBadRequest, 40020, "validation failed", ve)
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40420, "habit not found")
	case errors.Is(err, services.ErrDuplicateHabit):
		utils.Error(ctx, http.StatusConflict, 40920, err.Error())
	case errors.Is(err, services.ErrActiveInsightExists):
		utils.Error(ctx, http.StatusConflict, 40921, err.Error())
	case errors.Is(err, services.ErrGenerationInProgress):
		utils.Error(ctx, http.StatusConflict, 40922, err.Error())
	case errors.Is(err, services.ErrMissingAPIKey):
		utils.Error(ctx, http.StatusServiceUnavailable, 50320, "insight generation is not configured")
	case errors.Is(err, services.ErrInsightParse):
		utils.Error(ctx, http.StatusBadGateway, 50220, "insight generation failed, try again")
	case errors.Is(err, ai.ErrRateLimited):
		utils.Error(ctx, http.StatusBadGateway, 50221, "insight service is rate limited, try again later")
	case errors.As(err, &se), errors.Is(err, services.ErrGenerationFailed):
		utils.Error(ctx, http.StatusBadGateway, 50222, "insight service unavailable, try again")
	default:
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50020, "internal error")
	}
}
