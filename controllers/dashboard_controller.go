package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/fallenleaves/services"
	"github.com/cppla/fallenleaves/utils"
)

// DashboardController provides the per-user overview of habits and insight progress.
type DashboardController struct {
	dashboard *services.DashboardService
}

// NewDashboardController creates a new DashboardController instance.
func NewDashboardController(dashboard *services.DashboardService) *DashboardController {
	return &DashboardController{dashboard: dashboard}
}

// GetDashboard returns aggregate progress for the current user.
func (d *DashboardController) GetDashboard(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	dash, err := d.dashboard.Dashboard(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, dash)
}
