package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/fallenleaves/models"
	"github.com/cppla/fallenleaves/services"
	"github.com/cppla/fallenleaves/utils"
)

// InsightController serves insights.
type InsightController struct {
	insights *services.InsightService
}

// NewInsightController creates an InsightController.
func NewInsightController(insights *services.InsightService) *InsightController {
	return &InsightController{insights: insights}
}

// insightView adds display fields to an insight.
type insightView struct {
	models.Insight
	InsightHTML string  `json:"insight_html"`
	Percent     float64 `json:"percent"`
}

func presentInsight(in *models.Insight) *insightView {
	if in == nil {
		return nil
	}
	return &insightView{
		Insight:     *in,
		InsightHTML: utils.RenderInsightHTML(in.InsightText),
		Percent:     in.Percent(),
	}
}

// ListInsights lists the user's insights, filtered by ?status=active|completed|all.
func (c *InsightController) ListInsights(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	list, err := c.insights.ListInsights(ctx.Request.Context(), userID, ctx.Query("status"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	items := make([]*insightView, 0, len(list))
	for i := range list {
		items = append(items, presentInsight(&list[i]))
	}
	utils.Success(ctx, gin.H{"items": items})
}

// ActiveInsight returns the habit's active insight or its pending state.
func (c *InsightController) ActiveInsight(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	habitID, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	state, err := c.insights.ActiveInsight(ctx.Request.Context(), userID, habitID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"habit_id": state.HabitID,
		"insight":  presentInsight(state.Insight),
		"pending":  state.Pending,
	})
}

// Regenerate retries generation for a habit left without an active insight.
func (c *InsightController) Regenerate(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	habitID, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	insight, err := c.insights.RegenerateInsight(ctx.Request.Context(), userID, habitID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, presentInsight(insight))
}
