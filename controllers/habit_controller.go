package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/fallenleaves/services"
	"github.com/cppla/fallenleaves/utils"
)

// HabitController serves habits and their entries.
type HabitController struct {
	habits    *services.HabitService
	evaluator *services.Evaluator
}

// NewHabitController creates a HabitController.
func NewHabitController(habits *services.HabitService, evaluator *services.Evaluator) *HabitController {
	return &HabitController{habits: habits, evaluator: evaluator}
}

// ListHabits returns the user's habits with entries and active insights.
func (h *HabitController) ListHabits(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	habits, err := h.habits.ListHabits(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": habits})
}

// CreateHabit starts tracking a habit kind with a goal direction.
func (h *HabitController) CreateHabit(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req struct {
		HabitName string `json:"habit_name"`
		HabitGoal string `json:"habit_goal"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid request payload")
		return
	}
	habit, err := h.habits.CreateHabit(ctx.Request.Context(), userID, req.HabitName, req.HabitGoal)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, habit)
}

// GetHabit returns one habit.
func (h *HabitController) GetHabit(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	habitID, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	habit, err := h.habits.GetHabit(ctx.Request.Context(), userID, habitID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, habit)
}

// UpdateGoal changes the goal direction of a habit.
func (h *HabitController) UpdateGoal(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	habitID, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		HabitGoal string `json:"habit_goal"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid request payload")
		return
	}
	if err := h.habits.UpdateHabitGoal(ctx.Request.Context(), userID, habitID, req.HabitGoal); err != nil {
		respondError(ctx, err)
		return
	}
	habit, err := h.habits.GetHabit(ctx.Request.Context(), userID, habitID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, habit)
}

// AddEntry records an entry and reports its effect on the active insight. A failed
// insight generation still answers 201: the entry is stored and the failure is in the body.
func (h *HabitController) AddEntry(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	habitID, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	var req services.EntryInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid request payload")
		return
	}
	res, err := h.evaluator.RecordEntry(ctx.Request.Context(), userID, habitID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, res)
}

// EditEntries rewrites values, and optionally dates, of existing entries.
func (h *HabitController) EditEntries(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	habitID, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Entries []struct {
			ID    uint       `json:"id"`
			Value float64    `json:"value"`
			Date  *time.Time `json:"date"`
		} `json:"entries"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid request payload")
		return
	}
	edits := make([]services.EntryEdit, 0, len(req.Entries))
	for _, e := range req.Entries {
		edits = append(edits, services.EntryEdit{ID: e.ID, Value: e.Value, Date: e.Date})
	}
	res, err := h.evaluator.EditEntries(ctx.Request.Context(), userID, habitID, edits)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, res)
}

// EntriesByInsight lists the habit's entries grouped by the insight they count towards.
func (h *HabitController) EntriesByInsight(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	habitID, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	groups, err := h.habits.PartitionEntries(ctx.Request.Context(), userID, habitID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"groups": groups})
}
