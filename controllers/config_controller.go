package controllers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/fallenleaves/config"
	"github.com/cppla/fallenleaves/services"
	"github.com/cppla/fallenleaves/utils"
)

// ConfigController serves static catalog data and public feature flags.
type ConfigController struct {
	habits *services.HabitService
}

func NewConfigController(habits *services.HabitService) *ConfigController {
	return &ConfigController{habits: habits}
}

// GetHabitKinds returns the trackable habit kinds with description and unit.
func (c *ConfigController) GetHabitKinds(ctx *gin.Context) {
	utils.Success(ctx, gin.H{
		"items": c.habits.Catalog(),
		"goals": []string{"increase", "maintain", "reduce"},
	})
}

// GetFeatures tells clients whether insight generation is available.
func (c *ConfigController) GetFeatures(ctx *gin.Context) {
	cfg := config.Get()
	utils.Success(ctx, gin.H{
		"insight_generation": strings.TrimSpace(cfg.OpenAIAPIKey) != "",
		"insight_seed_goal":  cfg.InsightSeedGoal,
	})
}
