package main

import (
	"time"

	"github.com/cppla/fallenleaves/ai"
	"github.com/cppla/fallenleaves/config"
	"github.com/cppla/fallenleaves/routes"
	"github.com/cppla/fallenleaves/services"
	"github.com/cppla/fallenleaves/store"
	"github.com/cppla/fallenleaves/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db := config.InitDatabase(store.Models()...)
	st := store.New(db)

	completer := ai.NewClient(ai.Config{
		BaseURL:     cfg.OpenAIBaseURL,
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.OpenAIModel,
		MaxTokens:   cfg.OpenAIMaxTokens,
		Temperature: cfg.OpenAITemperature,
		Timeout:     time.Duration(cfg.OpenAITimeoutSec) * time.Second,
	}, ai.WithLogger(utils.Logger.Named("ai")))

	svc := services.New(st, completer, utils.Logger.Named("services"), services.Options{
		SeedGoal:          cfg.InsightSeedGoal,
		RegenerateLockTTL: time.Duration(cfg.RegenerateLockTTLSec) * time.Second,
		DashboardTTL:      time.Duration(cfg.DashboardCacheTTLSec) * time.Second,
		GenerationTimeout: completer.Budget(),
	})

	r := routes.SetupRouter(db, svc)

	if utils.GetRedis() == nil {
		utils.Sugar.Info("redis not configured, cache/locks/token revocation use in-process fallbacks")
	}

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
