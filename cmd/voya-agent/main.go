package main

import (
	"log"
	"log/slog"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/voyahq/voya-agent/agent"
	"github.com/voyahq/voya-agent/config"
	"github.com/voyahq/voya-agent/controllers"
	"github.com/voyahq/voya-agent/memory"
	"github.com/voyahq/voya-agent/routes"
	"github.com/voyahq/voya-agent/viator"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	store := memory.NewStore(db)
	if err := store.Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	viatorClient := viator.NewClient(cfg.ViatorAPIKey, cfg.ViatorBaseURL, cfg.ViatorAffiliateID)
	assistant := agent.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, []agent.Tool{
		agent.NewTourSearch(viatorClient, store),
	})

	router := routes.Setup(
		controllers.NewChatController(store, assistant, cfg.ChatHistoryLimit),
		controllers.NewConversationController(store),
		controllers.NewTourController(viatorClient, store),
	)

	slog.Info("Server starting", "port", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
