package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/service"
)

func main() {
	var path string
	flag.StringVar(&path, "file", "questions.yaml", "Path to the YAML question bank")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("Failed to read seed file")
	}

	seeds, err := service.ParseQuestionSeeds(data)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("Invalid seed file")
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	questionService := service.NewQuestionService(repository.NewQuestionRepository(pool))

	fmt.Printf("=== Seeding %d Questions ===\n", len(seeds))

	n, err := questionService.Import(ctx, seeds)
	if err != nil {
		log.Fatal().Err(err).Int("written", n).Msg("Seed failed")
	}

	fmt.Printf("\nSeed completed! Successfully added %d questions.\n", n)
	fmt.Println("Sessions started from now on include them; running sessions keep their pinned set.")
}
