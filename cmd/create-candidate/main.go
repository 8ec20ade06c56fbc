package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/service"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	candidateRepo := repository.NewCandidateRepository(pool)
	authService := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Register New Candidate ===")

	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	fmt.Printf("Enter face image path relative to %s (blank to skip): ", cfg.UploadDir)
	facePath, _ := reader.ReadString('\n')
	facePath = strings.TrimSpace(facePath)

	candidate := &model.Candidate{Name: name}
	if facePath != "" {
		full := filepath.Join(cfg.UploadDir, filepath.Clean("/"+facePath))
		if _, err := os.Stat(full); err != nil {
			fmt.Printf("Error: face image not readable: %v\n", err)
			return
		}
		candidate.FaceImagePath = &facePath
	} else {
		fmt.Println("Warning: without a face image identity checks are skipped for this candidate")
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	if err := candidateRepo.Create(ctx, candidate); err != nil {
		log.Fatal().Err(err).Msg("Failed to create candidate")
	}

	token, err := authService.GenerateToken(candidate.ID, service.TokenTypeCandidate)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue token")
	}

	fmt.Printf("\nSuccess! Candidate '%s' created with ID: %d\n", candidate.Name, candidate.ID)
	fmt.Printf("Token: %s\n", token)
}
