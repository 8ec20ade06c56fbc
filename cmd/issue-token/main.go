package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/service"
)

func main() {
	var (
		userID    int
		tokenType string
	)
	flag.IntVar(&userID, "id", 0, "Candidate or reviewer id")
	flag.StringVar(&tokenType, "type", string(service.TokenTypeReviewer), "Token type: candidate or reviewer")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	tt := service.TokenType(tokenType)
	if !tt.Valid() || userID <= 0 {
		flag.Usage()
		os.Exit(2)
	}

	token, err := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry).GenerateToken(userID, tt)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue token")
	}
	fmt.Println(token)
}
