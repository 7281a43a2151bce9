package main

import (
	"fmt"
	"os"

	"github.com/nurpe/meter-measures/internal/config"
	"github.com/nurpe/meter-measures/internal/db"
	"github.com/nurpe/meter-measures/internal/excel"
	"github.com/nurpe/meter-measures/internal/gemini"
	httphandler "github.com/nurpe/meter-measures/internal/http"
	"github.com/nurpe/meter-measures/internal/logger"
	"github.com/nurpe/meter-measures/internal/pdf"
	"github.com/nurpe/meter-measures/internal/repository"
	"github.com/nurpe/meter-measures/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	measurementRepo := repository.NewMeasurementRepository(database)
	extractor := gemini.New(cfg.Gemini)
	excelGenerator := excel.NewGenerator()
	pdfGenerator := pdf.NewGenerator()

	measurementService := service.NewMeasurementService(measurementRepo, extractor, excelGenerator, pdfGenerator)

	handler := httphandler.NewHandler(measurementService, log)
	router := httphandler.NewRouter(handler, cfg.Environment, cfg.CORS.AllowedOrigins)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting measures service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
