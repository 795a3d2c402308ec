package main

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cellarlot/backend/internal/app"
	"github.com/cellarlot/backend/internal/audit"
	"github.com/cellarlot/backend/internal/clock"
	v1 "github.com/cellarlot/backend/internal/controllers/v1"
	"github.com/cellarlot/backend/internal/models"
	"github.com/cellarlot/backend/internal/router"
	"github.com/cellarlot/backend/internal/sweep"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// gin uses debug as the default mode, we use release for
	// security reasons
	ginMode, ok := os.LookupEnv("GIN_MODE")
	if !ok {
		gin.SetMode("release")
	} else {
		gin.SetMode(ginMode)
	}

	// Log format can be explicitly set.
	// If it is not set, it defaults to human readable for development
	// and JSON for release
	logFormat, ok := os.LookupEnv("LOG_FORMAT")
	output := io.Writer(os.Stdout)
	if (!ok && gin.IsDebugging()) || (ok && logFormat == "human") {
		output = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if gin.IsDebugging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(output).With().Timestamp().Logger()

	dsn, ok := os.LookupEnv("DB_DSN")
	if !ok {
		// Create data directory
		dataDir := filepath.Join(".", "data")
		err := os.MkdirAll(dataDir, os.ModePerm)
		if err != nil {
			log.Fatal().Msg(err.Error())
		}

		dsn = "data/cellarlot.db?_pragma=foreign_keys(1)"
	}

	// Connect to the database and migrate all models
	err := models.Connect(dsn)
	if err != nil {
		log.Fatal().Msg(err.Error())
	}

	// Wire the core components. Event recording happens inside the
	// mutating transactions via the database sink.
	events := audit.NewDatabaseSink()
	clk := clock.NewSystem()

	ledger := app.NewAllocationLedger(models.DB, events, clk)
	cases := app.NewCaseEntitlementTracker(models.DB, events, clk)
	vouchers := app.NewVoucherLifecycle(models.DB, events, clk, ledger, cases)
	transfers := app.NewTransferCoordinator(models.DB, events, clk, cases)

	co := v1.Controller{
		DB:          models.DB,
		Allocations: ledger,
		Vouchers:    vouchers,
		Transfers:   transfers,
		Cases:       cases,
	}

	r, err := router.Config()
	if err != nil {
		log.Fatal().Msg(err.Error())
	}
	router.AttachRoutes(co, r.Group("/"))

	// Background sweep for transfer expiry
	interval := time.Minute
	if raw, ok := os.LookupEnv("SWEEP_INTERVAL"); ok {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatal().Msgf("SWEEP_INTERVAL is not a valid duration: %v", err)
		}
		interval = parsed
	}

	sweeper := sweep.New(transfers, interval)
	sweeper.Start()
	defer sweeper.Stop()

	if err := r.Run(); err != nil {
		log.Fatal().Msg(err.Error())
	}
}
