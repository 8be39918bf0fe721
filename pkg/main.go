package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	pkg "github.com/openballot/ballotbox/pkg/internal"
	"github.com/openballot/ballotbox/pkg/internal/cache"
	"github.com/openballot/ballotbox/pkg/internal/database"
	"github.com/openballot/ballotbox/pkg/internal/http"
	"github.com/openballot/ballotbox/pkg/internal/limiter"
	"github.com/openballot/ballotbox/pkg/internal/queue"
	"github.com/openballot/ballotbox/pkg/internal/services"
	"github.com/openballot/ballotbox/pkg/internal/stream"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
}

func main() {
	// Booting screen
	fmt.Println(color.YellowString(" ____        _ _       _   ____\n| __ )  __ _| | | ___ | |_| __ )  _____  __\n|  _ \\ / _` | | |/ _ \\| __|  _ \\ / _ \\ \\/ /\n| |_) | (_| | | | (_) | |_| |_) | (_) >  <\n|____/ \\__,_|_|_|\\___/ \\__|____/ \\___/_/\\_\\"))
	fmt.Printf("%s v%s\n", color.New(color.FgHiYellow).Add(color.Bold).Sprintf("BallotBox"), pkg.AppVersion)
	fmt.Printf("The vote casting consistency core\n")
	color.HiBlack("=====================================================\n")

	// Configure settings
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("settings")
	viper.SetConfigType("toml")

	// Load settings
	if err := viper.ReadInConfig(); err != nil {
		log.Panic().Err(err).Msg("An error occurred when loading settings.")
	}

	// Connect to database
	if err := database.NewGorm(); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when connect to database.")
	} else if err := database.RunMigration(database.C); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when running database auto migration.")
	}

	// Results cache
	if err := cache.NewStore(); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when initializing the cache store.")
	}

	ctx, shutdown := context.WithCancel(context.Background())
	defer shutdown()

	// Rate limiter: redis when configured, single-node fallback otherwise
	if viper.GetString("redis.address") != "" {
		redisLimiter, err := limiter.NewRedisLimiter(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("An error occurred when connecting to redis.")
		}
		defer redisLimiter.Close()
		services.Limiter = redisLimiter
	} else {
		log.Warn().Msg("No redis address configured, falling back to the in-process rate limiter.")
		services.Limiter = limiter.NewMemoryLimiter()
	}

	// Vote event stream (optional)
	if publisher := stream.NewPublisher(); publisher != nil {
		defer publisher.Close()
		services.Streams = publisher
		log.Info().Msg("Vote event stream enabled.")
	}

	// External sync worker
	go queue.NewWorker(queue.NewHTTPDeliverer()).Run(ctx)

	// Configure timed tasks
	quartz := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&log.Logger)))
	quartz.AddFunc("@every 60m", services.DoAutoDatabaseCleanup)
	quartz.Start()

	// Server
	go http.NewServer().Listen()

	// Messages
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	quartz.Stop()
	shutdown()
}
