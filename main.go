package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sincrongrupos/cache"
	"sincrongrupos/config"
	"sincrongrupos/controllers"
	"sincrongrupos/db"
	"sincrongrupos/router"
	"sincrongrupos/tools"
	"sincrongrupos/workers"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v82"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("LOG_PRETTY") == "1" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}
	conf := config.Get(configPath)

	db.SetConfigurations(conf)
	database, err := db.Connect()
	if err != nil {
		log.Fatal().Err(err).Msg("falha ao conectar no banco")
	}
	defer database.Close()

	stripe.Key = conf.Stripe.SecretKey

	gatewayClient := tools.NewUazapiClient(conf.Uazapi.BaseURL, conf.Uazapi.AdminToken)
	manager := workers.NewManager(
		database,
		gatewayClient,
		conf.Uazapi.WebhookBaseURL,
		workers.DEFAULT_POLL_INTERVAL,
		workers.NotifyHistoryOnDisconnect(database),
	)
	defer manager.Shutdown()

	controllers.SetConfigurations(conf)
	controllers.SetJWTSecret(conf.Security.JwtSecret)
	controllers.SetGateway(gatewayClient)
	controllers.SetManager(manager)
	controllers.SetEntitlementCache(cache.New(conf.RedisAddr))

	r := gin.New()
	r.Use(db.SetDBtoContext(database))
	router.Initialize(r, conf)

	srv := &http.Server{
		Addr:              ":" + conf.ApiPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", conf.ApiPort).Msg("sincron-grupos escutando")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("servidor encerrou com erro")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("encerrando...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown forçado")
	}
}
