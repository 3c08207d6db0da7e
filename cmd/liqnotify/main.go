package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/core-coin/liqnotify/internal/blockchain"
	"github.com/core-coin/liqnotify/internal/commands"
	"github.com/core-coin/liqnotify/internal/config"
	"github.com/core-coin/liqnotify/internal/http_api"
	"github.com/core-coin/liqnotify/internal/liqnotify"
	"github.com/core-coin/liqnotify/internal/models"
	"github.com/core-coin/liqnotify/internal/notificator"
	"github.com/core-coin/liqnotify/internal/repository"
	"github.com/core-coin/liqnotify/pkg/logger"
	"github.com/core-coin/liqnotify/pkg/validation"
)

func main() {
	app := &cli.App{
		Name:  "liqnotify",
		Usage: "Discord bot that pings users when liquidity is added to a token",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "chain", Aliases: []string{"c"}, Usage: "Address family of the watched chain (evm, core)"},
			&cli.StringFlag{Name: "ws-url", Aliases: []string{"w"}, Usage: "Websocket endpoint of the chain node"},
			&cli.StringFlag{Name: "bot-token", Usage: "Discord bot token"},
			&cli.StringFlag{Name: "notify-category", Usage: "Discord category holding the notification channel"},
			&cli.StringFlag{Name: "notify-channel", Usage: "Discord channel for liquidity broadcasts"},
			&cli.StringFlag{Name: "store", Aliases: []string{"s"}, Usage: "Subscription store driver (json, postgres)"},
			&cli.StringFlag{Name: "subscriptions-path", Usage: "Path of the JSON subscription registry"},
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.IntFlag{Name: "api-port", Aliases: []string{"a"}, Usage: "Status API port, 0 disables it"},
			&cli.DurationFlag{Name: "lookup-timeout", Usage: "Timeout of a token symbol lookup"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Action: func(c *cli.Context) error {
			return run(c)
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("chain") {
		chain, err := validation.ParseChain(c.String("chain"))
		if err != nil {
			return err
		}
		cfg.Chain = chain
	}
	if c.IsSet("ws-url") {
		cfg.WSURL = c.String("ws-url")
	}
	if c.IsSet("bot-token") {
		cfg.BotToken = c.String("bot-token")
	}
	if c.IsSet("notify-category") {
		cfg.NotifyCategory = c.String("notify-category")
	}
	if c.IsSet("notify-channel") {
		cfg.NotifyChannel = c.String("notify-channel")
	}
	if c.IsSet("store") {
		cfg.StoreDriver = c.String("store")
	}
	if c.IsSet("subscriptions-path") {
		cfg.SubscriptionsPath = c.String("subscriptions-path")
	}
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("lookup-timeout") {
		cfg.LookupTimeout = c.Duration("lookup-timeout")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %v", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize subscription store
	repo, err := repository.Open(cfg, log.Named("repository"))
	if err != nil {
		return fmt.Errorf("failed to open subscription store: %v", err)
	}
	defer repo.Close()

	// Initialize blockchain service
	chain, err := blockchain.New(cfg, log.Named("blockchain"))
	if err != nil {
		return fmt.Errorf("failed to create blockchain service: %v", err)
	}
	if err := chain.Run(ctx); err != nil {
		return err
	}
	defer chain.Close()

	// Initialize notificators
	discord, err := notificator.NewDiscordNotificator(log.Named("discord"), cfg.BotToken, cfg.NotifyCategory, cfg.NotifyChannel)
	if err != nil {
		return err
	}
	sinks := []models.NotificationSink{discord}

	var telegram *notificator.TelegramNotificator
	if cfg.TelegramEnabled() {
		telegram, err = notificator.NewTelegramNotificator(log.Named("telegram"), cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			return err
		}
		sinks = append(sinks, telegram)
	}
	notif := notificator.NewNotificator(log.Named("notificator"), sinks...)

	// Create Liqnotify instance
	liqnotifyApp := liqnotify.NewLiqnotify(repo, chain, notif, log.Named("liqnotify"), cfg)

	// A registry that cannot be read is fatal at startup
	if err := liqnotifyApp.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer liqnotifyApp.Stop()

	if store, ok := repo.(*repository.JSONStore); ok && cfg.WatchSubscriptionsFile {
		err := store.StartWatching(func() {
			log.Info("Subscription registry changed on disk, reconciling watchers", "path", store.Path())
			if err := liqnotifyApp.Reconcile(ctx); err != nil {
				log.Error("Failed to reconcile watchers", "error", err)
			}
		})
		if err != nil {
			log.Warn("Not watching the subscription registry", "error", err)
		}
	}

	router, err := commands.NewRouter(cfg.Chain, liqnotifyApp, cfg.CommandRatePerMinute, log.Named("commands"))
	if err != nil {
		return err
	}
	if err := discord.Open(router); err != nil {
		return err
	}
	defer discord.Close()

	if telegram != nil {
		telegram.Start(ctx, liqnotifyApp)
	}

	var apiServer models.APIServer
	if cfg.APIPort > 0 {
		apiServer = http_api.NewHTTPServer(liqnotifyApp, cfg.Chain, cfg.APIPort, log.Named("http"))
		go apiServer.Start()
	}

	log.Info("Liqnotify is running", "chain", cfg.Chain, "store", cfg.StoreDriver)
	<-ctx.Done()
	log.Info("Shutting down")

	if apiServer != nil {
		if err := apiServer.Shutdown(); err != nil {
			log.Error("Failed to shut down HTTP server", "error", err)
		}
	}
	return nil
}
