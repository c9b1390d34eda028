package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/subvia/subscriptor/internal/config"
	"github.com/subvia/subscriptor/internal/http_api"
	"github.com/subvia/subscriptor/internal/ledger"
	"github.com/subvia/subscriptor/internal/models"
	"github.com/subvia/subscriptor/internal/notificator"
	"github.com/subvia/subscriptor/internal/oracle"
	"github.com/subvia/subscriptor/internal/repository"
	"github.com/subvia/subscriptor/internal/subscriptor"
	"github.com/subvia/subscriptor/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "subscriptor",
		Usage: "Subscriptor provides recurring subscriptions atop a ledger network",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.StringFlag{Name: "ledger-rest-url", Aliases: []string{"r"}, Usage: "Ledger REST API URL"},
			&cli.StringFlag{Name: "ledger-rpc-url", Aliases: []string{"j"}, Usage: "Ledger JSON-RPC URL"},
			&cli.StringFlag{Name: "oracle-url", Aliases: []string{"o"}, Usage: "Community Oracle URL"},
			&cli.StringFlag{Name: "burn-address", Aliases: []string{"b"}, Usage: "Burn account address"},
			&cli.StringFlag{Name: "genesis-address", Aliases: []string{"g"}, Usage: "Genesis wallet address"},
			&cli.Int64Flag{Name: "subscription-price", Aliases: []string{"s"}, Usage: "Subscription price in token units"},
			&cli.IntFlag{Name: "api-port", Aliases: []string{"a"}, Usage: "API port"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode (in-memory storage)"},
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
	if c.IsSet("ledger-rest-url") {
		cfg.LedgerRestAPIURL = c.String("ledger-rest-url")
	}
	if c.IsSet("ledger-rpc-url") {
		cfg.LedgerJSONRPCURL = c.String("ledger-rpc-url")
	}
	if c.IsSet("oracle-url") {
		cfg.CommunityOracleURL = c.String("oracle-url")
	}
	if c.IsSet("burn-address") {
		cfg.BurnAddressHex = c.String("burn-address")
	}
	if c.IsSet("genesis-address") {
		cfg.GenesisWalletHex = c.String("genesis-address")
	}
	if c.IsSet("subscription-price") {
		cfg.SubscriptionPrice = c.Int64("subscription-price")
	}
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}

	// Flags may have changed address fields; re-validate and re-parse
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %v", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}

	// Initialize storage
	var repo models.Repository
	if cfg.Development {
		log.Warn("Development mode: using in-memory storage")
		repo = repository.NewMemoryDB()
	} else {
		repo, err = repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %v", err)
		}
	}

	// Initialize ledger clients
	restClient := ledger.NewRestClient(cfg.LedgerRestAPIURL, log)
	rpcClient := ledger.NewRpcClient(cfg.LedgerJSONRPCURL, log)
	// Initialize Community Oracle client
	oracleClient := oracle.NewClient(cfg.CommunityOracleURL, log)

	// Initialize notificator
	var telNotif *notificator.TelegramNotificator
	if cfg.TelegramBotToken != "" {
		telNotif, err = notificator.NewTelegramNotificator(log, cfg.TelegramBotToken, repo)
		if err != nil {
			return fmt.Errorf("failed to initialize telegram notificator: %v", err)
		}
	}
	var emailNotif *notificator.EmailNotificator
	if cfg.SMTPHost != "" && cfg.SMTPUser != "" {
		emailNotif = notificator.NewEmailNotificator(log, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPSender)
	}
	notif := notificator.NewNotificator(log, telNotif, emailNotif)

	// Create the application core
	reconciler := subscriptor.NewReconciler(restClient, cfg.BurnAddress, cfg.SubscriptionPrice, uint32(cfg.HistoryPageLimit), log)
	app := subscriptor.NewSubscriptor(repo, reconciler, rpcClient, notif, log, cfg)
	keeper := subscriptor.NewKeeper(app, repo, cfg.KeeperInterval, log)

	// Initialize API server
	apiServer := http_api.NewHTTPServer(app, oracleClient, cfg.APIPort, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go keeper.Run(ctx)
	go apiServer.Start()

	<-ctx.Done()
	return apiServer.Shutdown()
}
