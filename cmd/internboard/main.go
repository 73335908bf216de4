package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/internboard/internal/accounts"
	"github.com/MarkoPoloResearchLab/internboard/internal/board"
	"github.com/MarkoPoloResearchLab/internboard/internal/httpapi"
	"github.com/MarkoPoloResearchLab/internboard/internal/notify"
	"github.com/MarkoPoloResearchLab/internboard/internal/obslog"
	"github.com/MarkoPoloResearchLab/internboard/internal/resume"
	"github.com/MarkoPoloResearchLab/internboard/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/internboard/internal/store/pgstore"
	"github.com/MarkoPoloResearchLab/internboard/internal/store/redisstore"
	"github.com/MarkoPoloResearchLab/internboard/pkg/credits"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "internboard: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "internboard",
		Short:         "Internship board API with a credit-gated application workflow",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String(flagEnvFile, defaultEnvFile, "optional dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().String(flagDatabaseURL, defaultDatabaseURL, "postgres:// URL or sqlite path")
	rootCmd.AddCommand(newServeCommand(), newCreateAdminCommand())
	return rootCmd
}

func newServeCommand() *cobra.Command {
	cfg := &serveConfig{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadServeConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
	registerServeFlags(cmd)
	return cmd
}

func newCreateAdminCommand() *cobra.Command {
	cfg := &adminConfig{}
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Provision a verified administrator account",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadAdminConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateAdmin(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String(flagAdminEmail, "", "administrator email (required)")
	cmd.Flags().String(flagAdminPassword, "", "administrator password (required)")
	return cmd
}

func runServer(ctx context.Context, cfg *serveConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()
	if err := gormstore.Migrate(gormDB); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	ledgerStore, closeLedger, err := openLedgerStore(ctx, driver, cfg.DatabaseURL, gormDB)
	if err != nil {
		return err
	}
	defer closeLedger()

	clock := func() time.Time { return time.Now().UTC() }
	store := gormstore.New(gormDB)
	creditService, err := credits.NewService(
		ledgerStore,
		clock,
		credits.WithPolicy(cfg.Policy),
		credits.WithOperationLogger(obslog.NewOperationLogger(logger)),
	)
	if err != nil {
		return fmt.Errorf("credit service init: %w", err)
	}
	boardService, err := board.NewService(store, creditService, clock)
	if err != nil {
		return fmt.Errorf("board service init: %w", err)
	}

	otps, closeOTPs, err := openOTPStore(ctx, cfg, gormDB, clock)
	if err != nil {
		return err
	}
	defer closeOTPs()

	notifier, err := buildNotifier(cfg.SMTP, logger)
	if err != nil {
		return err
	}
	defer notifier.Wait()

	tokens, err := accounts.NewTokenIssuer([]byte(cfg.HTTP.SessionSigningKey), cfg.HTTP.SessionIssuer, cfg.HTTP.SessionTTL, clock)
	if err != nil {
		return fmt.Errorf("token issuer init: %w", err)
	}
	accountService, err := accounts.NewService(store, otps, tokens, clock,
		accounts.WithNotifier(notifier),
		accounts.WithLogger(logger),
		accounts.WithStartingCredits(cfg.Policy.StartingCredits),
	)
	if err != nil {
		return fmt.Errorf("account service init: %w", err)
	}
	renderer, err := resume.NewRenderer()
	if err != nil {
		return err
	}

	server, err := httpapi.NewServer(cfg.HTTP, httpapi.Services{
		Accounts: accountService,
		Board:    boardService,
		Credits:  creditService,
		Resumes:  renderer,
	}, logger)
	if err != nil {
		return fmt.Errorf("http server init: %w", err)
	}
	return server.Run(ctx)
}

func runCreateAdmin(ctx context.Context, cfg *adminConfig) error {
	gormDB, cleanup, _, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()
	if err := gormstore.Migrate(gormDB); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	clock := func() time.Time { return time.Now().UTC() }
	tokens, err := accounts.NewTokenIssuer([]byte("create-admin"), "internboard", time.Minute, clock)
	if err != nil {
		return err
	}
	accountService, err := accounts.NewService(gormstore.New(gormDB), gormstore.NewOTPStore(gormDB, clock), tokens, clock)
	if err != nil {
		return err
	}
	admin, err := accountService.CreateAdmin(ctx, cfg.Email, cfg.Password)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "created admin %s (%s)\n", admin.Email, admin.ID.String())
	return nil
}

// openLedgerStore serves balance reads, top-ups and history through pgx on postgres.
// Charges always run on the board transaction's own ledger.
func openLedgerStore(ctx context.Context, driver string, dsn string, gormDB *gorm.DB) (credits.Store, func(), error) {
	if driver != driverPostgres {
		return gormstore.NewLedgerStore(gormDB), func() {}, nil
	}
	pool, err := pgstore.Open(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return pgstore.New(pool), pool.Close, nil
}

func openOTPStore(ctx context.Context, cfg *serveConfig, gormDB *gorm.DB, clock func() time.Time) (accounts.OTPStore, func(), error) {
	if cfg.Redis.Addr == "" {
		return gormstore.NewOTPStore(gormDB, clock), func() {}, nil
	}
	client, err := redisstore.NewClient(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	store := redisstore.NewOTPStore(client)
	if err := store.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return store, func() { _ = client.Close() }, nil
}

func buildNotifier(cfg notify.SMTPConfig, logger *zap.Logger) (*notify.AsyncNotifier, error) {
	if cfg.Host == "" {
		logger.Warn("smtp not configured; notifications are written to the log")
		return notify.NewAsyncNotifier(notify.NewLogNotifier(logger), logger), nil
	}
	smtpNotifier, err := notify.NewSMTPNotifier(cfg)
	if err != nil {
		return nil, err
	}
	return notify.NewAsyncNotifier(smtpNotifier, logger), nil
}
