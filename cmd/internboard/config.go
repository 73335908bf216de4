package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/MarkoPoloResearchLab/internboard/internal/httpapi"
	"github.com/MarkoPoloResearchLab/internboard/internal/notify"
	"github.com/MarkoPoloResearchLab/internboard/internal/store/redisstore"
	"github.com/MarkoPoloResearchLab/internboard/pkg/credits"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagEnvFile         = "env-file"
	flagDatabaseURL     = "database-url"
	flagListenAddr      = "listen-addr"
	flagAllowedOrigins  = "allowed-origins"
	flagJWTSigningKey   = "jwt-signing-key"
	flagJWTIssuer       = "jwt-issuer"
	flagJWTCookieName   = "jwt-cookie-name"
	flagSessionTTL      = "session-ttl"
	flagCookieSecure    = "cookie-secure"
	flagRedisAddr       = "redis-addr"
	flagRedisPassword   = "redis-password"
	flagRedisDB         = "redis-db"
	flagSMTPHost        = "smtp-host"
	flagSMTPPort        = "smtp-port"
	flagSMTPUsername    = "smtp-username"
	flagSMTPPassword    = "smtp-password"
	flagSMTPFrom        = "smtp-from"
	flagStartingCredits = "starting-credits"
	flagRefillCredits   = "refill-credits"
	flagRefillInterval  = "refill-interval"
	flagApplicationCost = "application-cost"
	flagHireCost        = "hire-cost"
	flagTopUpCredits    = "top-up-credits"
	flagAdminEmail      = "email"
	flagAdminPassword   = "password"

	envPrefix          = "INTERNBOARD"
	defaultEnvFile     = ".env"
	defaultDatabaseURL = "sqlite:///tmp/internboard.db"
	defaultSMTPPort    = 587
)

type serveConfig struct {
	DatabaseURL string
	HTTP        httpapi.Config
	Redis       redisstore.Config
	SMTP        notify.SMTPConfig
	Policy      credits.Policy
}

type adminConfig struct {
	DatabaseURL string
	Email       string
	Password    string
}

func registerServeFlags(cmd *cobra.Command) {
	policy := credits.DefaultPolicy()
	flags := cmd.Flags()
	flags.String(flagListenAddr, ":8000", "HTTP listen address")
	flags.String(flagAllowedOrigins, "http://localhost:5173", "comma-separated list of allowed CORS origins")
	flags.String(flagJWTSigningKey, "", "session JWT signing key (required)")
	flags.String(flagJWTIssuer, "internboard", "session JWT issuer")
	flags.String(flagJWTCookieName, "internboard_session", "session cookie name")
	flags.Duration(flagSessionTTL, 0, "session lifetime (default 24h)")
	flags.Bool(flagCookieSecure, false, "mark the session cookie Secure")
	flags.String(flagRedisAddr, "", "redis address for one-time codes; codes live in the database when empty")
	flags.String(flagRedisPassword, "", "redis password")
	flags.Int(flagRedisDB, 0, "redis database number")
	flags.String(flagSMTPHost, "", "SMTP host; codes are logged when empty")
	flags.Int(flagSMTPPort, defaultSMTPPort, "SMTP port")
	flags.String(flagSMTPUsername, "", "SMTP username")
	flags.String(flagSMTPPassword, "", "SMTP password")
	flags.String(flagSMTPFrom, "", "sender address for outgoing mail")
	flags.Int64(flagStartingCredits, policy.StartingCredits, "credits granted to new students")
	flags.Int64(flagRefillCredits, policy.RefillCredits, "balance restored by a refill")
	flags.Duration(flagRefillInterval, policy.RefillInterval, "time between refills")
	flags.Int64(flagApplicationCost, policy.ApplicationCost, "credits charged per application")
	flags.Int64(flagHireCost, policy.HireCost, "credits charged to a hired applicant")
	flags.Int64(flagTopUpCredits, policy.TopUpCredits, "credits granted per top-up")
}

func newViper(cmd *cobra.Command, flagNames ...string) (*viper.Viper, error) {
	if err := loadEnvFile(cmd); err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, flagName := range append([]string{flagDatabaseURL}, flagNames...) {
		if err := v.BindPFlag(flagName, cmd.Flags().Lookup(flagName)); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// loadEnvFile exports the dotenv file without overriding variables already set.
// A missing default file is not an error.
func loadEnvFile(cmd *cobra.Command) error {
	path, err := cmd.Flags().GetString(flagEnvFile)
	if err != nil {
		return err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	err = godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed(flagEnvFile) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func loadServeConfig(cmd *cobra.Command, cfg *serveConfig) error {
	v, err := newViper(cmd,
		flagListenAddr, flagAllowedOrigins, flagJWTSigningKey, flagJWTIssuer, flagJWTCookieName, flagSessionTTL, flagCookieSecure,
		flagRedisAddr, flagRedisPassword, flagRedisDB,
		flagSMTPHost, flagSMTPPort, flagSMTPUsername, flagSMTPPassword, flagSMTPFrom,
		flagStartingCredits, flagRefillCredits, flagRefillInterval, flagApplicationCost, flagHireCost, flagTopUpCredits,
	)
	if err != nil {
		return err
	}
	if strings.TrimSpace(v.GetString(flagJWTSigningKey)) == "" {
		return fmt.Errorf("%s is required", flagJWTSigningKey)
	}

	cfg.DatabaseURL = strings.TrimSpace(v.GetString(flagDatabaseURL))
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("%s is required", flagDatabaseURL)
	}
	cfg.HTTP = httpapi.Config{
		ListenAddr:        strings.TrimSpace(v.GetString(flagListenAddr)),
		AllowedOrigins:    httpapi.ParseAllowedOrigins(v.GetString(flagAllowedOrigins)),
		SessionSigningKey: v.GetString(flagJWTSigningKey),
		SessionIssuer:     strings.TrimSpace(v.GetString(flagJWTIssuer)),
		SessionCookieName: strings.TrimSpace(v.GetString(flagJWTCookieName)),
		SessionTTL:        v.GetDuration(flagSessionTTL),
		CookieSecure:      v.GetBool(flagCookieSecure),
	}
	cfg.Redis = redisstore.Config{
		Addr:     strings.TrimSpace(v.GetString(flagRedisAddr)),
		Password: v.GetString(flagRedisPassword),
		DB:       v.GetInt(flagRedisDB),
	}
	cfg.SMTP = notify.SMTPConfig{
		Host:     strings.TrimSpace(v.GetString(flagSMTPHost)),
		Port:     v.GetInt(flagSMTPPort),
		Username: v.GetString(flagSMTPUsername),
		Password: v.GetString(flagSMTPPassword),
		From:     strings.TrimSpace(v.GetString(flagSMTPFrom)),
	}
	cfg.Policy = credits.Policy{
		StartingCredits: v.GetInt64(flagStartingCredits),
		RefillCredits:   v.GetInt64(flagRefillCredits),
		RefillInterval:  v.GetDuration(flagRefillInterval),
		ApplicationCost: v.GetInt64(flagApplicationCost),
		HireCost:        v.GetInt64(flagHireCost),
		TopUpCredits:    v.GetInt64(flagTopUpCredits),
	}
	if err := cfg.Policy.Validate(); err != nil {
		return err
	}
	return cfg.HTTP.Validate()
}

func loadAdminConfig(cmd *cobra.Command, cfg *adminConfig) error {
	v, err := newViper(cmd, flagAdminEmail, flagAdminPassword)
	if err != nil {
		return err
	}
	cfg.DatabaseURL = strings.TrimSpace(v.GetString(flagDatabaseURL))
	cfg.Email = strings.TrimSpace(v.GetString(flagAdminEmail))
	cfg.Password = v.GetString(flagAdminPassword)
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("%s is required", flagDatabaseURL)
	}
	if cfg.Email == "" {
		return fmt.Errorf("%s is required", flagAdminEmail)
	}
	if cfg.Password == "" {
		return fmt.Errorf("%s is required", flagAdminPassword)
	}
	return nil
}
