package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/labomba/deposit-settlement/internal/consts"
	"github.com/labomba/deposit-settlement/internal/model"
	"github.com/labomba/deposit-settlement/internal/types/environments"
)

type AppConfig struct {
	Environment       environments.Environment
	ApiServer         ApiServerConfig
	Postgres          DBConnection
	Chains            ChainsConfig
	Withdrawal        WithdrawalConfig
	Ledger            LedgerConfig
	Telegram          TelegramConfig
	Email             EmailConfig
	NATS              NATSConfig
	Auth              AuthConfig
	Vault             VaultConfig
	RPCTimeout        time.Duration
	VerdictCacheTTL   time.Duration
	ReconcileSchedule string
	UptimeWebhookURL  string
}

type ApiServerConfig struct {
	AllowedOrigins string
	Port           string
	PublicURL      string
}

type DBConnection struct {
	Host string
	Port string
	User string
	Name string
	Pass string

	SSLMode string
}

// ChainConfig is the immutable per-network settlement configuration.
type ChainConfig struct {
	RPCEndpoint    string
	CustodyAddress string
	AssetID        string
	ExplorerTxURL  string
}

type ChainsConfig struct {
	Solana  ChainConfig
	Base    ChainConfig
	Polygon ChainConfig
}

func (c ChainsConfig) For(network model.Network) (ChainConfig, bool) {
	switch network {
	case model.NetworkSolana:
		return c.Solana, true
	case model.NetworkBase:
		return c.Base, true
	case model.NetworkPolygon:
		return c.Polygon, true
	}
	return ChainConfig{}, false
}

type WithdrawalConfig struct {
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
	Fee       decimal.Decimal
}

type LedgerConfig struct {
	BaseURL    string
	ServiceKey string
}

type TelegramConfig struct {
	BotToken    string
	AdminChatID string
}

type EmailConfig struct {
	ResendAPIKey string
	From         string
}

type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

type AuthConfig struct {
	JWTSecret       string
	AdminLinkSecret string
	AdminUserIDs    []string
}

// VaultConfig enables loading credentials from Vault when Addr is set.
type VaultConfig struct {
	Addr      string
	Role      string
	KVPath    string
	TokenPath string
}

func New() *AppConfig {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// this will not override env variables if they already exist
	godotenv.Load(".env." + env)

	return &AppConfig{
		Environment: environments.Environment(env),
		ApiServer: ApiServerConfig{
			AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
			Port:           envVarOr("PORT", "8080"),
			PublicURL:      os.Getenv("PUBLIC_URL"),
		},
		Postgres: DBConnection{
			Host:    os.Getenv("DB_HOST"),
			Port:    os.Getenv("DB_PORT"),
			User:    os.Getenv("DB_USER"),
			Name:    os.Getenv("DB_NAME"),
			Pass:    os.Getenv("DB_PASS"),
			SSLMode: os.Getenv("DB_SSL_MODE"),
		},
		Chains: ChainsConfig{
			Solana: ChainConfig{
				RPCEndpoint:    envVarOr("SOLANA_RPC_ENDPOINT", consts.DefaultSolanaRPCEndpoint),
				CustodyAddress: os.Getenv("SOLANA_CUSTODY_ADDRESS"),
				AssetID:        envVarOr("SOLANA_USDC_MINT", consts.SolanaUSDCMint),
				ExplorerTxURL:  consts.SolanaExplorerTxURL,
			},
			Base: ChainConfig{
				RPCEndpoint:    envVarOr("BASE_RPC_ENDPOINT", consts.DefaultBaseRPCEndpoint),
				CustodyAddress: os.Getenv("BASE_CUSTODY_ADDRESS"),
				AssetID:        envVarOr("BASE_USDC_CONTRACT", consts.BaseUSDCContract),
				ExplorerTxURL:  consts.BaseExplorerTxURL,
			},
			Polygon: ChainConfig{
				RPCEndpoint:    envVarOr("POLYGON_RPC_ENDPOINT", consts.DefaultPolygonRPCEndpoint),
				CustodyAddress: os.Getenv("POLYGON_CUSTODY_ADDRESS"),
				AssetID:        envVarOr("POLYGON_USDC_CONTRACT", consts.PolygonUSDCContract),
				ExplorerTxURL:  consts.PolygonExplorerTxURL,
			},
		},
		Withdrawal: WithdrawalConfig{
			MinAmount: envVarAsDecimal("WITHDRAWAL_MIN_AMOUNT", consts.WithdrawalMinAmount),
			MaxAmount: envVarAsDecimal("WITHDRAWAL_MAX_AMOUNT", consts.WithdrawalMaxAmount),
			Fee:       envVarAsDecimal("WITHDRAWAL_FEE", consts.WithdrawalFee),
		},
		Ledger: LedgerConfig{
			BaseURL:    os.Getenv("LEDGER_BASE_URL"),
			ServiceKey: os.Getenv("LEDGER_SERVICE_KEY"),
		},
		Telegram: TelegramConfig{
			BotToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
			AdminChatID: os.Getenv("TELEGRAM_ADMIN_CHAT_ID"),
		},
		Email: EmailConfig{
			ResendAPIKey: os.Getenv("RESEND_API_KEY"),
			From:         envVarOr("EMAIL_FROM", "La Bomba <noreply@labomba.app>"),
		},
		NATS: NATSConfig{
			URL:           os.Getenv("NATS_URL"),
			SubjectPrefix: envVarOr("NATS_SUBJECT_PREFIX", "settlement"),
		},
		Auth: AuthConfig{
			JWTSecret:       os.Getenv("JWT_SECRET"),
			AdminLinkSecret: os.Getenv("ADMIN_LINK_SECRET"),
			AdminUserIDs:    envVarAsList("ADMIN_USER_IDS"),
		},
		Vault: VaultConfig{
			Addr:      os.Getenv("VAULT_ADDR"),
			Role:      envVarOr("VAULT_ROLE", "deposit-settlement"),
			KVPath:    envVarOr("VAULT_KV_PATH", "secret/data/deposit-settlement"),
			TokenPath: os.Getenv("VAULT_TOKEN_PATH"),
		},
		RPCTimeout:        time.Duration(envVarAtoiOr("RPC_TIMEOUT_SECONDS", consts.DefaultRPCTimeoutSeconds)) * time.Second,
		VerdictCacheTTL:   time.Duration(envVarAtoiOr("VERDICT_CACHE_TTL_MINUTES", consts.DefaultVerdictCacheTTL)) * time.Minute,
		ReconcileSchedule: envVarOr("RECONCILE_SCHEDULE", consts.DefaultReconcileSchedule),
		UptimeWebhookURL:  os.Getenv("UPTIME_WEBHOOK_URL"),
	}
}

// ApplySecrets overrides credentials with the values present in secrets.
// Keys use the same names as the environment variables.
func (c *AppConfig) ApplySecrets(secrets map[string]string) {
	targets := map[string]*string{
		"DB_PASS":            &c.Postgres.Pass,
		"LEDGER_SERVICE_KEY": &c.Ledger.ServiceKey,
		"JWT_SECRET":         &c.Auth.JWTSecret,
		"ADMIN_LINK_SECRET":  &c.Auth.AdminLinkSecret,
		"TELEGRAM_BOT_TOKEN": &c.Telegram.BotToken,
		"RESEND_API_KEY":     &c.Email.ResendAPIKey,
	}
	for key, target := range targets {
		if v, ok := secrets[key]; ok && v != "" {
			*target = v
		}
	}
}

// Validate checks the settings the service cannot start without.
func (c *AppConfig) Validate() error {
	for _, network := range model.Networks() {
		chainCfg, _ := c.Chains.For(network)
		if chainCfg.CustodyAddress == "" {
			return errors.Errorf("custody address for %s is not configured", network)
		}
		if chainCfg.AssetID == "" {
			return errors.Errorf("usdc identifier for %s is not configured", network)
		}
	}

	w := c.Withdrawal
	if !w.MinAmount.IsPositive() || w.MaxAmount.LessThan(w.MinAmount) {
		return errors.Errorf("invalid withdrawal bounds [%s, %s]", w.MinAmount, w.MaxAmount)
	}
	if w.Fee.IsNegative() || w.Fee.GreaterThanOrEqual(w.MinAmount) {
		return errors.Errorf("withdrawal fee %s must be in [0, %s)", w.Fee, w.MinAmount)
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	return nil
}

func envVarOr(envName, fallback string) string {
	if v := os.Getenv(envName); v != "" {
		return v
	}
	return fallback
}

func envVarAtoiOr(envName string, fallback int) int {
	valueStr := os.Getenv(envName)
	if valueStr == "" {
		return fallback
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		panic(err)
	}

	return value
}

func envVarAsDecimal(envName, fallback string) decimal.Decimal {
	return decimal.RequireFromString(envVarOr(envName, fallback))
}

func envVarAsList(envName string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(envName), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
