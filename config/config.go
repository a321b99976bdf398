package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort     string `mapstructure:"APP_PORT"`
	Env         string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	FrontendURL string `mapstructure:"FRONTEND_URL"`

	// Booking store.
	BookingStore        string `mapstructure:"BOOKING_STORE"`
	DatabaseURL         string `mapstructure:"DATABASE_URL"`
	DatabaseName        string `mapstructure:"DATABASE_NAME"`
	FirebaseCredentials string `mapstructure:"FIREBASE_CREDENTIALS"`
	FirebaseProjectID   string `mapstructure:"FIREBASE_PROJECT_ID"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Beckn gateway.
	BecknGatewayURL     string        `mapstructure:"BECKN_GATEWAY_URL"`
	BecknSubscriberID   string        `mapstructure:"BECKN_SUBSCRIBER_ID"`
	BecknSubscriberURI  string        `mapstructure:"BECKN_SUBSCRIBER_URI"`
	BecknPrivateKey     string        `mapstructure:"BECKN_PRIVATE_KEY"`
	BecknPrivateKeyPath string        `mapstructure:"BECKN_PRIVATE_KEY_PATH"`
	BecknDomain         string        `mapstructure:"BECKN_DOMAIN"`
	BecknCountry        string        `mapstructure:"BECKN_COUNTRY"`
	BecknCity           string        `mapstructure:"BECKN_CITY"`
	BecknCoreVersion    string        `mapstructure:"BECKN_CORE_VERSION"`
	PhaseTimeout        time.Duration `mapstructure:"PHASE_TIMEOUT"`
	SessionTTL          time.Duration `mapstructure:"SESSION_TTL"`

	// Content archive.
	ArchiveBackend string        `mapstructure:"ARCHIVE_BACKEND"`
	IPFSAPIURL     string        `mapstructure:"IPFS_API_URL"`
	IPFSAuth       string        `mapstructure:"IPFS_AUTH"`
	GCSBucket      string        `mapstructure:"GCS_BUCKET"`
	ArchiveTimeout time.Duration `mapstructure:"ARCHIVE_TIMEOUT"`

	// Ledger.
	EthereumRPCURL         string        `mapstructure:"ETHEREUM_RPC_URL"`
	BookingContractAddress string        `mapstructure:"BOOKING_CONTRACT_ADDRESS"`
	BlockchainPrivateKey   string        `mapstructure:"BLOCKCHAIN_PRIVATE_KEY"`
	LedgerTimeout          time.Duration `mapstructure:"LEDGER_TIMEOUT"`
	LedgerFallbackGasGwei  int64         `mapstructure:"LEDGER_FALLBACK_GAS_GWEI"`

	// Reconciliation of bookings left unverified or partially verified.
	ReconcileInterval string  `mapstructure:"RECONCILE_INTERVAL"`
	ReconcileBatch    int     `mapstructure:"RECONCILE_BATCH"`
	ReconcileRate     float64 `mapstructure:"RECONCILE_RATE"`

	// Booking events.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`
}

var AppConfig Config

func LoadConfig() {
	// A local .env is optional; real deployments inject the environment.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Ignoring unreadable .env file: %v", err)
	}

	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := AppConfig.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
}

func setDefaults() {
	viper.SetDefault("APP_PORT", "3000")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("FRONTEND_URL", "http://localhost:5173")

	viper.SetDefault("BOOKING_STORE", "mongo")
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "villagestay")
	viper.SetDefault("FIREBASE_CREDENTIALS", "")
	viper.SetDefault("FIREBASE_PROJECT_ID", "")

	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)

	viper.SetDefault("BECKN_GATEWAY_URL", "https://beckn-gateway.example.com")
	viper.SetDefault("BECKN_SUBSCRIBER_ID", "")
	viper.SetDefault("BECKN_SUBSCRIBER_URI", "")
	viper.SetDefault("BECKN_PRIVATE_KEY", "")
	viper.SetDefault("BECKN_PRIVATE_KEY_PATH", "")
	viper.SetDefault("BECKN_DOMAIN", "rural-tourism")
	viper.SetDefault("BECKN_COUNTRY", "IND")
	viper.SetDefault("BECKN_CITY", "std:080")
	viper.SetDefault("BECKN_CORE_VERSION", "1.0.0")
	viper.SetDefault("PHASE_TIMEOUT", 15*time.Second)
	viper.SetDefault("SESSION_TTL", 30*time.Minute)

	viper.SetDefault("ARCHIVE_BACKEND", "ipfs")
	viper.SetDefault("IPFS_API_URL", "https://ipfs.infura.io:5001")
	viper.SetDefault("IPFS_AUTH", "")
	viper.SetDefault("GCS_BUCKET", "")
	viper.SetDefault("ARCHIVE_TIMEOUT", 20*time.Second)

	viper.SetDefault("ETHEREUM_RPC_URL", "https://polygon-rpc.com")
	viper.SetDefault("BOOKING_CONTRACT_ADDRESS", "")
	viper.SetDefault("BLOCKCHAIN_PRIVATE_KEY", "")
	viper.SetDefault("LEDGER_TIMEOUT", 90*time.Second)
	viper.SetDefault("LEDGER_FALLBACK_GAS_GWEI", 20)

	viper.SetDefault("RECONCILE_INTERVAL", "@every 5m")
	viper.SetDefault("RECONCILE_BATCH", 25)
	viper.SetDefault("RECONCILE_RATE", 0.5)

	viper.SetDefault("KAFKA_BROKERS", "")
	viper.SetDefault("KAFKA_TOPIC", "villagestay.bookings")
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var problems []string

	if _, err := url.ParseRequestURI(c.BecknGatewayURL); err != nil {
		problems = append(problems, fmt.Sprintf("BECKN_GATEWAY_URL is not a valid URL: %q", c.BecknGatewayURL))
	}
	switch c.BookingStore {
	case "mongo":
		if !strings.HasPrefix(c.DatabaseURL, "mongodb://") && !strings.HasPrefix(c.DatabaseURL, "mongodb+srv://") {
			problems = append(problems, "DATABASE_URL must start with 'mongodb://' or 'mongodb+srv://'")
		}
	case "firestore":
		if c.FirebaseProjectID == "" {
			problems = append(problems, "FIREBASE_PROJECT_ID is required when BOOKING_STORE=firestore")
		}
	case "memory":
		if c.Env == "production" {
			problems = append(problems, "BOOKING_STORE=memory is not allowed in production")
		}
	default:
		problems = append(problems, fmt.Sprintf("BOOKING_STORE must be 'mongo', 'firestore' or 'memory', got %q", c.BookingStore))
	}
	switch c.ArchiveBackend {
	case "ipfs":
		if c.IPFSAPIURL == "" {
			problems = append(problems, "IPFS_API_URL is required when ARCHIVE_BACKEND=ipfs")
		}
	case "gcs":
		if c.GCSBucket == "" {
			problems = append(problems, "GCS_BUCKET is required when ARCHIVE_BACKEND=gcs")
		}
	default:
		problems = append(problems, fmt.Sprintf("ARCHIVE_BACKEND must be 'ipfs' or 'gcs', got %q", c.ArchiveBackend))
	}
	if c.PhaseTimeout <= 0 || c.ArchiveTimeout <= 0 || c.LedgerTimeout <= 0 {
		problems = append(problems, "PHASE_TIMEOUT, ARCHIVE_TIMEOUT and LEDGER_TIMEOUT must be positive")
	}
	if c.LedgerFallbackGasGwei <= 0 {
		problems = append(problems, "LEDGER_FALLBACK_GAS_GWEI must be positive")
	}
	if c.ReconcileBatch <= 0 || c.ReconcileRate <= 0 {
		problems = append(problems, "RECONCILE_BATCH and RECONCILE_RATE must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// KafkaBrokerList splits KAFKA_BROKERS into addresses; empty disables publishing.
func (c *Config) KafkaBrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

func IsDevelopment() bool {
	return GetEnv() == "development"
}
