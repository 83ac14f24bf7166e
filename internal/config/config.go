package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auction  AuctionConfig
	Shipping ShippingConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// AuctionConfig holds the per-deployment bidding rules. The increment is a
// deployment setting, not a per-auction field.
type AuctionConfig struct {
	BidIncrement    int64 // cents
	DefaultDuration time.Duration
}

// ShippingConfig holds the ship-from address, carrier credentials and the
// shipping policy knobs. Business logic receives this struct at construction
// time; nothing below internal/config reads the process environment.
type ShippingConfig struct {
	FromName    string
	FromLine1   string
	FromLine2   string
	FromCity    string
	FromState   string
	FromZip     string
	FromCountry string
	FromPhone   string

	CarrierTimeout time.Duration
	RateCacheTTL   time.Duration

	// FallbackOnLabelFailure makes the orchestrator walk the remaining
	// filtered rates when label creation fails for the cheapest one.
	FallbackOnLabelFailure bool

	FedEx CarrierCredentials
	UPS   CarrierCredentials
}

// CarrierCredentials is one carrier's API endpoint and OAuth client pair.
// A carrier with an empty key or secret is treated as not configured.
type CarrierCredentials struct {
	BaseURL       string
	APIKey        string
	APISecret     string
	AccountNumber string
}

func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("BID_INCREMENT", 100)
	viper.SetDefault("AUCTION_DURATION_DAYS", 10)
	viper.SetDefault("SHIP_FROM_COUNTRY", "US")
	viper.SetDefault("CARRIER_TIMEOUT_SECONDS", 10)
	viper.SetDefault("RATE_CACHE_TTL_MINUTES", 10)
	viper.SetDefault("SHIPPING_FALLBACK_ON_LABEL_FAILURE", false)
	viper.SetDefault("FEDEX_BASE_URL", "https://apis.fedex.com")
	viper.SetDefault("UPS_BASE_URL", "https://onlinetools.ups.com")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
			Env:  viper.GetString("SERVER_ENV"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Auction: AuctionConfig{
			BidIncrement:    viper.GetInt64("BID_INCREMENT"),
			DefaultDuration: time.Duration(viper.GetInt("AUCTION_DURATION_DAYS")) * 24 * time.Hour,
		},
		Shipping: ShippingConfig{
			FromName:    viper.GetString("SHIP_FROM_NAME"),
			FromLine1:   viper.GetString("SHIP_FROM_LINE1"),
			FromLine2:   viper.GetString("SHIP_FROM_LINE2"),
			FromCity:    viper.GetString("SHIP_FROM_CITY"),
			FromState:   viper.GetString("SHIP_FROM_STATE"),
			FromZip:     viper.GetString("SHIP_FROM_ZIP"),
			FromCountry: viper.GetString("SHIP_FROM_COUNTRY"),
			FromPhone:   viper.GetString("SHIP_FROM_PHONE"),

			CarrierTimeout: time.Duration(viper.GetInt("CARRIER_TIMEOUT_SECONDS")) * time.Second,
			RateCacheTTL:   time.Duration(viper.GetInt("RATE_CACHE_TTL_MINUTES")) * time.Minute,

			FallbackOnLabelFailure: viper.GetBool("SHIPPING_FALLBACK_ON_LABEL_FAILURE"),

			FedEx: CarrierCredentials{
				BaseURL:       viper.GetString("FEDEX_BASE_URL"),
				APIKey:        viper.GetString("FEDEX_API_KEY"),
				APISecret:     viper.GetString("FEDEX_API_SECRET"),
				AccountNumber: viper.GetString("FEDEX_ACCOUNT_NUMBER"),
			},
			UPS: CarrierCredentials{
				BaseURL:       viper.GetString("UPS_BASE_URL"),
				APIKey:        viper.GetString("UPS_CLIENT_ID"),
				APISecret:     viper.GetString("UPS_CLIENT_SECRET"),
				AccountNumber: viper.GetString("UPS_ACCOUNT_NUMBER"),
			},
		},
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	return cfg
}

// Validate rejects configuration values that would break the service at
// request time. Viper yields zero for unparseable numeric env values, so a
// mistyped BID_INCREMENT has to be caught here, once, at startup.
func (c *Config) Validate() error {
	if c.Auction.BidIncrement <= 0 {
		return fmt.Errorf("BID_INCREMENT must be a positive number of cents, got %d", c.Auction.BidIncrement)
	}
	if c.Auction.DefaultDuration <= 0 {
		return fmt.Errorf("AUCTION_DURATION_DAYS must be positive")
	}
	if c.Shipping.CarrierTimeout <= 0 {
		return fmt.Errorf("CARRIER_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// Configured reports whether a usable ship-from address was provided.
func (s ShippingConfig) Configured() bool {
	return s.FromLine1 != "" && s.FromCity != "" && s.FromZip != ""
}
