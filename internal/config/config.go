package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AlipayConfig enumerates exactly the payment parameters the gateway client
// recognizes. Key material is loaded from PEM files at startup.
type AlipayConfig struct {
	AppID          string
	NotifyURL      string
	ReturnURL      string
	PrivateKeyPath string
	PublicKeyPath  string
	Sandbox        bool
}

type Config struct {
	ServiceName string
	ServerPort  int
	LogLevel    string

	DatabaseURL string

	JWTSecret     []byte
	RefreshSecret []byte

	KafkaBrokers []string

	ESURL        string
	ESUser       string
	ESPassword   string
	ProductIndex string

	RedisAddr     string
	RedisPassword string

	SMSAPIKey string

	FrontendURL string

	Alipay AlipayConfig
}

func Load() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env file not found: %v, using system environment", err)
	}

	return &Config{
		ServiceName: EnvDefault("SERVICE_NAME", "mxshop"),
		ServerPort:  EnvIntDefault("SERVER_PORT", 8080),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTSecret:     []byte(os.Getenv("JWT_SECRET")),
		RefreshSecret: []byte(os.Getenv("JWT_REFRESH_SECRET")),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		ESURL:        os.Getenv("ES_URL"),
		ESUser:       os.Getenv("ES_USER"),
		ESPassword:   os.Getenv("ES_PASSWORD"),
		ProductIndex: EnvDefault("ES_PRODUCT_INDEX", "products"),

		RedisAddr:     EnvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		SMSAPIKey: os.Getenv("SMS_API_KEY"),

		FrontendURL: EnvDefault("FRONTEND_URL", "/"),

		Alipay: AlipayConfig{
			AppID:          os.Getenv("ALIPAY_APP_ID"),
			NotifyURL:      os.Getenv("ALIPAY_NOTIFY_URL"),
			ReturnURL:      os.Getenv("ALIPAY_RETURN_URL"),
			PrivateKeyPath: os.Getenv("ALIPAY_PRIVATE_KEY_PATH"),
			PublicKeyPath:  os.Getenv("ALIPAY_PUBLIC_KEY_PATH"),
			Sandbox:        EnvBoolDefault("ALIPAY_SANDBOX", true),
		},
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if os.Getenv(key) != "" {
		return os.Getenv(key)
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}

func MustNonEmptyBytes(value []byte, envName string) {
	if len(value) == 0 {
		log.Fatalf("missing required env %s", envName)
	}
}
