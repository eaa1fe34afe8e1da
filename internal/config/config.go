package config // package config loads application configuration from environment variables

import (
	"log" // log is used to report configuration errors and halt execution
	"os"  // os provides access to environment variables
	"strings"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Required database settings are enforced by must();
// everything else falls back to a development-friendly default.
type Config struct {
	Env               string // application environment ("development", "production")
	Port              string // HTTP port to listen on
	LogLevel          string // zap level name
	DBUser            string // database username
	DBPass            string // database password (optional)
	DBHost            string // database host address
	DBPort            string // database port number
	DBName            string // database name
	BcryptCost        int    // bcrypt cost for password hashing
	SessionCookieName string // name of the session cookie
	WebOrigin         string // allowed browser origin for CORS and the origin check
	AppBaseURL        string // base URL used in password reset links

	Admin   AdminConfig
	SMTP    SMTPConfig
	Payment PaymentConfig

	RabbitURL string // empty disables the password reset queue
}

// AdminConfig identifies the platform operator account and its step-up password.
type AdminConfig struct {
	Email    string
	Phone    string
	Password string
}

// SMTPConfig configures outgoing mail.  An empty Host disables SMTP delivery.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// PaymentConfig carries the manual payment instructions shown to shops.
type PaymentConfig struct {
	MomoNumber        string
	MomoName          string
	BankName          string
	BankAccountName   string
	BankAccountNumber string
}

// Load reads configuration values from environment variables and returns a
// Config.  Missing required variables cause the program to exit.
func Load() Config {
	return Config{
		Env:               envStr("APP_ENV", "development"),
		Port:              envStr("API_PORT", envStr("APP_PORT", "4000")),
		LogLevel:          envStr("LOG_LEVEL", "info"),
		DBUser:            must("DB_USER"),
		DBPass:            os.Getenv("DB_PASS"),
		DBHost:            must("DB_HOST"),
		DBPort:            must("DB_PORT"),
		DBName:            must("DB_NAME"),
		BcryptCost:        envInt("BCRYPT_COST", 12),
		SessionCookieName: envStr("SESSION_COOKIE_NAME", "mysocial_session"),
		WebOrigin:         strings.TrimRight(os.Getenv("WEB_ORIGIN"), "/"),
		AppBaseURL:        strings.TrimRight(envStr("APP_BASE_URL", "http://localhost:3000"), "/"),
		Admin: AdminConfig{
			Email:    strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))),
			Phone:    strings.TrimSpace(os.Getenv("ADMIN_PHONE")),
			Password: os.Getenv("ADMIN_PASSWORD"),
		},
		SMTP: SMTPConfig{
			Host: os.Getenv("SMTP_HOST"),
			Port: envInt("SMTP_PORT", 587),
			User: os.Getenv("SMTP_USER"),
			Pass: os.Getenv("SMTP_PASS"),
			From: envStr("SMTP_FROM", "MySocial <no-reply@mysocial.app>"),
		},
		Payment: PaymentConfig{
			MomoNumber:        os.Getenv("MYSOCIAL_MOMO_NUMBER"),
			MomoName:          os.Getenv("MYSOCIAL_MOMO_NAME"),
			BankName:          os.Getenv("MYSOCIAL_BANK_NAME"),
			BankAccountName:   os.Getenv("MYSOCIAL_BANK_ACCOUNT_NAME"),
			BankAccountNumber: os.Getenv("MYSOCIAL_BANK_ACCOUNT_NUMBER"),
		},
		RabbitURL: envStr("RABBITMQ_URL", os.Getenv("AMQP_URL")),
	}
}

// IsProduction reports whether the process runs with APP_ENV=production.
func (c Config) IsProduction() bool { return c.Env == "production" }

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
