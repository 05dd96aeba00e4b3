package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	Channel  string `env:"CHANNEL,default=sms-modem"`
	APIPort  int    `env:"API_PORT,default=8080"`
	IVRPort  int    `env:"IVR_PORT,default=5000"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	DBDriver          string        `env:"DB_DRIVER,default=mysql"`
	DatabaseDSN       string        `env:"DATABASE_DSN,required=true"`
	DBAutoMigrate     bool          `env:"DB_AUTO_MIGRATE,default=false"`
	DBConnectRetries  int           `env:"DB_CONNECT_RETRIES,default=3"`
	DBRetryDelay      time.Duration `env:"DB_RETRY_DELAY,default=5s"`
	ObservationsTable string        `env:"OBSERVATIONS_TABLE,default=telegram_observaciones"`

	Sleep                time.Duration `env:"SLEEP,default=10s"`
	BatchLimit           int           `env:"BATCH_LIMIT,default=100"`
	MaxConsecutiveErrors int           `env:"MAX_CONSECUTIVE_ERRORS,default=5"`
	SendRetries          int           `env:"SEND_RETRIES,default=3"`
	RetryDelay           time.Duration `env:"RETRY_DELAY,default=2s"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,default=30s"`
	DeliveryRetention    time.Duration `env:"DELIVERY_RETENTION,default=1h"`
	WatchdogInterval     time.Duration `env:"WATCHDOG_INTERVAL,default=60s"`
	WatchdogTimeout      time.Duration `env:"WATCHDOG_TIMEOUT,default=300s"`
	Cooldown             time.Duration `env:"COOLDOWN,default=60s"`
	EventTriggerPattern  string        `env:"EVENT_TRIGGER_PATTERN"`

	RedisURL        string `env:"REDIS_URL"`
	RateLimitPerSec int    `env:"RATE_LIMIT_PER_SEC,default=5"`
	RabbitMQURL     string `env:"RABBITMQ_URL"`

	ModemPort              string `env:"MODEM_PORT"`
	ModemBaudRate          int    `env:"MODEM_BAUDRATE,default=115200"`
	ModemPIN               string `env:"MODEM_PIN"`
	ModemReconnectAttempts int    `env:"MODEM_RECONNECT_ATTEMPTS,default=3"`

	TwilioAccountSID     string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken      string `env:"TWILIO_AUTH_TOKEN"`
	TwilioNumber         string `env:"TWILIO_NUMBER"`
	TwilioWhatsAppNumber string `env:"TWILIO_WHATSAPP_NUMBER"`
	TwilioBaseURL        string `env:"TWILIO_BASE_URL"`
	IVRBaseURL           string `env:"IVR_BASE_URL"`

	// TelegramWebhookSecret must match the secret_token given to setWebhook.
	TelegramToken         string `env:"TELEGRAM_TOKEN"`
	TelegramBaseURL       string `env:"TELEGRAM_BASE_URL"`
	TelegramWebhookSecret string `env:"TELEGRAM_WEBHOOK_SECRET"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	SMTPFallbackHost     string `env:"SMTP_FALLBACK_HOST"`
	SMTPFallbackPort     int    `env:"SMTP_FALLBACK_PORT,default=587"`
	SMTPFallbackUser     string `env:"SMTP_FALLBACK_USER"`
	SMTPFallbackPassword string `env:"SMTP_FALLBACK_PASSWORD"`
	SMTPFallbackFrom     string `env:"SMTP_FALLBACK_FROM"`

	EmailSubject string `env:"EMAIL_SUBJECT,default=Sistema de Mensajes"`
	AlertEmailTo string `env:"ALERT_EMAIL_TO"`
}

// Load reads .env files, when present, and then the environment. Values
// already set in the environment win over .env entries.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		// A missing file is fine; the environment alone may be enough.
		_ = godotenv.Load(file)
	}

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.DBDriver)) {
	case "mysql", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("COOLDOWN must not be negative")
	}
	if c.SendRetries < 1 {
		return fmt.Errorf("SEND_RETRIES must be at least 1")
	}
	return nil
}

type SMTPSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPAccounts lists the primary account then the fallback, skipping any
// without a host.
func (c *Config) SMTPAccounts() []SMTPSettings {
	accounts := make([]SMTPSettings, 0, 2)
	if strings.TrimSpace(c.SMTPHost) != "" {
		accounts = append(accounts, SMTPSettings{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.SMTPUser,
			Password: c.SMTPPassword,
			From:     c.SMTPFrom,
		})
	}
	if strings.TrimSpace(c.SMTPFallbackHost) != "" {
		accounts = append(accounts, SMTPSettings{
			Host:     c.SMTPFallbackHost,
			Port:     c.SMTPFallbackPort,
			Username: c.SMTPFallbackUser,
			Password: c.SMTPFallbackPassword,
			From:     c.SMTPFallbackFrom,
		})
	}
	return accounts
}
