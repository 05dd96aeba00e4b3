package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_DSN", "user:pass@tcp(localhost:3306)/sigesmen?parseTime=true")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Channel != "sms-modem" {
		t.Errorf("Channel = %s, want sms-modem", cfg.Channel)
	}
	if cfg.DBDriver != "mysql" {
		t.Errorf("DBDriver = %s, want mysql", cfg.DBDriver)
	}
	if cfg.Sleep != 10*time.Second {
		t.Errorf("Sleep = %v, want 10s", cfg.Sleep)
	}
	if cfg.SendRetries != 3 || cfg.RetryDelay != 2*time.Second {
		t.Errorf("SendRetries/RetryDelay = %d/%v, want 3/2s", cfg.SendRetries, cfg.RetryDelay)
	}
	if cfg.WatchdogInterval != time.Minute || cfg.WatchdogTimeout != 5*time.Minute {
		t.Errorf("watchdog = %v/%v, want 1m/5m", cfg.WatchdogInterval, cfg.WatchdogTimeout)
	}
	if cfg.Cooldown != time.Minute {
		t.Errorf("Cooldown = %v, want 1m", cfg.Cooldown)
	}
	if cfg.ModemBaudRate != 115200 {
		t.Errorf("ModemBaudRate = %d, want 115200", cfg.ModemBaudRate)
	}
	if cfg.EmailSubject != "Sistema de Mensajes" {
		t.Errorf("EmailSubject = %q", cfg.EmailSubject)
	}
	if cfg.ObservationsTable != "telegram_observaciones" {
		t.Errorf("ObservationsTable = %s", cfg.ObservationsTable)
	}
	if cfg.RedisURL != "" || cfg.RabbitMQURL != "" {
		t.Errorf("optional URLs should default to empty")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CHANNEL", "whatsapp")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("SLEEP", "3s")
	t.Setenv("COOLDOWN", "0s")
	t.Setenv("EVENT_TRIGGER_PATTERN", "robo|asalto")
	t.Setenv("API_PORT", "9090")
	t.Setenv("TELEGRAM_WEBHOOK_SECRET", "hook-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Channel != "whatsapp" || cfg.DBDriver != "postgres" {
		t.Errorf("Channel/DBDriver = %s/%s", cfg.Channel, cfg.DBDriver)
	}
	if cfg.Sleep != 3*time.Second {
		t.Errorf("Sleep = %v, want 3s", cfg.Sleep)
	}
	if cfg.Cooldown != 0 {
		t.Errorf("Cooldown = %v, want 0", cfg.Cooldown)
	}
	if cfg.EventTriggerPattern != "robo|asalto" {
		t.Errorf("EventTriggerPattern = %q", cfg.EventTriggerPattern)
	}
	if cfg.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", cfg.APIPort)
	}
	if cfg.TelegramWebhookSecret != "hook-secret" {
		t.Errorf("TelegramWebhookSecret = %q", cfg.TelegramWebhookSecret)
	}
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "")

	path := filepath.Join(t.TempDir(), "gateway.env")
	if err := os.WriteFile(path, []byte("BATCH_LIMIT=25\nTELEGRAM_TOKEN=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("BATCH_LIMIT") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BatchLimit != 25 {
		t.Errorf("BatchLimit = %d, want 25", cfg.BatchLimit)
	}
	// godotenv never overrides a variable that is already set, even to "".
	if cfg.TelegramToken != "" {
		t.Errorf("TelegramToken = %q, want the environment value", cfg.TelegramToken)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_DSN", "")
	os.Unsetenv("DATABASE_DSN")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err == nil {
		t.Fatal("expected error for missing DATABASE_DSN")
	}
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_DRIVER", "sqlite")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatal("expected error for unsupported DB_DRIVER")
	}
}

func TestSMTPAccounts(t *testing.T) {
	cfg := &Config{
		SMTPHost:         "smtp.primary.test",
		SMTPPort:         587,
		SMTPFrom:         "alertas@integralcom.test",
		SMTPFallbackHost: "smtp.fallback.test",
		SMTPFallbackPort: 465,
	}

	accounts := cfg.SMTPAccounts()
	if len(accounts) != 2 {
		t.Fatalf("accounts = %d, want 2", len(accounts))
	}
	if accounts[0].Host != "smtp.primary.test" || accounts[1].Port != 465 {
		t.Fatalf("accounts = %+v", accounts)
	}

	if got := (&Config{}).SMTPAccounts(); len(got) != 0 {
		t.Fatalf("accounts = %+v, want none", got)
	}
}
