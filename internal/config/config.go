package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string

	MailProvider        string
	MailFolder          string
	MailProcessedFolder string
	MailSentFolder      string
	MailFrom            string
	MailFromName        string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	GAURL               string
	GAEmail             string
	GAPassword          string
	GADownloadDir       string
	GAHeadless          bool
	GATimeoutSec        int
	GASearchDelaySec    int
	GARequestsPerMinute int
	GAFamilySearchTerm  string

	TeamsWebhookURL string
	TeamsTimeoutMs  int

	ListenerIntervalSec int

	LogLevel  string
	LogFormat string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	imapUser := getEnv("IMAP_USER", "")
	imapPassword := getEnv("IMAP_PASSWORD", "")

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "journal.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "resultados")),

		MailProvider:        getEnv("MAIL_PROVIDER", "imap"),
		MailFolder:          getEnv("MAIL_FOLDER", "Processamento Correios"),
		MailProcessedFolder: getEnv("MAIL_PROCESSED_FOLDER", "Correios Processados"),
		MailSentFolder:      getEnv("MAIL_SENT_FOLDER", "Sent"),
		MailFrom:            getEnv("MAIL_FROM", imapUser),
		MailFromName:        getEnv("MAIL_FROM_NAME", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     imapUser,
		IMAPPassword: imapPassword,

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", imapUser),
		SMTPPassword: getEnv("SMTP_PASSWORD", imapPassword),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		GAURL:               getEnv("GA_URL", "https://ga.flashcourier.com.br/logs"),
		GAEmail:             getEnv("GA_EMAIL", ""),
		GAPassword:          getEnv("GA_PASSWORD", getEnv("GA_SENHA", "")),
		GADownloadDir:       getEnv("GA_DOWNLOAD_DIR", filepath.Join(cwd, "downloads")),
		GAHeadless:          getEnvBool("GA_HEADLESS", true),
		GATimeoutSec:        getEnvInt("GA_TIMEOUT_SEC", 60),
		GASearchDelaySec:    getEnvInt("GA_SEARCH_DELAY_SEC", 5),
		GARequestsPerMinute: getEnvInt("GA_REQUESTS_PER_MINUTE", 30),
		GAFamilySearchTerm:  getEnv("GA_FAMILY_SEARCH_TERM", "ELO-RE"),

		TeamsWebhookURL: getEnv("TEAMS_WEBHOOK_URL", ""),
		TeamsTimeoutMs:  getEnvInt("TEAMS_TIMEOUT_MS", 15000),

		ListenerIntervalSec: getEnvInt("LISTENER_INTERVAL_SEC", 1800),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", ""),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func (c Config) GATimeout() time.Duration {
	return time.Duration(c.GATimeoutSec) * time.Second
}

func (c Config) ListenerInterval() time.Duration {
	if c.ListenerIntervalSec <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.ListenerIntervalSec) * time.Second
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
