package settings

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings holds the runtime configuration for the decision engine. Values
// come from the environment (optionally seeded from a .env file); every knob
// has a default so a bare process still runs with the standard policy.
type Settings struct {
	HTTPAddr    string
	DatabaseURL string
	JWTSecret   string

	AllowedHourStart int
	AllowedHourEnd   int
	DailyMessageCap  int
	DefaultTimezone  string
	ExcludedStages   []string

	ScanBatchSize  int
	RunCeiling     int
	ScanInterval   time.Duration
	SilentAfter    time.Duration
	DormantAfter   time.Duration
	RevivalAfter   time.Duration
	HandoffStale   time.Duration
	ScriptsPath    string
	WebhookSecret  string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// Load reads settings from the environment. A missing .env file is not an
// error; explicit environment variables always win over file values.
func Load() (Settings, error) {
	_ = godotenv.Load()

	s := Settings{
		HTTPAddr:         envString("HTTP_ADDR", ":8080"),
		DatabaseURL:      envString("DATABASE_URL", ""),
		JWTSecret:        envString("JWT_SECRET", ""),
		AllowedHourStart: envInt("COMPLIANCE_HOUR_START", 8),
		AllowedHourEnd:   envInt("COMPLIANCE_HOUR_END", 20),
		DailyMessageCap:  envInt("COMPLIANCE_DAILY_CAP", 30),
		DefaultTimezone:  envString("DEFAULT_TIMEZONE", "America/Denver"),
		ExcludedStages:   envCSV("EXCLUDED_STAGES"),
		ScanBatchSize:    envInt("SCAN_BATCH_SIZE", 30),
		RunCeiling:       envInt("RUN_ACTION_CEILING", 100),
		ScanInterval:     envDuration("SCAN_INTERVAL", 15*time.Minute),
		SilentAfter:      envDuration("SILENT_AFTER", 24*time.Hour),
		DormantAfter:     envDuration("DORMANT_AFTER", 30*24*time.Hour),
		RevivalAfter:     envDuration("REVIVAL_AFTER", 90*24*time.Hour),
		HandoffStale:     envDuration("HANDOFF_STALE_AFTER", 48*time.Hour),
		ScriptsPath:      envString("OBJECTION_SCRIPTS_PATH", ""),
		WebhookSecret:    envString("WEBHOOK_SECRET", ""),
		TwilioAccountSID: envString("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  envString("TWILIO_AUTH_TOKEN", ""),
		TwilioFrom:       envString("TWILIO_FROM_NUMBER", ""),
		SMTPHost:         envString("SMTP_HOST", ""),
		SMTPPort:         envInt("SMTP_PORT", 587),
		SMTPUsername:     envString("SMTP_USERNAME", ""),
		SMTPPassword:     envString("SMTP_PASSWORD", ""),
		SMTPFrom:         envString("SMTP_FROM", ""),
	}
	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) validate() error {
	if s.AllowedHourStart < 0 || s.AllowedHourStart > 23 {
		return fmt.Errorf("invalid COMPLIANCE_HOUR_START: %d", s.AllowedHourStart)
	}
	if s.AllowedHourEnd < 1 || s.AllowedHourEnd > 24 {
		return fmt.Errorf("invalid COMPLIANCE_HOUR_END: %d", s.AllowedHourEnd)
	}
	if s.AllowedHourEnd <= s.AllowedHourStart {
		return fmt.Errorf("allowed hours window is empty: %d-%d", s.AllowedHourStart, s.AllowedHourEnd)
	}
	if s.DailyMessageCap <= 0 {
		return fmt.Errorf("invalid COMPLIANCE_DAILY_CAP: %d", s.DailyMessageCap)
	}
	if s.RunCeiling <= 0 {
		return fmt.Errorf("invalid RUN_ACTION_CEILING: %d", s.RunCeiling)
	}
	return nil
}

func envString(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envCSV(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
