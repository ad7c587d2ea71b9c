// Package config loads application configuration from the environment.
// A .env file in the working directory is loaded first when present so
// local development does not need exported variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/ACI-plugin/aci-commerce-gateway/internal/aci"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/mailer"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/storage"
)

type Config struct {
	Env      string `validate:"oneof=dev staging prod"`
	HTTPAddr string `validate:"required"`

	DatabaseDSN string `validate:"required"`

	// CookieSecret signs the checkout correlation cookie.
	CookieSecret string `validate:"required,min=16"`
	SecureCookie bool

	ACI ACIConfig `validate:"required"`

	SMTP               mailer.Config
	AlertFrom          string
	AlertFromName      string
	NotificationEmails []string

	Storage storage.Config
}

type ACIConfig struct {
	BaseURL            string `validate:"required,url"`
	APIVersion         string `validate:"required"`
	BearerToken        string `validate:"required"`
	EntityID           string `validate:"required"`
	CaptureImmediately bool
	TestMode           string `validate:"omitempty,oneof=EXTERNAL INTERNAL"`
	ForceResultCode    string
	TimeoutSeconds     int `validate:"min=0,max=300"`

	Merchant aci.Merchant
	ThreeDS  aci.ThreeDSecure
}

// Settings converts the validated config into the ACI client settings.
func (c ACIConfig) Settings() aci.Settings {
	timeout := time.Duration(c.TimeoutSeconds) * time.Second
	return aci.Settings{
		BaseURL:            strings.TrimRight(c.BaseURL, "/"),
		APIVersion:         c.APIVersion,
		BearerToken:        c.BearerToken,
		EntityID:           c.EntityID,
		CaptureImmediately: c.CaptureImmediately,
		TestMode:           c.TestMode,
		ForceResultCode:    c.ForceResultCode,
		Merchant:           c.Merchant,
		ThreeDS:            c.ThreeDS,
		Timeout:            timeout,
	}
}

// Load reads the environment, applies defaults and validates the result.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:          envOr("APP_ENV", "dev"),
		HTTPAddr:     envOr("HTTP_ADDR", ":8080"),
		DatabaseDSN:  os.Getenv("DATABASE_DSN"),
		CookieSecret: os.Getenv("COOKIE_SECRET"),
		SecureCookie: envBool("SECURE_COOKIE", false),

		ACI: ACIConfig{
			BaseURL:            envOr("ACI_BASE_URL", "https://eu-test.oppwa.com"),
			APIVersion:         envOr("ACI_API_VERSION", "v1"),
			BearerToken:        os.Getenv("ACI_BEARER_TOKEN"),
			EntityID:           os.Getenv("ACI_ENTITY_ID"),
			CaptureImmediately: envBool("ACI_CAPTURE_IMMEDIATELY", false),
			TestMode:           os.Getenv("ACI_TEST_MODE"),
			ForceResultCode:    os.Getenv("ACI_FORCE_RESULT_CODE"),
			TimeoutSeconds:     envInt("ACI_TIMEOUT_SECONDS", 30),
			Merchant: aci.Merchant{
				Name:     os.Getenv("ACI_MERCHANT_NAME"),
				City:     os.Getenv("ACI_MERCHANT_CITY"),
				Street:   os.Getenv("ACI_MERCHANT_STREET"),
				PostCode: os.Getenv("ACI_MERCHANT_POSTCODE"),
				State:    os.Getenv("ACI_MERCHANT_STATE"),
				Country:  os.Getenv("ACI_MERCHANT_COUNTRY"),
				Phone:    os.Getenv("ACI_MERCHANT_PHONE"),
				MCC:      os.Getenv("ACI_MERCHANT_MCC"),
			},
			ThreeDS: aci.ThreeDSecure{
				Version:            os.Getenv("ACI_3DS_VERSION"),
				ChallengeIndicator: os.Getenv("ACI_3DS_CHALLENGE_INDICATOR"),
				AuthenticationType: os.Getenv("ACI_3DS_AUTHENTICATION_TYPE"),
				ExemptionFlag:      os.Getenv("ACI_3DS_EXEMPTION_FLAG"),
			},
		},

		SMTP: mailer.Config{
			Host:          os.Getenv("SMTP_HOST"),
			Port:          envInt("SMTP_PORT", 587),
			Username:      os.Getenv("SMTP_USERNAME"),
			Password:      os.Getenv("SMTP_PASSWORD"),
			TLSMode:       envOr("SMTP_TLS_MODE", "starttls"),
			SkipVerifyTLS: envBool("SMTP_SKIP_VERIFY_TLS", false),
		},
		AlertFrom:          os.Getenv("ALERT_FROM"),
		AlertFromName:      envOr("ALERT_FROM_NAME", "Payment Gateway"),
		NotificationEmails: splitList(os.Getenv("NOTIFICATION_EMAILS")),

		Storage: storage.Config{
			Driver:   envOr("ARCHIVE_DRIVER", "none"),
			LocalDir: os.Getenv("ARCHIVE_LOCAL_DIR"),
			S3Region: os.Getenv("ARCHIVE_S3_REGION"),
			S3Bucket: os.Getenv("ARCHIVE_S3_BUCKET"),
			S3Prefix: envOr("ARCHIVE_S3_PREFIX", "payment-history"),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
