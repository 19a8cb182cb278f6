package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultCognitoDomain      = "ap-south-16aqpga9c3.auth.ap-south-1.amazoncognito.com"
	defaultCognitoClientID    = "20c4860ta5pmnmmn8nle519oth"
	defaultCognitoRedirectURI = "https://d1540vq6lr6647.cloudfront.net/auth/callback"
	defaultAPIBaseURL         = "https://32s82kvzrc.execute-api.ap-south-1.amazonaws.com"
	defaultCheckoutScriptURL  = "https://checkout.razorpay.com/v1/checkout.js"

	defaultDownloadMacArm64 = "https://stealthbuddy.ai/downloads/macos/stealthbuddy-mac-arm64.dmg"
	defaultDownloadMacIntel = "https://stealthbuddy.ai/downloads/macos/stealthbuddy-mac-intel.dmg"
	defaultDownloadWindows  = "https://stealthbuddy.ai/downloads/windows/stealthbuddy-windows.exe"
)

// Response types accepted by the identity provider's authorize endpoint.
const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// Logout modes.
const (
	LogoutModeProvider = "provider"
	LogoutModeLocal    = "local"
)

// Config aggregates runtime configuration for the StealthBuddy web service.
type Config struct {
	Environment    string
	HTTPPort       int
	LogLevel       string
	LogFormat      string
	AllowedOrigins []string
	DataStore      string
	DatabaseURL    string

	Identity  IdentityConfig
	API       APIConfig
	Downloads DownloadConfig
	Checkout  CheckoutConfig

	MetricsEnabled bool
	OTLPEndpoint   string
	NATSURL        string
}

// IdentityConfig describes the hosted login provider.
type IdentityConfig struct {
	Domain            string
	ClientID          string
	ClientSecret      string
	RedirectURI       string
	IssuerURL         string
	ResponseType      string
	Scopes            []string
	LogoutMode        string
	LogoutRedirectURI string
	DefaultTokenTTL   time.Duration
}

// APIConfig points at the credits/payments backend.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// DownloadConfig holds the desktop client download links.
type DownloadConfig struct {
	MacArm64 string
	MacIntel string
	Windows  string
}

// CheckoutConfig configures the hosted checkout widget.
type CheckoutConfig struct {
	ScriptURL     string
	ThemeColor    string
	AttemptTTL    time.Duration
	RatePerMinute int
}

// Load reads configuration from environment variables, falling back to the production endpoints.
func Load() (Config, error) {
	databaseURL, err := getEnvOrFile("DATABASE_URL", "/run/secrets/stealthbuddy_database_url")
	if err != nil {
		return Config{}, err
	}

	clientSecret, err := getEnvOrFile("COGNITO_CLIENT_SECRET", "/run/secrets/stealthbuddy_cognito_client_secret")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment:    strings.ToLower(getEnv("APP_ENV", viteEnv("APP_ENV", "production"))),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "text")),
		AllowedOrigins: parseCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080")),
		DataStore:      strings.ToLower(getEnv("DATA_STORE", "memory")),
		DatabaseURL:    strings.TrimSpace(databaseURL),
		Identity: IdentityConfig{
			Domain:            strings.TrimSuffix(getEnv("COGNITO_DOMAIN", viteEnv("COGNITO_DOMAIN", defaultCognitoDomain)), "/"),
			ClientID:          getEnv("COGNITO_CLIENT_ID", viteEnv("COGNITO_CLIENT_ID", defaultCognitoClientID)),
			ClientSecret:      strings.TrimSpace(clientSecret),
			RedirectURI:       getEnv("COGNITO_REDIRECT_URI", viteEnv("COGNITO_REDIRECT_URI", defaultCognitoRedirectURI)),
			IssuerURL:         getEnv("COGNITO_ISSUER_URL", ""),
			ResponseType:      strings.ToLower(getEnv("COGNITO_RESPONSE_TYPE", ResponseTypeCode)),
			Scopes:            parseCSV(getEnv("COGNITO_SCOPES", "openid,email,profile")),
			LogoutMode:        strings.ToLower(getEnv("AUTH_LOGOUT_MODE", LogoutModeProvider)),
			LogoutRedirectURI: getEnv("AUTH_LOGOUT_REDIRECT_URI", ""),
		},
		API: APIConfig{
			BaseURL: strings.TrimRight(getEnv("API_BASE_URL", viteEnv("API_BASE_URL", defaultAPIBaseURL)), "/"),
		},
		Downloads: DownloadConfig{
			MacArm64: getEnv("DOWNLOAD_MAC_ARM64_URL", defaultDownloadMacArm64),
			MacIntel: getEnv("DOWNLOAD_MAC_INTEL_URL", defaultDownloadMacIntel),
			Windows:  getEnv("DOWNLOAD_WINDOWS_URL", defaultDownloadWindows),
		},
		Checkout: CheckoutConfig{
			ScriptURL:  getEnv("CHECKOUT_SCRIPT_URL", defaultCheckoutScriptURL),
			ThemeColor: getEnv("CHECKOUT_THEME_COLOR", "#3B82F6"),
		},
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		NATSURL:      getEnv("NATS_URL", ""),
	}

	portValue := getEnv("PORT", getEnv("HTTP_PORT", "8080"))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return Config{}, fmt.Errorf("invalid port %q: %w", portValue, err)
	}
	cfg.HTTPPort = port

	if cfg.Identity.DefaultTokenTTL, err = getDuration("SESSION_DEFAULT_TTL", time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.API.Timeout, err = getDuration("API_TIMEOUT", 12*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Checkout.AttemptTTL, err = getDuration("CHECKOUT_ATTEMPT_TTL", 30*time.Minute); err != nil {
		return Config{}, err
	}

	rateValue := getEnv("CHECKOUT_RATE_PER_MINUTE", "10")
	cfg.Checkout.RatePerMinute, err = strconv.Atoi(rateValue)
	if err != nil || cfg.Checkout.RatePerMinute <= 0 {
		return Config{}, fmt.Errorf("invalid CHECKOUT_RATE_PER_MINUTE %q", rateValue)
	}

	metricsValue := getEnv("METRICS_ENABLED", "true")
	cfg.MetricsEnabled, err = strconv.ParseBool(metricsValue)
	if err != nil {
		return Config{}, fmt.Errorf("invalid METRICS_ENABLED %q: %w", metricsValue, err)
	}

	if cfg.Identity.LogoutRedirectURI == "" {
		cfg.Identity.LogoutRedirectURI = siteRoot(cfg.Identity.RedirectURI)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	switch c.DataStore {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATA_STORE is postgres but DATABASE_URL is not set")
		}
	default:
		return fmt.Errorf("unsupported DATA_STORE %q", c.DataStore)
	}

	switch c.Identity.ResponseType {
	case ResponseTypeCode, ResponseTypeToken:
	default:
		return fmt.Errorf("unsupported COGNITO_RESPONSE_TYPE %q", c.Identity.ResponseType)
	}

	switch c.Identity.LogoutMode {
	case LogoutModeProvider, LogoutModeLocal:
	default:
		return fmt.Errorf("unsupported AUTH_LOGOUT_MODE %q", c.Identity.LogoutMode)
	}

	if c.Identity.Domain == "" || c.Identity.ClientID == "" {
		return errors.New("COGNITO_DOMAIN and COGNITO_CLIENT_ID are required")
	}

	if _, err := url.ParseRequestURI(c.Identity.RedirectURI); err != nil {
		return fmt.Errorf("invalid COGNITO_REDIRECT_URI %q: %w", c.Identity.RedirectURI, err)
	}

	if _, err := url.ParseRequestURI(c.API.BaseURL); err != nil {
		return fmt.Errorf("invalid API_BASE_URL %q: %w", c.API.BaseURL, err)
	}

	// A pending attempt must outlive its own order request.
	if c.Checkout.AttemptTTL <= c.API.Timeout {
		return fmt.Errorf("CHECKOUT_ATTEMPT_TTL (%s) must exceed API_TIMEOUT (%s)", c.Checkout.AttemptTTL, c.API.Timeout)
	}

	if !c.IsDevelopment() {
		for _, origin := range c.AllowedOrigins {
			if origin == "*" {
				return errors.New("ALLOWED_ORIGINS cannot contain wildcard outside development")
			}
		}
	}

	return nil
}

// HTTPAddress returns the address the HTTP server should bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// UseInMemoryStore returns true if sessions live in process memory.
func (c Config) UseInMemoryStore() bool {
	return c.DataStore == "memory"
}

// IsDevelopment reports whether the service runs in a local development environment.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// viteEnv honours the build-time variable names used by the previous frontend deployment.
func viteEnv(key, fallback string) string {
	return getEnv("VITE_"+key, fallback)
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return value, nil
}

func siteRoot(redirectURI string) string {
	parsed, err := url.Parse(redirectURI)
	if err != nil || parsed.Host == "" {
		return "/"
	}
	return parsed.Scheme + "://" + parsed.Host + "/"
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrFile(key, defaultPath string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	fileKey := key + "_FILE"
	if path := os.Getenv(fileKey); path != "" {
		return readSecret(path, fileKey)
	}

	if defaultPath != "" {
		return readSecret(defaultPath, key)
	}

	return "", nil
}

func readSecret(path, name string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: reading %s (%s): %w", name, path, err)
	}

	value := strings.TrimSpace(string(contents))
	if value == "" {
		return "", fmt.Errorf("config: %s (%s) is empty", name, path)
	}
	return value, nil
}
