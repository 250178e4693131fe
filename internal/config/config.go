package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the bridge process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	Platform PlatformConfig
	Call     CallConfig
	Redis    RedisConfig
	DB       DBConfig
	Auth     AuthConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// PlatformConfig carries the vendor account and API endpoints shared by the
// RTC and voice APIs.
type PlatformConfig struct {
	AccountID string
	Username  string
	Password  string

	RTCBaseURL   string
	VoiceBaseURL string
}

// CallConfig is the fixed outbound dial plan for the demo console.
type CallConfig struct {
	// ApplicationID is the vendor voice application handling webhooks.
	ApplicationID string

	// AgentNumber is the caller id (FROM) on outbound calls.
	AgentNumber string
	// UserNumber is the number dialed (TO).
	UserNumber string

	// BaseCallbackURL is the public base URL the voice platform can reach;
	// the answer webhook path is appended to it.
	BaseCallbackURL string

	TimeoutSeconds int
}

// RedisConfig enables the durable session/binding stores when Host is set.
type RedisConfig struct {
	Host string
	Port int
}

// DBConfig enables the Postgres call-event repository when Host is set.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

// AuthConfig enables agent console tokens when JWTSecret is set.
type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	TokenTTL    time.Duration

	// ConsoleKey authorizes the token-issuance endpoint.
	ConsoleKey string
}

const (
	defaultRTCBaseURL   = "https://api.webrtc.bandwidth.com/v1"
	defaultVoiceBaseURL = "https://voice.bandwidth.com/api/v2"
)

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.Platform.AccountID = strings.TrimSpace(os.Getenv("PLATFORM_ACCOUNT_ID"))
	c.Platform.Username = strings.TrimSpace(os.Getenv("PLATFORM_USERNAME"))
	c.Platform.Password = os.Getenv("PLATFORM_PASSWORD")
	c.Platform.RTCBaseURL = strings.TrimSpace(os.Getenv("PLATFORM_RTC_URL"))
	c.Platform.VoiceBaseURL = strings.TrimSpace(os.Getenv("PLATFORM_VOICE_URL"))

	c.Call.ApplicationID = strings.TrimSpace(os.Getenv("VOICE_APPLICATION_ID"))
	c.Call.AgentNumber = strings.TrimSpace(os.Getenv("AGENT_NUMBER"))
	c.Call.UserNumber = strings.TrimSpace(os.Getenv("USER_NUMBER"))
	c.Call.BaseCallbackURL = strings.TrimSpace(os.Getenv("BASE_CALLBACK_URL"))
	{
		v := strings.TrimSpace(os.Getenv("CALL_TIMEOUT_SECONDS"))
		if v == "" {
			c.Call.TimeoutSeconds = 30
		} else {
			n, err := strconv.Atoi(v)
			if err != nil {
				parseErrs = append(parseErrs, fmt.Errorf("CALL_TIMEOUT_SECONDS must be an integer, got %q", v))
			}
			c.Call.TimeoutSeconds = n
		}
	}

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if c.Redis.Host != "" {
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	if c.DB.Host != "" {
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Auth.JWTSecret = os.Getenv("AUTH_JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("AUTH_JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("AUTH_JWT_AUDIENCE"))
	{
		d, err := mustDuration("AUTH_TOKEN_TTL")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Auth.TokenTTL = d
	}
	c.Auth.ConsoleKey = os.Getenv("AUTH_CONSOLE_KEY")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Platform.AccountID == "" {
		errs = append(errs, errors.New("PLATFORM_ACCOUNT_ID is required"))
	}
	if c.Platform.Username == "" {
		errs = append(errs, errors.New("PLATFORM_USERNAME is required"))
	}
	if c.Platform.Password == "" {
		errs = append(errs, errors.New("PLATFORM_PASSWORD is required"))
	}
	if c.Platform.RTCBaseURL == "" {
		c.Platform.RTCBaseURL = defaultRTCBaseURL
	}
	if c.Platform.VoiceBaseURL == "" {
		c.Platform.VoiceBaseURL = defaultVoiceBaseURL
	}

	if c.Call.ApplicationID == "" {
		errs = append(errs, errors.New("VOICE_APPLICATION_ID is required"))
	}
	if c.Call.AgentNumber == "" {
		errs = append(errs, errors.New("AGENT_NUMBER is required"))
	}
	if c.Call.UserNumber == "" {
		errs = append(errs, errors.New("USER_NUMBER is required"))
	}
	if c.Call.BaseCallbackURL == "" {
		errs = append(errs, errors.New("BASE_CALLBACK_URL is required"))
	} else if !strings.HasPrefix(c.Call.BaseCallbackURL, "http://") && !strings.HasPrefix(c.Call.BaseCallbackURL, "https://") {
		errs = append(errs, fmt.Errorf("BASE_CALLBACK_URL must be an absolute http(s) URL, got %q", c.Call.BaseCallbackURL))
	}
	if c.Call.TimeoutSeconds <= 0 || c.Call.TimeoutSeconds > 300 {
		errs = append(errs, fmt.Errorf("CALL_TIMEOUT_SECONDS must be between 1 and 300, got %d", c.Call.TimeoutSeconds))
	}

	if c.RedisEnabled() {
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
	}

	if c.PostgresEnabled() {
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required when DB_HOST is set"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required when DB_HOST is set"))
		}
		if c.DB.SSLMode == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				// Local-friendly default; production must be explicit.
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	}

	if c.AuthEnabled() {
		if c.Auth.ConsoleKey == "" {
			errs = append(errs, errors.New("AUTH_CONSOLE_KEY is required when AUTH_JWT_SECRET is set"))
		}
		if c.Auth.TokenTTL <= 0 {
			// Default: agent shift length.
			c.Auth.TokenTTL = 8 * time.Hour
		}
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool { return c.App.Env == "production" }

func (c Config) RedisEnabled() bool { return c.Redis.Host != "" }

func (c Config) PostgresEnabled() bool { return c.DB.Host != "" }

func (c Config) AuthEnabled() bool { return c.Auth.JWTSecret != "" }

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// AnswerURL is the full webhook URL handed to the voice platform.
func (c Config) AnswerURL() string {
	return strings.TrimRight(c.Call.BaseCallbackURL, "/") + "/callAnswered"
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration, got %q", key, v)
	}
	return d, nil
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
