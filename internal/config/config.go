package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MinBcryptCost is the lowest password hashing cost the service accepts.
const MinBcryptCost = 12

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable; see Load for the names.
type Config struct {
	Env             string        // application environment ("development", "production")
	Port            string        // HTTP port to listen on
	MongoURI        string        // document store connection string
	MongoDatabase   string        // database holding the users and tokens collections
	AccessSecret    string        // HMAC secret for access tokens
	RefreshSecret   string        // HMAC secret for refresh tokens, never equal to AccessSecret
	AccessTTL       time.Duration // access token lifetime
	RefreshTTL      time.Duration // refresh token lifetime
	BcryptCost      int           // bcrypt cost for password hashing
	RotateOnRefresh bool          // middleware refresh also rotates the refresh token
	LoginPath       string        // where denied page requests are redirected
	APIPrefix       string        // denied requests under this prefix get a JSON 401
}

// Production reports whether cookies must carry the Secure attribute.
func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production") || strings.EqualFold(c.Env, "prod")
}

// Load reads a .env file when one is present, then builds the Config from
// the environment. Missing or invalid required values are fatal.
func Load() Config {
	_ = godotenv.Load()
	cfg, err := FromEnv(os.LookupEnv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// FromEnv builds a Config using lookup to resolve variables. It never falls
// back to a default for secrets.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	var errs []error
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}
	must := func(key string) string {
		v := get(key, "")
		if v == "" {
			errs = append(errs, fmt.Errorf("missing required env var: %s", key))
		}
		return v
	}
	dur := func(key, def string) time.Duration {
		s := get(key, def)
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("invalid duration for %s: %q", key, s))
		}
		return d
	}

	cfg := Config{
		Env:           get("APP_ENV", "development"),
		Port:          get("APP_PORT", "8080"),
		MongoURI:      must("MONGODB_URI"),
		MongoDatabase: get("MONGODB_DATABASE", "dog_adoption"),
		AccessSecret:  must("ACCESS_TOKEN_SECRET"),
		RefreshSecret: must("REFRESH_TOKEN_SECRET"),
		AccessTTL:     dur("ACCESS_TOKEN_TTL", "1h"),
		RefreshTTL:    dur("REFRESH_TOKEN_TTL", "168h"),
		LoginPath:     get("SESSION_LOGIN_PATH", "/login"),
		APIPrefix:     get("SESSION_API_PREFIX", "/api"),
	}

	costStr := get("BCRYPT_COST", strconv.Itoa(MinBcryptCost))
	cost, err := strconv.Atoi(costStr)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("invalid int for BCRYPT_COST: %q", costStr))
	case cost < MinBcryptCost || cost > 31:
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and 31, got %d", MinBcryptCost, cost))
	}
	cfg.BcryptCost = cost

	rotate, err := strconv.ParseBool(get("SESSION_ROTATE_ON_REFRESH", "true"))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid bool for SESSION_ROTATE_ON_REFRESH: %w", err))
	}
	cfg.RotateOnRefresh = rotate

	if cfg.AccessSecret != "" && cfg.AccessSecret == cfg.RefreshSecret {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ"))
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
