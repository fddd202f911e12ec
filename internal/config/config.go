package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/assetsync/internal/safemath"
	"gopkg.in/yaml.v3"
)

// ErrMissingEnv is wrapped with the name of a required setting that has no value.
var ErrMissingEnv = errors.New("missing required environment variable")

// Config holds environment-driven configuration.
type Config struct {
	NinjaBaseURL string
	NinjaAPIKey  string
	FreshBaseURL string
	FreshAPIKey  string

	AssetDefaultLocation string
	AssetSourceTag       string
	DryRun               bool

	MaxConcurrency int
	RateLimitRPM   int
	HTTPTimeout    time.Duration
	CacheTTL       time.Duration

	Port     string
	MongoURI string
	MongoDB  string
	APIKeys  []string
}

// source resolves a setting from the environment first, then from an optional
// YAML file whose keys are the lowercased variable names.
type source struct {
	file map[string]any
}

func (s source) raw(key string) (any, bool) {
	if v := os.Getenv(key); v != "" {
		return v, true
	}
	if v, ok := s.file[strings.ToLower(key)]; ok && v != nil {
		return v, true
	}
	return nil, false
}

func (s source) getenv(key, def string) string {
	v, ok := s.raw(key)
	if !ok {
		return def
	}
	if str := strings.TrimSpace(fmt.Sprint(v)); str != "" {
		return str
	}
	return def
}

func (s source) required(key string) (string, error) {
	v := s.getenv(key, "")
	if v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, key)
	}
	return v, nil
}

// getint coerces the setting and clamps it into [lo, hi]. Values that are not
// numbers fall back to def.
func (s source) getint(key string, def, lo, hi int) int {
	v, ok := s.raw(key)
	if !ok {
		return def
	}
	n, err := safemath.Clamp(safemath.Of(v),
		safemath.Bound(safemath.Int(int64(lo))),
		safemath.Bound(safemath.Int(int64(hi))))
	if err != nil {
		return def
	}
	return int(n)
}

func (s source) getdur(key string, def time.Duration) time.Duration {
	v, ok := s.raw(key)
	if !ok {
		return def
	}
	if d, err := time.ParseDuration(fmt.Sprint(v)); err == nil && d > 0 {
		return d
	}
	return def
}

func (s source) getbool(key string, def bool) bool {
	v, ok := s.raw(key)
	if !ok {
		return def
	}
	if b, ok := v.(bool); ok {
		return b
	}
	switch strings.ToLower(strings.TrimSpace(fmt.Sprint(v))) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

func (s source) getlist(key string) []string {
	var out []string
	for _, p := range strings.Split(s.getenv(key, ""), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func readFile(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	m := map[string]any{}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return m, nil
}

// Load reads configuration from the environment, layered over the YAML file
// named by ASSETSYNC_CONFIG when set.
func Load() (Config, error) {
	return LoadFile(os.Getenv("ASSETSYNC_CONFIG"))
}

// LoadFile is Load with an explicit YAML file path. An empty path means
// environment only.
func LoadFile(path string) (Config, error) {
	file, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	s := source{file: file}

	var c Config
	for _, r := range []struct {
		key string
		dst *string
	}{
		{"NINJAONE_BASE_URL", &c.NinjaBaseURL},
		{"NINJAONE_API_KEY", &c.NinjaAPIKey},
		{"FRESHSERVICE_BASE_URL", &c.FreshBaseURL},
		{"FRESHSERVICE_API_KEY", &c.FreshAPIKey},
	} {
		if *r.dst, err = s.required(r.key); err != nil {
			return Config{}, err
		}
	}
	c.NinjaBaseURL = strings.TrimRight(c.NinjaBaseURL, "/")
	c.FreshBaseURL = strings.TrimRight(c.FreshBaseURL, "/")

	c.AssetDefaultLocation = s.getenv("ASSET_DEFAULT_LOCATION", "")
	c.AssetSourceTag = s.getenv("ASSET_SOURCE_TAG", "")
	c.DryRun = s.getbool("DRY_RUN", false)

	c.MaxConcurrency = s.getint("MAX_CONCURRENCY", 4, 1, 32)
	c.RateLimitRPM = s.getint("RATE_LIMIT_RPM", 120, 1, 6000)
	c.HTTPTimeout = s.getdur("HTTP_TIMEOUT", 15*time.Second)
	c.CacheTTL = s.getdur("CACHE_TTL", 10*time.Minute)

	c.Port = strings.TrimPrefix(s.getenv("PORT", "8080"), ":")
	if _, err := strconv.Atoi(c.Port); err != nil {
		c.Port = "8080"
	}
	c.MongoURI = s.getenv("MONGO_URI", "")
	c.MongoDB = s.getenv("MONGO_DB", "assetsync")
	c.APIKeys = s.getlist("SYNC_API_KEYS")
	return c, nil
}
