package config

import (
	"errors"
	"flag"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	DBUrl       string
	TokenSecret string
	TokenTTL    time.Duration
	Debug       bool

	// RedisAddr enables the notification queue and the realtime feed.
	RedisAddr           string
	CompanySignatureURL string
	AllowedOrigins      []string
	// TrustProxy takes the client address from forwarding headers. Only
	// enable it behind a proxy that overwrites them.
	TrustProxy bool
	// AutosaveRate is the number of autosave requests per second a client
	// may send to one questionnaire.
	AutosaveRate float64

	Locale Locale
}

// ParseFlags reads the command line. Every flag defaults to an environment
// variable, which may come from a .env file in the working directory.
func ParseFlags() (Config, error) {
	_ = godotenv.Load()
	return Parse(flag.CommandLine, os.Args[1:])
}

func Parse(fs *flag.FlagSet, args []string) (cfg Config, err error) {
	var host string
	fs.StringVar(&host, "host", env("CERIMONIAL_HOST", "0.0.0.0"), "listen host name")
	var port uint
	fs.UintVar(&port, "port", envUint("CERIMONIAL_PORT", 80), "listen port number")
	fs.StringVar(&cfg.DBUrl, "db-url", env("CERIMONIAL_DB_URL", "cerimonial.sqlite"), "path to SQLite3 DB file")
	fs.StringVar(&cfg.TokenSecret, "token-secret", env("CERIMONIAL_TOKEN_SECRET", ""), "secret key for token encryption and decryption")
	var ttl uint
	fs.UintVar(&ttl, "token-ttl", envUint("CERIMONIAL_TOKEN_TTL", 120), "token TTL in seconds")
	fs.BoolVar(&cfg.Debug, "debug", env("CERIMONIAL_DEBUG", "") == "true", "log at DEBUG level")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", env("REDIS_ADDR", ""), "Redis address for notifications and live updates (disabled if empty)")
	var localeFile string
	fs.StringVar(&localeFile, "locale-file", env("CERIMONIAL_LOCALE_FILE", ""), "YAML file overriding presentation texts and finalize threshold")
	fs.StringVar(&cfg.CompanySignatureURL, "company-signature-url", env("CERIMONIAL_COMPANY_SIGNATURE_URL", ""), "image URL of the company signature")
	var origins string
	fs.StringVar(&origins, "allowed-origins", env("CERIMONIAL_ALLOWED_ORIGINS", "*"), "comma separated CORS origins")
	fs.BoolVar(&cfg.TrustProxy, "trust-proxy", env("CERIMONIAL_TRUST_PROXY", "") == "true", "read client addresses from X-Forwarded-For and X-Real-IP")
	fs.Float64Var(&cfg.AutosaveRate, "autosave-rate", envFloat("CERIMONIAL_AUTOSAVE_RATE", 2), "autosave requests per second per questionnaire")
	if err = fs.Parse(args); err != nil {
		return
	}

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	cfg.TokenTTL = time.Duration(ttl) * time.Second
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	cfg.Locale = DefaultLocale()
	if localeFile != "" {
		cfg.Locale, err = LoadLocale(localeFile)
		if err != nil {
			return
		}
	}

	switch {
	case cfg.TokenSecret == "":
		err = errors.New("missing parameter -token-secret")
	case cfg.AutosaveRate <= 0:
		err = errors.New("-autosave-rate must be positive")
	}

	return
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envUint(key string, fallback uint) uint {
	n, err := strconv.ParseUint(env(key, ""), 10, 0)
	if err != nil {
		return fallback
	}
	return uint(n)
}

func envFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(env(key, ""), 64)
	if err != nil {
		return fallback
	}
	return f
}
