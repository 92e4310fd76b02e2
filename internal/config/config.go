package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ListenAddr      string
	UpstreamBaseURL string
	UpstreamAPIKey  string
	UpstreamProxy   string
	DefaultUser     string
	DefaultModel    string
	RequestTimeout  time.Duration
	DBPath          string
	// File logging
	LogEnable  bool
	LogDir     string
	LogMaxSize string
	LogBackups int
	// A2A
	A2AEnabled bool
	A2APort    int
	AgentName  string
	AgentDesc  string
}

func Load() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.ListenAddr, "listen-addr", getEnv("LISTEN_ADDR", ":8080"), "Gateway listen address")
	flag.StringVar(&cfg.UpstreamBaseURL, "upstream-base-url", getEnv("UPSTREAM_BASE_URL", "http://localhost"), "Upstream base URL or full chat-completions endpoint URL")
	flag.StringVar(&cfg.UpstreamAPIKey, "upstream-api-key", getEnv("UPSTREAM_API_KEY", ""), "Upstream API key (required for A2A; the gateway passes the caller's key)")
	flag.StringVar(&cfg.UpstreamProxy, "upstream-proxy-url", getEnv("UPSTREAM_PROXY_URL", ""), "HTTP/HTTPS proxy URL for upstream requests (e.g. http://proxy:8080)")
	flag.StringVar(&cfg.DefaultUser, "default-user", getEnv("DEFAULT_USER", "chatgate"), "Default user attributed to requests without an explicit user")
	flag.StringVar(&cfg.DefaultModel, "default-model", getEnv("DEFAULT_MODEL", ""), "Model id used when a request omits the model")
	flag.StringVar(&cfg.DBPath, "db-path", getEnv("DB_PATH", "chatgate.db"), "Path to the SQLite model registry database")

	timeoutStr := getEnv("REQUEST_TIMEOUT", "120s")
	defaultTimeout, _ := time.ParseDuration(timeoutStr)
	if defaultTimeout == 0 {
		defaultTimeout = 120 * time.Second
	}
	flag.DurationVar(&cfg.RequestTimeout, "request-timeout", defaultTimeout, "Upstream round-trip timeout")

	flag.BoolVar(&cfg.LogEnable, "log-file", getEnvBool("LOG_FILE_ENABLE", false), "Enable file logging alongside stderr")
	flag.StringVar(&cfg.LogDir, "log-dir", getEnv("LOG_DIR", "logs"), "Directory for log files")
	flag.StringVar(&cfg.LogMaxSize, "log-max-size", getEnv("LOG_MAX_SIZE", "10MB"), "Max size of a single log file before rotation (e.g. 10MB, 1GB)")
	flag.IntVar(&cfg.LogBackups, "log-backups", getEnvInt("LOG_BACKUPS", 5), "Number of rotated log files to keep")

	flag.BoolVar(&cfg.A2AEnabled, "a2a", getEnvBool("A2A_ENABLED", false), "Enable A2A server alongside the gateway")
	flag.IntVar(&cfg.A2APort, "a2a-port", getEnvInt("A2A_PORT", 8000), "A2A server listen port")
	flag.StringVar(&cfg.AgentName, "agent-name", getEnv("AGENT_NAME", "chatgate"), "A2A AgentCard name")
	flag.StringVar(&cfg.AgentDesc, "agent-desc", getEnv("AGENT_DESC", "Chat gateway exposed via A2A protocol"), "A2A AgentCard description")

	flag.Parse()
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	switch v {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
