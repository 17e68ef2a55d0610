package main

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"musicd/internal/config"
	"musicd/internal/registry"
	"musicd/pkg/types"
)

// options is the resolved server configuration.
// Precedence: flags, then environment, then config file, then defaults.
type options struct {
	addr            string
	configPath      string
	outputDir       string
	backendURL      string
	backendAPIKey   string
	backendTimeout  time.Duration
	device          string
	maxQueueDepth   int
	maxWait         time.Duration
	loadTimeout     time.Duration
	generateTimeout time.Duration
	maxBodyBytes    int64
	maxTokensLimit  int
	preload         []string
	logLevel        string
	logFormat       string
	requestLog      string
	corsEnabled     bool
	corsOrigins     []string
	corsMethods     []string
	corsHeaders     []string
	shutdownTimeout time.Duration
	variants        []types.Variant
}

func parseOptions(args []string, getenv func(string) string) (options, error) {
	var o options
	var errs []error
	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}
	envInt := func(key string, def int) int {
		v := getenv(key)
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return n
	}
	envDur := func(key string, def time.Duration) time.Duration {
		v := getenv(key)
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return d
	}
	envBool := func(key string) bool {
		b, _ := strconv.ParseBool(getenv(key))
		return b
	}

	fs := flag.NewFlagSet("musicd", flag.ContinueOnError)
	fs.StringVar(&o.addr, "addr", env("MUSICD_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	fs.StringVar(&o.configPath, "config", env("MUSICD_CONFIG", ""), "Path to a YAML/JSON/TOML config file")
	fs.StringVar(&o.outputDir, "output-dir", env("MUSICD_OUTPUT_DIR", "static/generated"), "Directory generated audio is written to and served from")
	fs.StringVar(&o.backendURL, "backend-url", env("MUSICD_BACKEND_URL", ""), "Base URL of the inference worker")
	fs.StringVar(&o.backendAPIKey, "backend-api-key", env("MUSICD_BACKEND_API_KEY", ""), "Bearer token for the inference worker")
	fs.DurationVar(&o.backendTimeout, "backend-timeout", envDur("MUSICD_BACKEND_TIMEOUT", 0), "Per-call timeout for encode/generate calls to the worker (0=none)")
	fs.StringVar(&o.device, "device", env("MUSICD_DEVICE", "auto"), "Device preference: auto, mps, cuda or cpu")
	fs.IntVar(&o.maxQueueDepth, "max-queue-depth", envInt("MUSICD_MAX_QUEUE_DEPTH", 0), "Max queued requests per model (0=default)")
	fs.DurationVar(&o.maxWait, "max-wait", envDur("MUSICD_MAX_WAIT", 0), "Max time a request waits for its model (0=default)")
	fs.DurationVar(&o.loadTimeout, "load-timeout", envDur("MUSICD_LOAD_TIMEOUT", 0), "Max time for one model load (0=default)")
	fs.DurationVar(&o.generateTimeout, "generate-timeout", envDur("MUSICD_GENERATE_TIMEOUT", 0), "Max time for one /generate request (0=none)")
	maxBody := fs.Int("max-body-bytes", envInt("MUSICD_MAX_BODY_BYTES", 1<<20), "Max JSON request body size")
	fs.IntVar(&o.maxTokensLimit, "max-tokens-limit", envInt("MUSICD_MAX_TOKENS_LIMIT", 0), "Reject max_tokens above this (0=default, -1=off)")
	preload := fs.String("preload", env("MUSICD_PRELOAD", ""), "Comma-separated variants to load at startup")
	fs.StringVar(&o.logLevel, "log-level", env("MUSICD_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	fs.StringVar(&o.logFormat, "log-format", env("MUSICD_LOG_FORMAT", "auto"), "Log format: auto, json or console")
	fs.StringVar(&o.requestLog, "request-log", env("MUSICD_REQUEST_LOG", "info"), "Per-request log level: off, error, info, debug")
	fs.BoolVar(&o.corsEnabled, "cors", envBool("MUSICD_CORS"), "Enable CORS")
	origins := fs.String("cors-origins", env("MUSICD_CORS_ORIGINS", "*"), "Comma-separated allowed origins")
	methods := fs.String("cors-methods", env("MUSICD_CORS_METHODS", "GET,POST,OPTIONS"), "Comma-separated allowed methods")
	headers := fs.String("cors-headers", env("MUSICD_CORS_HEADERS", "Content-Type,X-Log-Level"), "Comma-separated allowed headers")
	fs.DurationVar(&o.shutdownTimeout, "shutdown-timeout", envDur("MUSICD_SHUTDOWN_TIMEOUT", 30*time.Second), "Graceful shutdown timeout")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if len(errs) > 0 {
		return o, errors.Join(errs...)
	}
	o.maxBodyBytes = int64(*maxBody)
	o.preload = splitCSV(*preload)
	o.corsOrigins = splitCSV(*origins)
	o.corsMethods = splitCSV(*methods)
	o.corsHeaders = splitCSV(*headers)

	var fileCfg config.Config
	if o.configPath != "" {
		var err error
		if fileCfg, err = config.Load(o.configPath); err != nil {
			return o, fmt.Errorf("load config: %w", err)
		}
		applyConfig(&o, fileCfg, explicitlySet(fs, getenv))
	}

	variants, err := registry.Build(fileCfg.Variants)
	if err != nil {
		return o, err
	}
	o.variants = variants
	for _, name := range o.preload {
		if _, ok := registry.Find(variants, name); !ok {
			return o, fmt.Errorf("preload: unknown model %q (available: %s)", name, strings.Join(registry.Names(variants), ", "))
		}
	}
	return o, nil
}

// flagEnv maps flag names to the environment variable that can also set them.
var flagEnv = map[string]string{
	"addr":             "MUSICD_ADDR",
	"output-dir":       "MUSICD_OUTPUT_DIR",
	"backend-url":      "MUSICD_BACKEND_URL",
	"backend-api-key":  "MUSICD_BACKEND_API_KEY",
	"device":           "MUSICD_DEVICE",
	"max-queue-depth":  "MUSICD_MAX_QUEUE_DEPTH",
	"max-wait":         "MUSICD_MAX_WAIT",
	"load-timeout":     "MUSICD_LOAD_TIMEOUT",
	"generate-timeout": "MUSICD_GENERATE_TIMEOUT",
	"max-tokens-limit": "MUSICD_MAX_TOKENS_LIMIT",
	"preload":          "MUSICD_PRELOAD",
	"log-level":        "MUSICD_LOG_LEVEL",
	"log-format":       "MUSICD_LOG_FORMAT",
	"cors":             "MUSICD_CORS",
	"cors-origins":     "MUSICD_CORS_ORIGINS",
}

// explicitlySet reports flags given on the command line or via environment.
func explicitlySet(fs *flag.FlagSet, getenv func(string) string) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	for name, key := range flagEnv {
		if getenv(key) != "" {
			set[name] = true
		}
	}
	return set
}

// applyConfig fills options not explicitly set from the config file.
func applyConfig(o *options, c config.Config, set map[string]bool) {
	str := func(name string, dst *string, v string) {
		if !set[name] && v != "" {
			*dst = v
		}
	}
	str("addr", &o.addr, c.Addr)
	str("output-dir", &o.outputDir, c.OutputDir)
	str("backend-url", &o.backendURL, c.BackendURL)
	str("backend-api-key", &o.backendAPIKey, c.BackendAPIKey)
	str("device", &o.device, c.Device)
	str("log-level", &o.logLevel, c.LogLevel)
	str("log-format", &o.logFormat, c.LogFormat)
	if !set["max-queue-depth"] && c.MaxQueueDepth > 0 {
		o.maxQueueDepth = c.MaxQueueDepth
	}
	if !set["max-wait"] && c.MaxWaitSeconds > 0 {
		o.maxWait = time.Duration(c.MaxWaitSeconds) * time.Second
	}
	if !set["load-timeout"] && c.LoadTimeoutSeconds > 0 {
		o.loadTimeout = time.Duration(c.LoadTimeoutSeconds) * time.Second
	}
	if !set["generate-timeout"] && c.GenerateTimeoutSeconds > 0 {
		o.generateTimeout = time.Duration(c.GenerateTimeoutSeconds) * time.Second
	}
	if !set["max-tokens-limit"] && c.MaxTokensLimit != 0 {
		o.maxTokensLimit = c.MaxTokensLimit
	}
	if !set["preload"] && len(c.Preload) > 0 {
		o.preload = c.Preload
	}
	if !set["cors"] && c.CORSEnabled {
		o.corsEnabled = true
	}
	if !set["cors-origins"] && len(c.CORSOrigins) > 0 {
		o.corsOrigins = c.CORSOrigins
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
