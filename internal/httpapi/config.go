package httpapi

import (
	"strings"
	"time"
)

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// generateTimeout controls the maximum duration a /generate request may run
// before timing out, including a first-use model load.
// Zero means no additional timeout beyond server/connection timeouts.
var generateTimeout time.Duration

// SetGenerateTimeout sets the generate timeout (0 disables).
func SetGenerateTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	generateTimeout = d
}

// Generated audio is served from generatedDir under generatedURLPrefix.
var (
	generatedDir       = "static/generated"
	generatedURLPrefix = "/static/generated"
)

// SetGeneratedDir sets the directory generated files are served from and the
// URL prefix used in audio_url. Empty values keep the defaults.
func SetGeneratedDir(dir, urlPrefix string) {
	if dir != "" {
		generatedDir = dir
	}
	if p := strings.TrimRight(urlPrefix, "/"); p != "" {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		generatedURLPrefix = p
	}
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
