package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Session Errors (E001-E019)
	// ============================================

	"E001": {
		Category: CategorySession,
		Message:  "Session not found",
		Detail:   "The session ID is invalid or the session has already been reaped.",
		DocURL:   "https://parley.dev/docs/errors/E001",
	},
	"E002": {
		Category: CategorySession,
		Message:  "Session closed",
		Detail:   "The session task has finished and no longer accepts client events.",
		DocURL:   "https://parley.dev/docs/errors/E002",
	},
	"E003": {
		Category: CategorySession,
		Message:  "Application not found",
		Detail:   "No registered application matches the requested name.",
		DocURL:   "https://parley.dev/docs/errors/E003",
	},
	"E004": {
		Category: CategorySession,
		Message:  "Event queue full",
		Detail:   "The session task is not consuming client events fast enough and the pending queue overflowed.",
		DocURL:   "https://parley.dev/docs/errors/E004",
	},

	// ============================================
	// Protocol Errors (E020-E039)
	// ============================================

	"E020": {
		Category: CategoryProtocol,
		Message:  "Invalid message format",
		Detail:   "The received message could not be decoded. The client script may be outdated.",
		DocURL:   "https://parley.dev/docs/errors/E020",
	},
	"E021": {
		Category: CategoryProtocol,
		Message:  "Unknown event type",
		Detail:   "The event type is not recognized by the server.",
		DocURL:   "https://parley.dev/docs/errors/E021",
	},
	"E022": {
		Category: CategoryProtocol,
		Message:  "WebSocket handshake failed",
		Detail:   "The connection could not be upgraded to a WebSocket.",
		DocURL:   "https://parley.dev/docs/errors/E022",
	},

	// ============================================
	// Configuration Errors (E040-E059)
	// ============================================

	"E040": {
		Category: CategoryConfig,
		Message:  "Invalid parley.yaml",
		Detail:   "The parley.yaml configuration file is malformed.",
		DocURL:   "https://parley.dev/docs/errors/E040",
	},
	"E041": {
		Category: CategoryConfig,
		Message:  "Invalid port number",
		Detail:   "The configured port number is outside the valid range.",
		DocURL:   "https://parley.dev/docs/errors/E041",
	},
	"E042": {
		Category: CategoryConfig,
		Message:  "Invalid duration",
		Detail:   "A duration field could not be parsed. Use Go syntax such as 30s, 5m or 1h.",
		DocURL:   "https://parley.dev/docs/errors/E042",
	},
	"E043": {
		Category: CategoryConfig,
		Message:  "Invalid log level",
		Detail:   "The log level must be one of debug, info, warn or error.",
		DocURL:   "https://parley.dev/docs/errors/E043",
	},
	"E044": {
		Category: CategoryConfig,
		Message:  "Invalid log format",
		Detail:   "The log format must be text or json.",
		DocURL:   "https://parley.dev/docs/errors/E044",
	},

	// ============================================
	// Transfer Errors (E060-E079)
	// ============================================

	"E060": {
		Category: CategoryTransfer,
		Message:  "Spool directory unavailable",
		Detail:   "The file transfer spool directory could not be created or opened.",
		DocURL:   "https://parley.dev/docs/errors/E060",
	},
	"E061": {
		Category: CategoryTransfer,
		Message:  "File too large",
		Detail:   "The uploaded file exceeds the configured size limit.",
		DocURL:   "https://parley.dev/docs/errors/E061",
	},

	// ============================================
	// CLI Errors (E080-E099)
	// ============================================

	"E080": {
		Category: CategoryCLI,
		Message:  "Not a Parley project",
		Detail:   "The current directory has no parley.yaml. Run this command from a directory with one, or pass --config.",
		DocURL:   "https://parley.dev/docs/errors/E080",
	},
	"E081": {
		Category: CategoryCLI,
		Message:  "Unknown demo application",
		Detail:   "The requested demo application does not exist.",
		DocURL:   "https://parley.dev/docs/errors/E081",
	},
	"E082": {
		Category: CategoryCLI,
		Message:  "Server failed to start",
		Detail:   "The server could not bind its address. The port may already be in use.",
		DocURL:   "https://parley.dev/docs/errors/E082",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
