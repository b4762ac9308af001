package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Configuration (E100-E199)

	"E101": {
		Category:   CategoryConfig,
		Message:    "Config file not found",
		Suggestion: "Run 'statectl init' or pass --config",
	},
	"E102": {
		Category:   CategoryConfig,
		Message:    "Invalid config file",
		Detail:     "state.json could not be parsed.",
		Suggestion: "Check that state.json is valid JSON",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid port",
		Detail:   "Port must be between 0 and 65535.",
	},
	"E104": {
		Category:   CategoryConfig,
		Message:    "Unknown storage driver",
		Suggestion: "Use one of: memory, file, sqlite, s3",
	},
	"E105": {
		Category: CategoryConfig,
		Message:  "Missing storage setting",
	},
	"E106": {
		Category:   CategoryConfig,
		Message:    "Invalid duration",
		Suggestion: `Use Go duration syntax such as "10s" or "1m30s"`,
	},
	"E107": {
		Category:   CategoryConfig,
		Message:    "Invalid log setting",
		Suggestion: "log.level is one of debug, info, warn, error; log.format is text or json",
	},
	"E108": {
		Category: CategoryConfig,
		Message:  "Invalid environment override",
		Detail:   "A STATE_ environment variable could not be parsed.",
	},

	// Storage (E200-E299)

	"E201": {
		Category: CategoryStorage,
		Message:  "Could not open storage",
	},
	"E202": {
		Category: CategoryStorage,
		Message:  "Could not read stored state",
	},
	"E203": {
		Category: CategoryStorage,
		Message:  "Could not save state",
		Detail:   "The write was rejected and the previous value was kept.",
	},
	"E204": {
		Category: CategoryStorage,
		Message:  "Could not create storage table",
	},

	// Todo (E300-E399)

	"E301": {
		Category:   CategoryTodo,
		Message:    "No such todo",
		Suggestion: "Run 'statectl todo list' to see todo numbers",
	},
	"E302": {
		Category: CategoryTodo,
		Message:  "Todo text is empty",
	},
	"E303": {
		Category: CategoryTodo,
		Message:  "No edit in progress",
	},

	// CLI (E400-E499)

	"E401": {
		Category: CategoryCLI,
		Message:  "Invalid argument",
	},
	"E402": {
		Category: CategoryCLI,
		Message:  "Server failed",
	},
	"E403": {
		Category: CategoryCLI,
		Message:  "Watch failed",
	},
}

// GetAllCodes returns all registered error codes, sorted.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
