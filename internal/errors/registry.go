package errors

// Template defines a registered error type.
type Template struct {
	Category Category
	Message  string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// ============================================
	// DSL Errors (E100-E199)
	// ============================================

	"E101": {
		Category: CategoryDSL,
		Message:  "Unknown element kind",
		DocURL:   "https://livetree.dev/docs/errors/E101",
	},
	"E102": {
		Category: CategoryDSL,
		Message:  "Malformed element definition",
		DocURL:   "https://livetree.dev/docs/errors/E102",
	},
	"E103": {
		Category: CategoryDSL,
		Message:  "Malformed element configuration",
		DocURL:   "https://livetree.dev/docs/errors/E103",
	},
	"E104": {
		Category: CategoryDSL,
		Message:  "Missing input",
		DocURL:   "https://livetree.dev/docs/errors/E104",
	},
	"E105": {
		Category: CategoryDSL,
		Message:  "Invalid YAML source",
		DocURL:   "https://livetree.dev/docs/errors/E105",
	},
	"E106": {
		Category: CategoryDSL,
		Message:  "Unknown input option",
		DocURL:   "https://livetree.dev/docs/errors/E106",
	},

	// ============================================
	// Config Errors (E200-E299)
	// ============================================

	"E201": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		DocURL:   "https://livetree.dev/docs/errors/E201",
	},
	"E202": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		DocURL:   "https://livetree.dev/docs/errors/E202",
	},
	"E203": {
		Category: CategoryConfig,
		Message:  "Invalid port",
		DocURL:   "https://livetree.dev/docs/errors/E203",
	},
	"E204": {
		Category: CategoryConfig,
		Message:  "Invalid export target",
		DocURL:   "https://livetree.dev/docs/errors/E204",
	},
	"E205": {
		Category: CategoryConfig,
		Message:  "Configuration file already exists",
		DocURL:   "https://livetree.dev/docs/errors/E205",
	},

	// ============================================
	// Runtime Errors (E300-E399)
	// ============================================

	"E301": {
		Category: CategoryRuntime,
		Message:  "Element not found",
		DocURL:   "https://livetree.dev/docs/errors/E301",
	},
	"E302": {
		Category: CategoryRuntime,
		Message:  "Variable not found",
		DocURL:   "https://livetree.dev/docs/errors/E302",
	},
	"E303": {
		Category: CategoryRuntime,
		Message:  "Function not found",
		DocURL:   "https://livetree.dev/docs/errors/E303",
	},
	"E304": {
		Category: CategoryRuntime,
		Message:  "Unknown method",
		DocURL:   "https://livetree.dev/docs/errors/E304",
	},
	"E305": {
		Category: CategoryRuntime,
		Message:  "Invalid request body",
		DocURL:   "https://livetree.dev/docs/errors/E305",
	},
}

// Lookup returns the template for a code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
