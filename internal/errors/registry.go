package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

const docBase = "https://djenesis.dev/errors/"

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Config Errors (E120-E139)
	// ============================================

	"E120": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "djenesis.json could not be read or parsed.",
		DocURL:   docBase + "E120",
	},
	"E121": {
		Category: CategoryConfig,
		Message:  "Unknown collision policy",
		Detail:   "The collision policy must be one of fail, skip or overwrite.",
		DocURL:   docBase + "E121",
	},
	"E122": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration value is out of range.",
		DocURL:   docBase + "E122",
	},
	"E123": {
		Category: CategoryConfig,
		Message:  "Invalid template variable",
		Detail:   "Template variables must be given as key=value.",
		DocURL:   docBase + "E123",
	},

	// ============================================
	// CLI Errors (E140-E159)
	// ============================================

	"E140": {
		Category: CategoryCLI,
		Message:  "Target directory exists",
		Detail:   "The target directory already exists and is not empty.",
		DocURL:   docBase + "E140",
	},
	"E141": {
		Category: CategoryCLI,
		Message:  "Parent directory not found",
		Detail:   "The directory the project should be created in does not exist.",
		DocURL:   docBase + "E141",
	},
	"E142": {
		Category: CategoryCLI,
		Message:  "Target path escapes project directory",
		Detail:   "A template file would be written outside the project directory.",
		DocURL:   docBase + "E142",
	},
	"E143": {
		Category: CategoryCLI,
		Message:  "Write failed",
		Detail:   "A project file or directory could not be written.",
		DocURL:   docBase + "E143",
	},
	"E144": {
		Category: CategoryCLI,
		Message:  "Post-create step failed",
		Detail:   "A step run after the project was written did not complete.",
		DocURL:   docBase + "E144",
	},
	"E145": {
		Category: CategoryCLI,
		Message:  "Invalid template",
		Detail:   "The specified project template doesn't exist.",
		DocURL:   docBase + "E145",
	},
	"E146": {
		Category: CategoryCLI,
		Message:  "Command not found",
		Detail:   "An external command needed for this step is not installed or not in PATH.",
		DocURL:   docBase + "E146",
	},
	"E147": {
		Category: CategoryCLI,
		Message:  "Invalid project name",
		Detail:   "Project names must be valid Python identifiers.",
		DocURL:   docBase + "E147",
	},

	// ============================================
	// Source Errors (E150-E159)
	// ============================================

	"E150": {
		Category: CategorySource,
		Message:  "Unrecognized template reference",
		Detail:   "The template is not a built-in name, a directory, a git URL, an s3:// URL or an archive URL.",
		DocURL:   docBase + "E150",
	},
	"E151": {
		Category: CategorySource,
		Message:  "Git clone failed",
		Detail:   "The template repository could not be cloned.",
		DocURL:   docBase + "E151",
	},
	"E152": {
		Category: CategorySource,
		Message:  "S3 download failed",
		Detail:   "The template could not be downloaded from S3.",
		DocURL:   docBase + "E152",
	},
	"E153": {
		Category: CategorySource,
		Message:  "Archive download failed",
		Detail:   "The template archive could not be downloaded.",
		DocURL:   docBase + "E153",
	},
	"E154": {
		Category: CategorySource,
		Message:  "Invalid archive",
		Detail:   "The template archive is corrupt or contains unsafe entries.",
		DocURL:   docBase + "E154",
	},

	// ============================================
	// Render Errors (E160-E169)
	// ============================================

	"E160": {
		Category: CategoryRender,
		Message:  "Template parse failed",
		Detail:   "A template file has invalid syntax.",
		DocURL:   docBase + "E160",
	},
	"E161": {
		Category: CategoryRender,
		Message:  "Template execution failed",
		Detail:   "A template file could not be rendered with the project variables.",
		DocURL:   docBase + "E161",
	},
	"E162": {
		Category: CategoryRender,
		Message:  "Invalid template manifest",
		Detail:   "djenesis.yaml could not be parsed.",
		DocURL:   docBase + "E162",
	},

	// ============================================
	// Descriptor Errors (E170-E179)
	// ============================================

	"E170": {
		Category: CategoryDescriptor,
		Message:  "Invalid package descriptor",
		Detail:   "The package descriptor is not well formed.",
		DocURL:   docBase + "E170",
	},
	"E171": {
		Category: CategoryDescriptor,
		Message:  "Package descriptor does not match source tree",
		Detail:   "A script, package directory or data pattern does not resolve to a file.",
		DocURL:   docBase + "E171",
	},
	"E172": {
		Category: CategoryDescriptor,
		Message:  "Unsupported descriptor format",
		Detail:   "Descriptors are read from .json, .yaml or .yml files.",
		DocURL:   docBase + "E172",
	},
}

// GetAllCodes returns all registered error codes in sorted order.
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

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
