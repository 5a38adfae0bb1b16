package tools

import (
	"fmt"
	"regexp"
)

// ProviderLimits describes what a backend accepts in one request.
// Zero values mean "no limit".
type ProviderLimits struct {
	Provider           string
	MaxToolsPerRequest int
	MaxToolNameLength  int
	// MaxTotalSizeBytes bounds the serialized size of all tool schemas.
	MaxTotalSizeBytes int
}

var (
	OpenAILimits = ProviderLimits{
		Provider:           "openai",
		MaxToolsPerRequest: 128,
		MaxToolNameLength:  64,
	}
	ClaudeLimits = ProviderLimits{
		Provider:          "claude",
		MaxToolNameLength: 64,
	}
	OllamaLimits = ProviderLimits{
		Provider: "ollama",
	}
)

// both OpenAI and Anthropic restrict function names to this alphabet
var toolNameRegexp = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// LimitError is returned when a tool set cannot be sent to a backend.
type LimitError struct {
	Provider string
	Reason   string
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s tool limits exceeded: %s", e.Provider, e.Reason)
}

// ValidateForProvider checks a set of definitions against a backend's limits.
func ValidateForProvider(defs []ToolDefinition, limits ProviderLimits) error {
	if limits.MaxToolsPerRequest > 0 && len(defs) > limits.MaxToolsPerRequest {
		return &LimitError{
			Provider: limits.Provider,
			Reason:   fmt.Sprintf("%d tools > %d", len(defs), limits.MaxToolsPerRequest),
		}
	}

	total := 0
	for _, def := range defs {
		if !toolNameRegexp.MatchString(def.Name) {
			return &LimitError{Provider: limits.Provider, Reason: fmt.Sprintf("invalid tool name %q", def.Name)}
		}
		if limits.MaxToolNameLength > 0 && len(def.Name) > limits.MaxToolNameLength {
			return &LimitError{
				Provider: limits.Provider,
				Reason:   fmt.Sprintf("tool name too long: %s (%d > %d)", def.Name, len(def.Name), limits.MaxToolNameLength),
			}
		}
		if limits.MaxTotalSizeBytes > 0 {
			b, err := def.SchemaJSON()
			if err != nil {
				return err
			}
			total += len(b) + len(def.Description) + len(def.Name)
		}
	}
	if limits.MaxTotalSizeBytes > 0 && total > limits.MaxTotalSizeBytes {
		return &LimitError{
			Provider: limits.Provider,
			Reason:   fmt.Sprintf("tool definitions are %d bytes > %d", total, limits.MaxTotalSizeBytes),
		}
	}
	return nil
}
