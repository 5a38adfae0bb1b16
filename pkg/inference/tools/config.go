package tools

import (
	"time"

	"github.com/mb0/glob"
	"github.com/rs/zerolog/log"
)

// ToolConfig specifies how tool requests are executed.
type ToolConfig struct {
	ExecutionTimeout time.Duration `json:"execution_timeout" yaml:"execution_timeout"`
	// MaxParallelTools bounds concurrent executions within one turn; 0 means unbounded.
	MaxParallelTools int `json:"max_parallel_tools" yaml:"max_parallel_tools"`
	// AllowedTools and DeniedTools are glob patterns (e.g. "get_*").
	// A nil AllowedTools allows every tool.
	AllowedTools      []string          `json:"allowed_tools" yaml:"allowed_tools"`
	DeniedTools       []string          `json:"denied_tools" yaml:"denied_tools"`
	MaskedArguments   []string          `json:"masked_arguments" yaml:"masked_arguments"`
	ToolErrorHandling ToolErrorHandling `json:"tool_error_handling" yaml:"tool_error_handling"`
	RetryConfig       RetryConfig       `json:"retry_config" yaml:"retry_config"`
}

func DefaultToolConfig() ToolConfig {
	return ToolConfig{
		ExecutionTimeout:  30 * time.Second,
		MaxParallelTools:  0,
		AllowedTools:      nil,
		MaskedArguments:   []string{"password"},
		ToolErrorHandling: ToolErrorContinue,
		RetryConfig: RetryConfig{
			MaxRetries:    2,
			BackoffBase:   500 * time.Millisecond,
			BackoffFactor: 2.0,
		},
	}
}

func (tc ToolConfig) WithExecutionTimeout(timeout time.Duration) ToolConfig {
	tc.ExecutionTimeout = timeout
	return tc
}

func (tc ToolConfig) WithMaxParallelTools(maxParallel int) ToolConfig {
	tc.MaxParallelTools = maxParallel
	return tc
}

func (tc ToolConfig) WithAllowedTools(patterns []string) ToolConfig {
	tc.AllowedTools = patterns
	return tc
}

func (tc ToolConfig) WithDeniedTools(patterns []string) ToolConfig {
	tc.DeniedTools = patterns
	return tc
}

func (tc ToolConfig) WithToolErrorHandling(handling ToolErrorHandling) ToolConfig {
	tc.ToolErrorHandling = handling
	return tc
}

func (tc ToolConfig) WithRetryConfig(cfg RetryConfig) ToolConfig {
	tc.RetryConfig = cfg
	return tc
}

// RetryConfig defines retry behavior for transient tool failures
type RetryConfig struct {
	MaxRetries    int           `json:"max_retries" yaml:"max_retries"`
	BackoffBase   time.Duration `json:"backoff_base" yaml:"backoff_base"`
	BackoffFactor float64       `json:"backoff_factor" yaml:"backoff_factor"`
}

// Backoff returns the delay before the given retry attempt (0 based).
func (rc RetryConfig) Backoff(attempt int) time.Duration {
	d := float64(rc.BackoffBase)
	for i := 0; i < attempt; i++ {
		d *= rc.BackoffFactor
	}
	return time.Duration(d)
}

// ToolErrorHandling defines how failed tool executions are handled. Either
// way the failure ends up in the tool result seen by the model.
type ToolErrorHandling string

const (
	ToolErrorContinue ToolErrorHandling = "continue" // Report the failure to the model
	ToolErrorRetry    ToolErrorHandling = "retry"    // Retry transient failures with exponential backoff first
)

// IsToolAllowed checks the name against the deny list first, then the allow list.
func (tc *ToolConfig) IsToolAllowed(toolName string) bool {
	if matchAny(tc.DeniedTools, toolName) {
		return false
	}
	if tc.AllowedTools == nil {
		return true
	}
	return matchAny(tc.AllowedTools, toolName)
}

// FilterTools returns only the tools that are allowed by this configuration
func (tc *ToolConfig) FilterTools(tools []ToolDefinition) []ToolDefinition {
	if tc.AllowedTools == nil && len(tc.DeniedTools) == 0 {
		return tools
	}

	filtered := make([]ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		if tc.IsToolAllowed(tool.Name) {
			filtered = append(filtered, tool)
		}
	}

	return filtered
}

func matchAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		ok, err := glob.Match(pattern, name)
		if err != nil {
			log.Warn().Err(err).Str("pattern", pattern).Msg("tools: invalid tool pattern")
			continue
		}
		if ok {
			return true
		}
	}
	return false
}
