package toolloop

const DefaultMaxIterations = 10

// LoopConfig bounds one orchestration run.
type LoopConfig struct {
	// MaxIterations caps the number of model calls of a run.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`
	// Streaming selects StreamCompletion; otherwise RequestCompletion is used
	// and the whole text is emitted as a single text event.
	Streaming bool `json:"streaming" yaml:"streaming"`
}

func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxIterations: DefaultMaxIterations,
		Streaming:     true,
	}
}

// WithMaxIterations sets the maximum number of model calls.
func (c LoopConfig) WithMaxIterations(maxIterations int) LoopConfig {
	c.MaxIterations = maxIterations
	return c
}

func (c LoopConfig) WithStreaming(streaming bool) LoopConfig {
	c.Streaming = streaming
	return c
}
