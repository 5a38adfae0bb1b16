package tools

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// ErrToolNotFound is returned by registries for unknown tool names.
var ErrToolNotFound = errors.New("tool not found")

// ToolRegistry manages available tools with thread-safe operations
type ToolRegistry interface {
	RegisterTool(name string, def ToolDefinition) error
	GetTool(name string) (*ToolDefinition, error)
	// ListTools returns all definitions sorted by name.
	ListTools() []ToolDefinition
	UnregisterTool(name string) error
	HasTool(name string) bool
	Count() int

	Clone() ToolRegistry
	Merge(other ToolRegistry) ToolRegistry
}

// InMemoryToolRegistry is a thread-safe in-memory implementation of ToolRegistry
type InMemoryToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]ToolDefinition
}

func NewInMemoryToolRegistry() *InMemoryToolRegistry {
	return &InMemoryToolRegistry{
		tools: make(map[string]ToolDefinition),
	}
}

// NewRegistryFromDefinitions registers all definitions, failing on the first
// invalid or duplicated one.
func NewRegistryFromDefinitions(defs ...ToolDefinition) (*InMemoryToolRegistry, error) {
	r := NewInMemoryToolRegistry()
	for _, def := range defs {
		if r.HasTool(def.Name) {
			return nil, errors.Errorf("duplicate tool definition: %s", def.Name)
		}
		if err := r.RegisterTool(def.Name, def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RegisterTool registers a tool, replacing any previous definition with the same name.
func (r *InMemoryToolRegistry) RegisterTool(name string, def ToolDefinition) error {
	if name == "" {
		return errors.New("tool name cannot be empty")
	}
	if def.Name != "" && def.Name != name {
		return errors.Errorf("tool definition name (%s) does not match registry name (%s)", def.Name, name)
	}
	if def.Description == "" {
		return errors.Errorf("tool %s: description cannot be empty", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	def.Name = name
	r.tools[name] = def
	return nil
}

func (r *InMemoryToolRegistry) GetTool(name string) (*ToolDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	if !exists {
		return nil, errors.Wrap(ErrToolNotFound, name)
	}

	// Return a copy to prevent external modifications
	toolCopy := tool
	return &toolCopy, nil
}

func (r *InMemoryToolRegistry) ListTools() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})

	return tools
}

func (r *InMemoryToolRegistry) UnregisterTool(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return errors.Wrap(ErrToolNotFound, name)
	}

	delete(r.tools, name)
	return nil
}

func (r *InMemoryToolRegistry) Clone() ToolRegistry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cloned := NewInMemoryToolRegistry()
	for name, tool := range r.tools {
		cloned.tools[name] = tool
	}

	return cloned
}

// Merge creates a new registry that contains tools from both registries
// If there are conflicts, tools from the other registry take precedence
func (r *InMemoryToolRegistry) Merge(other ToolRegistry) ToolRegistry {
	merged := r.Clone().(*InMemoryToolRegistry)
	for _, tool := range other.ListTools() {
		merged.tools[tool.Name] = tool
	}
	return merged
}

func (r *InMemoryToolRegistry) HasTool(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

func (r *InMemoryToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}

var _ ToolRegistry = (*InMemoryToolRegistry)(nil)
