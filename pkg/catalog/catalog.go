// Package catalog holds the operations the church assistant can perform
// against the church management API, and the assistant's system prompt.
package catalog

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/go-go-golems/shepherd/pkg/inference/tools"
)

const (
	TagMembers     = "members"
	TagAttendance  = "attendance"
	TagFinance     = "finance"
	TagDepartments = "departments"
	TagDocuments   = "documents"
	TagUsers       = "users"
	TagAnalytics   = "analytics"
	// TagWrite marks tools that create or modify records.
	TagWrite = "write"
)

type toolEntry struct {
	build func() (*tools.ToolDefinition, error)
}

func entry[T any](name, description string, tags ...string) toolEntry {
	return toolEntry{build: func() (*tools.ToolDefinition, error) {
		return tools.NewToolDefinition[T](name, description, tags...)
	}}
}

func allEntries() []toolEntry {
	var ret []toolEntry
	ret = append(ret, memberTools()...)
	ret = append(ret, attendanceTools()...)
	ret = append(ret, financeTools()...)
	ret = append(ret, departmentTools()...)
	ret = append(ret, documentTools()...)
	ret = append(ret, userTools()...)
	ret = append(ret, analyticsTools()...)
	return ret
}

// Definitions returns the built-in tool definitions in catalog order.
func Definitions() ([]tools.ToolDefinition, error) {
	entries := allEntries()
	ret := make([]tools.ToolDefinition, 0, len(entries))
	for _, s := range entries {
		def, err := s.build()
		if err != nil {
			return nil, err
		}
		ret = append(ret, *def)
	}
	return ret, nil
}

// NewRegistry returns a registry with the built-in catalog, with the
// definitions of the optional YAML file registered over it.
func NewRegistry(extraFile string) (*tools.InMemoryToolRegistry, error) {
	defs, err := Definitions()
	if err != nil {
		return nil, errors.Wrap(err, "could not build tool catalog")
	}
	reg, err := tools.NewRegistryFromDefinitions(defs...)
	if err != nil {
		return nil, err
	}
	if extraFile == "" {
		return reg, nil
	}

	f, err := os.Open(extraFile)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open tools file %s", extraFile)
	}
	defer func() { _ = f.Close() }()

	if err := registerYAML(reg, f); err != nil {
		return nil, errors.Wrapf(err, "could not load tools file %s", extraFile)
	}
	return reg, nil
}

func registerYAML(reg tools.ToolRegistry, r io.Reader) error {
	extra, err := tools.LoadDefinitionsYAML(r)
	if err != nil {
		return err
	}
	for _, def := range extra {
		if err := reg.RegisterTool(def.Name, def); err != nil {
			return err
		}
	}
	return nil
}
