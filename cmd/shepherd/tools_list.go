package main

import (
	"context"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/go-go-golems/shepherd/pkg/inference/tools"
)

type ToolsListSettings struct {
	Tags       []string `glazed.parameter:"tag"`
	WithSchema bool     `glazed.parameter:"with-schema"`
}

// ToolsListCommand emits one row per tool offered to the model. The output
// format (table, json, yaml, csv, ...) comes from the glazed flags.
type ToolsListCommand struct {
	*cmds.CommandDescription
	viper *viper.Viper
}

var _ cmds.GlazeCommand = (*ToolsListCommand)(nil)

func NewToolsListCommand(v *viper.Viper) (*ToolsListCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed parameter layer")
	}

	return &ToolsListCommand{
		CommandDescription: cmds.NewCommandDescription(
			"list",
			cmds.WithShort("List the tools offered to the model"),
			cmds.WithLong("List the tools offered to the model after --allowed-tools and --denied-tools are applied, with the endpoint each one is called on."),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"tag",
					parameters.ParameterTypeStringList,
					parameters.WithHelp("Only list tools carrying one of these tags (members, attendance, finance, ...)"),
				),
				parameters.NewParameterDefinition(
					"with-schema",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Add the JSON schema of the tool arguments"),
					parameters.WithDefault(false),
				),
			),
			cmds.WithLayersList(glazedParameterLayer),
		),
		viper: v,
	}, nil
}

func (c *ToolsListCommand) RunIntoGlazeProcessor(ctx context.Context, parsedLayers *layers.ParsedLayers, gp middlewares.Processor) error {
	s := &ToolsListSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "error initializing settings")
	}
	return listTools(ctx, c.viper, s, gp)
}

func listTools(ctx context.Context, v *viper.Viper, s *ToolsListSettings, gp middlewares.Processor) error {
	a, err := newToolsApp(v, nil)
	if err != nil {
		return err
	}

	for _, def := range a.toolConfig.FilterTools(a.registry.ListTools()) {
		if !hasAnyTag(def, s.Tags) {
			continue
		}
		row := types.NewRow(
			types.MRP("name", def.Name),
			types.MRP("endpoint", a.invoker.Endpoint(def.Name)),
			types.MRP("tags", strings.Join(def.Tags, ",")),
			types.MRP("description", def.Description),
		)
		if s.WithSchema {
			schema, err := def.SchemaMap()
			if err != nil {
				return errors.Wrapf(err, "tool %s", def.Name)
			}
			row.Set("parameters", schema)
		}
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func hasAnyTag(def tools.ToolDefinition, tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, want := range tags {
		for _, have := range def.Tags {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}
