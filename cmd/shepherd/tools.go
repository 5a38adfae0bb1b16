package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/shepherd/pkg/conversation"
	"github.com/go-go-golems/shepherd/pkg/inference/tools"
)

func newToolsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and call the church management tools",
	}

	listCmd, err := NewToolsListCommand(viper.GetViper())
	cobra.CheckErr(err)
	list, err := cli.BuildCobraCommandFromGlazeCommand(listCmd)
	cobra.CheckErr(err)

	export := &cobra.Command{
		Use:   "export",
		Short: "Write the tool definitions in the --tools-file format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return exportTools(viper.GetViper(), os.Stdout)
		},
	}

	call := &cobra.Command{
		Use:   "call <name> [json-arguments]",
		Short: "Invoke one tool directly, without the model",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			argsJSON := "{}"
			if len(args) == 2 {
				argsJSON = args[1]
			}
			return callTool(cmd.Context(), viper.GetViper(), args[0], argsJSON, os.Stdout)
		},
	}

	cmd.AddCommand(list, export, call)
	return cmd
}

// exportTools writes the tools offered to the model, a starting point for a
// --tools-file.
func exportTools(v *viper.Viper, w io.Writer) error {
	a, err := newToolsApp(v, nil)
	if err != nil {
		return err
	}
	return tools.WriteDefinitionsYAML(w, a.toolConfig.FilterTools(a.registry.ListTools()))
}

func callTool(ctx context.Context, v *viper.Viper, name string, args string, w io.Writer) error {
	if !json.Valid([]byte(args)) {
		return errors.New("arguments must be a JSON object")
	}
	a, err := newToolsApp(v, nil)
	if err != nil {
		return err
	}

	payload := a.executor.Execute(ctx, conversation.ToolRequest{
		ID:        "cli_" + uuid.NewString(),
		Name:      name,
		Arguments: json.RawMessage(args),
	})

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return err
	}
	if !payload.Success {
		return errors.Errorf("tool %s failed", name)
	}
	return nil
}
