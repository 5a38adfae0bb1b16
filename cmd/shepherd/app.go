package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/go-go-golems/shepherd/pkg/catalog"
	"github.com/go-go-golems/shepherd/pkg/events"
	"github.com/go-go-golems/shepherd/pkg/inference/engine"
	"github.com/go-go-golems/shepherd/pkg/inference/engine/factory"
	"github.com/go-go-golems/shepherd/pkg/inference/toolloop"
	"github.com/go-go-golems/shepherd/pkg/inference/tools"
	"github.com/go-go-golems/shepherd/pkg/steps/ai/settings"
)

// app holds the process wide components. They are built once and shared
// by every request.
type app struct {
	registry     *tools.InMemoryToolRegistry
	toolConfig   tools.ToolConfig
	invoker      *tools.HTTPInvoker
	executor     *tools.BaseToolExecutor
	router       *events.EventRouter
	systemPrompt string
}

func toolConfigFromViper(v *viper.Viper) tools.ToolConfig {
	cfg := tools.DefaultToolConfig().
		WithMaxParallelTools(v.GetInt("max-parallel-tools")).
		WithAllowedTools(v.GetStringSlice("allowed-tools")).
		WithDeniedTools(v.GetStringSlice("denied-tools"))
	if d := v.GetDuration("tool-timeout"); d > 0 {
		cfg = cfg.WithExecutionTimeout(d)
	}
	return cfg
}

// newToolsApp builds the registry and executor. Audit records go to the
// router's tool-audit topic when a router is given.
func newToolsApp(v *viper.Viper, router *events.EventRouter) (*app, error) {
	registry, err := catalog.NewRegistry(v.GetString("tools-file"))
	if err != nil {
		return nil, err
	}

	toolConfig := toolConfigFromViper(v)
	style := tools.PathStyle(v.GetString("tools-path-style"))
	if style != tools.PathStyleSnake && style != tools.PathStyleKebab {
		return nil, errors.Errorf("unknown tools-path-style %q (snake, kebab)", style)
	}
	invoker := tools.NewHTTPInvoker(
		v.GetString("tools-base-url"),
		tools.WithPathStyle(style),
		tools.WithHTTPClient(tools.NewHTTPClient(toolConfig.ExecutionTimeout+5*time.Second)),
	)

	options := []tools.ExecutorOption{tools.WithToolConfig(toolConfig)}
	if router != nil {
		options = append(options, tools.WithAuditor(events.NewAuditPublisher(router.Publisher)))
	}

	return &app{
		registry:   registry,
		toolConfig: toolConfig,
		invoker:    invoker,
		executor:   tools.NewBaseToolExecutor(registry, invoker, options...),
		router:     router,
	}, nil
}

// newEventRouter creates the in-process bus: the audit handler on the
// tool-audit topic and a debug log of every chat event.
func newEventRouter(v *viper.Viper) (*events.EventRouter, error) {
	router, err := events.NewEventRouter(events.WithVerbose(v.GetBool("verbose")))
	if err != nil {
		return nil, err
	}
	router.AddHandler("tool-audit", events.TopicToolAudit,
		events.NewAuditHandler(events.WithAuditURL(v.GetString("audit-url"))).Handle)
	router.AddHandler("chat-log", events.TopicChat, router.LogEvents)
	return router, nil
}

// newLoop selects the model backend and renders the system prompt. A
// missing backend configuration is reported before anything is served.
func (a *app) newLoop(ctx context.Context, v *viper.Viper, extra ...toolloop.Option) (*toolloop.Loop, error) {
	s := settings.FromViper(v)
	adapter, err := factory.NewAdapterFromSettings(ctx, s)
	if err != nil {
		var cfgErr *engine.ConfigurationError
		if errors.As(err, &cfgErr) {
			log.Error().Strs("checked", cfgErr.Checked).Msg("no model backend is configured")
		}
		return nil, err
	}

	prompt, err := catalog.LoadSystemPrompt(v.GetString("system-prompt-file"), catalog.PromptData{
		ChurchName: v.GetString("church-name"),
	})
	if err != nil {
		return nil, err
	}
	a.systemPrompt = prompt

	options := []toolloop.Option{
		toolloop.WithRegistry(a.registry),
		toolloop.WithToolConfig(a.toolConfig),
		toolloop.WithMaxIterations(v.GetInt("max-iterations")),
		toolloop.WithSystemPrompt(prompt),
	}
	options = append(options, extra...)
	return toolloop.New(adapter, a.executor, options...), nil
}

// runRouter starts the router and waits until its handlers subscribed.
func runRouter(ctx context.Context, router *events.EventRouter, errCh chan<- error) {
	go func() {
		errCh <- router.Run(ctx)
	}()
	select {
	case <-router.Running():
	case <-ctx.Done():
	}
}
