package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/shepherd/pkg/events"
	"github.com/go-go-golems/shepherd/pkg/server"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat endpoint (SSE and websocket) and the tool endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, viper.GetViper())
		},
	}
	cmd.Flags().String("address", ":8080", "Listen address")
	cmd.Flags().Duration("keep-alive", server.DefaultConfig().KeepAlive, "Interval of SSE keepalive comments (0: off)")
	return cmd
}

func serve(ctx context.Context, v *viper.Viper) error {
	router, err := newEventRouter(v)
	if err != nil {
		return err
	}
	defer func() { _ = router.Close() }()

	a, err := newToolsApp(v, router)
	if err != nil {
		return err
	}
	loop, err := a.newLoop(ctx, v)
	if err != nil {
		return err
	}

	srv, err := server.New(
		server.Config{
			Address:   v.GetString("address"),
			KeepAlive: v.GetDuration("keep-alive"),
		},
		loop, a.registry, a.executor,
		server.WithMirrorSinks(events.NewWatermillSink(router.Publisher, events.TopicChat)),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	routerErr := make(chan error, 1)
	runRouter(ctx, router, routerErr)
	eg.Go(func() error {
		select {
		case err := <-routerErr:
			return err
		case <-ctx.Done():
			return nil
		}
	})
	eg.Go(func() error {
		defer cancel()
		return srv.Run(ctx)
	})
	return eg.Wait()
}
