// Package main is the entry point for the token profile server and its tools.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MRamiBalles/tokenprofile/internal/network"
	"github.com/MRamiBalles/tokenprofile/internal/platform/config"
	"github.com/MRamiBalles/tokenprofile/internal/platform/logger"
	"github.com/MRamiBalles/tokenprofile/internal/platform/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "tokenprofile",
		Short:         "Per-entity profiles with layered paragraph visibility",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.WorldPath, "world", cfg.WorldPath, "world definition (YAML)")
	root.PersistentFlags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")

	root.AddCommand(
		newServeCmd(&cfg),
		newSeedCmd(&cfg),
		newProfilesCmd(&cfg),
		newShowCmd(&cfg),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(*cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			shutdownTracing, err := tracing.Setup(ctx, "tokenprofile", cfg.TraceStdout, os.Stdout)
			if err != nil {
				return err
			}
			defer shutdownTracing(context.Background())

			if err := a.seedWorld(ctx, false); err != nil {
				return err
			}

			a.log.Info("Bootstrapping WebSocket Hub...")
			hub := network.NewHub(a.service, network.HubConfig{
				BroadcastBuffer:      cfg.BroadcastBuffer,
				ClientSendBuffer:     cfg.ClientSendBuffer,
				MaxMessagesPerSecond: cfg.MaxMessagesPerSecond,
			}, a.log, a.metrics)
			hub.Follow(a.eventLog)

			history := network.NewHistoryHandler(a.eventLog, a.eventRepo, a.log)
			api := network.NewAPI(a.service, history, hub, a.metrics, a.log)
			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           api.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				hub.Run(ctx)
				return nil
			})
			g.Go(func() error {
				a.log.Info("HTTP API & WS Server listening", logger.String("addr", cfg.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				a.log.Info("Shutting down...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	return cmd
}

func newSeedCmd(cfg *config.Config) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users, entities and flags from the world file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.seedWorld(cmd.Context(), force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite flags of entities that already have some")
	return cmd
}

func newProfilesCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles <entity>",
		Short: "List an entity's profiles in stored order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			e, err := a.service.Entity(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tENABLED\tPARAGRAPHS")
			for id, p := range a.store.Profiles(e).All() {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%d\n", id, p.Name, p.Enabled, p.Paragraphs.Len())
			}
			return tw.Flush()
		},
	}
}

func newShowCmd(cfg *config.Config) *cobra.Command {
	var userID, viewerID string
	cmd := &cobra.Command{
		Use:   "show <entity>",
		Short: "Render the profile a user sees on an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			u, err := a.service.User(ctx, userID)
			if err != nil {
				return err
			}
			res, ok, err := a.service.Display(ctx, u, args[0], viewerID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintln(out, "(nothing to display)")
				return nil
			}
			fmt.Fprintf(out, "profile:  %s (%s)\nstrategy: %s\nclass:    %s\n\n%s\n",
				res.ProfileName, res.ProfileID, res.Strategy, res.CSSClass, res.Content)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "acting user id")
	cmd.Flags().StringVar(&viewerID, "viewer", "", "observing entity id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
