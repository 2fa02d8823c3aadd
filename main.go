package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/spf13/cobra"

	"github.com/stevemurr/boxgrid/config"
	"github.com/stevemurr/boxgrid/handler"
	"github.com/stevemurr/boxgrid/inventory"
	"github.com/stevemurr/boxgrid/label"
	"github.com/stevemurr/boxgrid/legacy"
	"github.com/stevemurr/boxgrid/session"
	"github.com/stevemurr/boxgrid/store"
)

const shutdownTimeout = 10 * time.Second

// corsMiddleware wraps an http.Handler with CORS headers.
func corsMiddleware(next http.Handler, allowedOrigins []string) http.Handler {
	// Fast path: wildcard allows everything.
	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowAll {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, o := range allowedOrigins {
				if strings.TrimSpace(o) == origin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
					break
				}
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type rootFlags struct {
	configPath string
	backend    string
	dataDir    string
	dsn        string
}

// app is everything a command needs once configuration is resolved.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   store.Store
	inv     *inventory.Service
	session *session.Session
}

func (a *app) Close() error { return a.store.Close() }

func newApp(ctx context.Context, f *rootFlags) (*app, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.backend != "" {
		cfg.Store.Backend = f.backend
	}
	if f.dataDir != "" {
		cfg.DataDir = f.dataDir
	}
	if f.dsn != "" {
		cfg.Store.PostgresDSN = f.dsn
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	st, err := store.New(ctx, cfg.Store.Backend, cfg.DataDir, cfg.Store.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("create store (backend=%s): %w", cfg.Store.Backend, err)
	}
	inv := inventory.New(st, logger)
	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		inv:     inv,
		session: session.New(inv, logger),
	}, nil
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:           "boxgrid",
		Short:         "Track lab sample boxes and the contents of every slot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&f.backend, "store", "", "storage backend: json, sqlite, postgres, memory")
	root.PersistentFlags().StringVar(&f.dataDir, "data-dir", "", "directory for the json and sqlite backends")
	root.PersistentFlags().StringVar(&f.dsn, "postgres-dsn", "", "connection string for the postgres backend")

	root.AddCommand(newServeCmd(f), newMigrateCmd(f), newSearchCmd(f), newLabelCmd(f))
	return root
}

func newServeCmd(f *rootFlags) *cobra.Command {
	var host, port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, f)
			if err != nil {
				return err
			}
			defer a.Close()
			if host != "" {
				a.cfg.Host = host
			}
			if port != "" {
				a.cfg.Port = port
			}

			if a.cfg.LegacyPath != "" {
				if _, err := a.inv.MigrateLegacyIfPresent(ctx, legacy.NewFile(a.cfg.LegacyPath, a.logger)); err != nil {
					a.logger.Error("legacy migration failed", "error", err)
				}
			}
			a.session.Refresh(ctx)

			h := handler.New(a.session, handler.Options{LabelHost: a.cfg.Label.BaseHost, Logger: a.logger})
			srv := &http.Server{
				Addr:              a.cfg.Addr(),
				Handler:           corsMiddleware(h, a.cfg.AllowedOrigins),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				a.logger.Info("boxgrid starting", "addr", srv.Addr, "store", a.cfg.Store.Backend, "data", a.cfg.DataDir)
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				return fmt.Errorf("server error: %w", err)
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides HOST)")
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}

func newMigrateCmd(f *rootFlags) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy boxes from a browser local-storage dump into the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer a.Close()
			if path == "" {
				path = a.cfg.LegacyPath
			}
			if path == "" {
				return errors.New("no legacy file: pass --from or set LEGACY_PATH")
			}
			n, err := a.inv.MigrateLegacyIfPresent(cmd.Context(), legacy.NewFile(path, a.logger))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d boxes from %s\n", n, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "from", "", "local-storage dump (defaults to LEGACY_PATH)")
	return cmd
}

func newSearchCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Find boxes and slots matching a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer a.Close()
			a.session.Refresh(cmd.Context())

			out := cmd.OutOrStdout()
			results := a.session.Search(strings.Join(args, " "))
			if len(results) == 0 {
				fmt.Fprintln(out, "no matches")
				return nil
			}
			for _, r := range results {
				if r.Coordinate == "" {
					fmt.Fprintf(out, "box   %-36s  %s\n", r.BoxID, r.BoxName)
					continue
				}
				fmt.Fprintf(out, "slot  %-36s  %s %-4s %s (%s)\n", r.BoxID, r.BoxName, r.Coordinate, r.SlotName, r.SlotType)
			}
			return nil
		},
	}
}

func newLabelCmd(f *rootFlags) *cobra.Command {
	var host string
	cmd := &cobra.Command{
		Use:   "label <box-id>",
		Short: "Print the label for a box",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer a.Close()
			a.session.Refresh(cmd.Context())

			b, err := a.session.Box(args[0])
			if err != nil {
				return err
			}
			if host == "" {
				host = a.cfg.Label.BaseHost
			}
			if host == "" {
				host = "http://" + a.cfg.Addr()
			}
			l := label.For(b, host)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, l.Title)
			fmt.Fprintln(out, l.Dimensions)
			fmt.Fprintln(out, l.URL)
			fmt.Fprintf(out, "ID: %s\n", l.ShortID)
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "origin to encode in the label URL")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
