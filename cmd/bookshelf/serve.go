package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/codefionn/bookshelf/internal/catalog"
	"github.com/codefionn/bookshelf/internal/command"
	"github.com/codefionn/bookshelf/internal/config"
	"github.com/codefionn/bookshelf/internal/lockfile"
	"github.com/codefionn/bookshelf/internal/logger"
	"github.com/codefionn/bookshelf/internal/metrics"
	"github.com/codefionn/bookshelf/internal/persist"
	"github.com/codefionn/bookshelf/internal/pidfile"
	"github.com/codefionn/bookshelf/internal/pprof"
	"github.com/codefionn/bookshelf/internal/securemem"
	"github.com/codefionn/bookshelf/internal/socketserver"
	"github.com/codefionn/bookshelf/internal/store"
	"github.com/codefionn/bookshelf/internal/web"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const adminShutdownTimeout = 5 * time.Second

var profileConfig pprof.Config

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bookshelf server",
	Long: `Start the TCP server. The store is restored from the configured snapshot
backend and saved periodically; SIGINT, SIGTERM or a client sending
'killcommand' stops the server after a final snapshot.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&profileConfig.CPUProfile, "cpu-profile", "", "Write a CPU profile covering the server's lifetime")
	serveCmd.Flags().StringVar(&profileConfig.HeapProfile, "heap-profile", "", "Write a heap profile on shutdown")
	serveCmd.Flags().StringVar(&profileConfig.MutexProfile, "mutex-profile", "", "Write a mutex contention profile on shutdown")
}

func runServe(cmd *cobra.Command, _ []string) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.Global().WithPrefix("serve")
	defer logger.Global().Close()

	lock := lockfile.New(cfg.LockPath())
	if err := lock.TryAcquire(cfg.ListenAddr()); err != nil {
		return err
	}
	defer lock.Release()

	pid := pidfile.New(cfg.PidFile)
	if err := pid.Write(); err != nil {
		return err
	}
	defer pid.Remove()

	if profileConfig.Enabled() {
		profiler := pprof.NewProfiler(profileConfig)
		if err := profiler.Start(); err != nil {
			return err
		}
		defer func() {
			if err := profiler.Stop(); err != nil {
				log.Warn("Failed to write profiles: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	hasher, err := store.NewPasswordHasher(cfg.Auth.PasswordHashing)
	if err != nil {
		return err
	}

	users, lists, closeArtifacts, err := openArtifacts(cfg)
	if err != nil {
		return err
	}
	defer closeArtifacts()

	st, err := persist.Load(ctx, users, lists, store.WithPasswordHasher(hasher))
	if err != nil {
		return err
	}
	stats := st.Stats()
	log.Info("Restored %d accounts and %d lists from %s backend", stats.Accounts, stats.Lists, cfg.Storage.Backend)

	initialDelay, interval := cfg.SaveSchedule()
	persister := persist.New(st, users, lists,
		persist.WithSchedule(initialDelay, interval),
		persist.WithMetrics(m))

	apiKey := securemem.NewSecret(cfg.Catalog.APIKey)
	defer apiKey.Destroy()
	books := catalog.NewGoogleBooks(apiKey,
		catalog.WithBaseURL(cfg.Catalog.BaseURL),
		catalog.WithTimeout(cfg.CatalogTimeout()),
		catalog.WithMetrics(m))
	if err := books.Validate(); err != nil {
		log.Warn("%v; catalog requests will be rejected by the API", err)
	}
	cat := catalog.NewCached(books, cfg.Catalog.CacheMaxEntries, cfg.CacheTTL(), m)

	dispatcher := command.NewDispatcher(st, cat, command.WithMetrics(m))
	server := socketserver.NewServer(socketserver.OptionsFromConfig(cfg), dispatcher, m)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := server.Start(runCtx); err != nil {
		return err
	}
	persister.Start(runCtx)
	defer func() {
		if stopErr := persister.Stop(); stopErr != nil {
			log.Error("Final snapshot failed: %v", stopErr)
			err = errors.Join(err, stopErr)
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s listening on %s\n",
		color.GreenString("bookshelf"), version, server.Addr())

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		select {
		case <-gctx.Done():
			server.Stop()
		case <-server.Done():
		}
		server.Wait()
		cancel()
		return nil
	})

	if cfg.Admin.Addr != "" {
		adminOpts := web.Options{
			Addr:            cfg.Admin.Addr,
			EnablePprof:     cfg.Admin.EnablePprof,
			MaxMessageBytes: cfg.MaxMessageBytes,
			AllowedOrigins:  cfg.Admin.AllowedOrigins,
		}
		if cfg.Admin.WebSocketKill {
			adminOpts.OnKill = server.Stop
		}
		admin := web.NewServer(adminOpts, dispatcher, server, st, m)
		if err := admin.Start(); err != nil {
			server.Stop()
			return err
		}
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), adminShutdownTimeout)
			defer done()
			return admin.Stop(shutdownCtx)
		})
	}

	if _, statErr := os.Stat(filepath.Dir(configFile)); statErr == nil {
		g.Go(func() error {
			err := config.Watch(gctx, configFile, func(next *config.Config) {
				level := logger.ParseLevel(next.LogLevel)
				if level != logger.Global().GetLevel() {
					log.Info("Log level changed to %s", level)
					logger.Global().SetLevel(level)
				}
			})
			if err != nil {
				log.Warn("Config watcher stopped: %v", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Server stopped")
	return nil
}

// openArtifacts returns the users and lists artifacts for the configured
// backend, and a function releasing whatever backs them.
func openArtifacts(cfg *config.Config) (users, lists persist.Artifact, closeFn func(), err error) {
	s := cfg.Storage
	switch s.Backend {
	case config.BackendSQLite:
		db, err := persist.OpenSQLite(cfg.SQLitePath())
		if err != nil {
			return nil, nil, nil, err
		}
		return db.Artifact(s.UsersFile), db.Artifact(s.ListsFile), func() { db.Close() }, nil

	case config.BackendS3:
		client := persist.NewS3Client(persist.S3Options{
			Bucket:   s.S3.Bucket,
			Prefix:   s.S3.Prefix,
			Region:   s.S3.Region,
			Endpoint: s.S3.Endpoint,
		})
		return persist.NewS3Artifact(client, s.S3.Bucket, s.S3.Prefix, s.UsersFile),
			persist.NewS3Artifact(client, s.S3.Bucket, s.S3.Prefix, s.ListsFile),
			func() {}, nil

	default:
		return persist.NewFileArtifact(filepath.Join(s.DataDir, s.UsersFile)),
			persist.NewFileArtifact(filepath.Join(s.DataDir, s.ListsFile)),
			func() {}, nil
	}
}
