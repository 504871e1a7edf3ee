package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bryanwahyu/texture-automaton/internal/application"
	"github.com/bryanwahyu/texture-automaton/internal/application/textures"
	"github.com/bryanwahyu/texture-automaton/internal/config"
	"github.com/bryanwahyu/texture-automaton/internal/domain/ai"
	"github.com/bryanwahyu/texture-automaton/internal/domain/history"
	domain "github.com/bryanwahyu/texture-automaton/internal/domain/textures"
	"github.com/bryanwahyu/texture-automaton/internal/infra/ai/gemini"
	"github.com/bryanwahyu/texture-automaton/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/texture-automaton/internal/infra/db/mysql"
	"github.com/bryanwahyu/texture-automaton/internal/infra/db/postgres"
	"github.com/bryanwahyu/texture-automaton/internal/infra/db/sqlite"
	"github.com/bryanwahyu/texture-automaton/internal/infra/db/sqlstore"
	"github.com/bryanwahyu/texture-automaton/internal/infra/executor/process"
	"github.com/bryanwahyu/texture-automaton/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/texture-automaton/internal/infra/storage"
	"github.com/bryanwahyu/texture-automaton/internal/logging"
	"github.com/bryanwahyu/texture-automaton/internal/middleware"
)

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "texture-manager: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	var (
		configPath = flag.String("config", "", "path to config.yaml (default $CONFIG_PATH or ./config.yaml)")
		assetsPath = flag.String("assets-path", "", "directory containing textures")
		exePath    = flag.String("exe-path", "", "application to launch")
		interval   = flag.Float64("regeneration-interval", 0, "seconds between regeneration passes; 0 disables")
		force      = flag.Bool("force-reanalyze", false, "ignore a cached analysis file")
		apiKey     = flag.String("api-key", "", "AI provider API key")
		provider   = flag.String("provider", "", "AI provider: gemini or openai")
		statusPort = flag.Int("status-port", 0, "serve status on this port; 0 disables")
	)
	flag.Parse()

	// only flags given on the command line override the file
	var ov config.Overrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "assets-path":
			ov.AssetsPath = assetsPath
		case "exe-path":
			ov.ExePath = exePath
		case "regeneration-interval":
			d := time.Duration(*interval * float64(time.Second))
			ov.Interval = &d
		case "force-reanalyze":
			ov.ForceReanalyze = force
		case "api-key":
			ov.APIKey = apiKey
		case "provider":
			ov.Provider = provider
		case "status-port":
			ov.StatusPort = statusPort
		}
	})

	// load config
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		path := "config.yaml"
		if v := os.Getenv("CONFIG_PATH"); v != "" {
			path = v
		}
		cfg, err = config.LoadOptional(path)
	}
	if err != nil {
		die("config load error: %v", err)
	}
	cfg.Apply(ov)
	cfg.ApplyDefaults()
	cfg.Normalize()
	cfg.ResolveAPIKey(os.Getenv)
	if err := cfg.Validate(); err != nil {
		die("%v", err)
	}

	logCloser, err := logging.Setup(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		die("%v", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	layout, err := buildLayout(cfg)
	if err != nil {
		die("%v", err)
	}

	// init provider
	var prov ai.Provider
	switch cfg.AI.Provider {
	case config.ProviderOpenAI:
		prov = openai.NewClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.ImageModel)
	default:
		gc, err := gemini.NewClient(ctx, cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.ImageModel, cfg.AI.Timeout)
		if err != nil {
			die("%v", err)
		}
		prov = gc
	}

	// init minio
	var mirror domain.BackupMirror
	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.Prefix,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			die("minio init error: %v", err)
		}
		mirror = store
	}

	// init history
	db, repo, err := openHistory(ctx, cfg)
	if err != nil {
		die("%v", err)
	}
	if db != nil {
		defer db.Close()
	}

	clock := application.SystemClock{}
	backups := &textures.BackupManager{Layout: layout, Clock: clock, Mirror: mirror}
	engine := &textures.Engine{
		Layout:   layout,
		Provider: prov,
		Backups:  backups,
		Clock:    clock,
	}
	if repo != nil {
		engine.History = repo
	}
	sched := &textures.Scheduler{
		Analyzer: &textures.Analyzer{
			Layout:       layout,
			Provider:     prov,
			Clock:        clock,
			Temperature:  *cfg.AI.Temperature,
			VerifyOnLoad: cfg.Schedule.VerifyOnLoad,
		},
		Engine:       engine,
		Launcher:     process.NewRunner(cfg.App.Args...),
		ExePath:      cfg.App.ExePath,
		Force:        cfg.Schedule.ForceReanalyze,
		Interval:     cfg.Schedule.Interval,
		PollInterval: cfg.Schedule.PollInterval,
	}
	sess := textures.NewSession()

	var srv *http.Server
	if cfg.Server.Port > 0 {
		srv = startStatusServer(cfg, sess, repo)
	}

	log.WithFields(log.Fields{
		"assets":   layout.AssetsRoot,
		"exe":      cfg.App.ExePath,
		"provider": cfg.AI.Provider,
		"interval": cfg.Schedule.Interval,
	}).Info("texture manager starting")

	runErr := sched.Run(ctx, sess)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("status server shutdown error")
		}
		cancel()
	}
	if runErr != nil {
		log.WithError(runErr).Error("texture manager failed")
		logCloser.Close()
		os.Exit(1)
	}
	log.Info("texture manager stopped")
}

func buildLayout(cfg *config.Config) (textures.Layout, error) {
	abs := func(p string) (string, error) {
		a, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", p, err)
		}
		return a, nil
	}
	var l textures.Layout
	var err error
	if l.AssetsRoot, err = abs(cfg.Assets.Path); err != nil {
		return l, err
	}
	if l.BackupRoot, err = abs(cfg.Assets.BackupDir); err != nil {
		return l, err
	}
	if l.AnalysisFile, err = abs(cfg.Assets.AnalysisFile); err != nil {
		return l, err
	}
	if l.UpdateFlagFile, err = abs(cfg.Assets.UpdateFlagFile); err != nil {
		return l, err
	}
	l.Extensions = cfg.Assets.Extensions
	return l, nil
}

// openHistory connects the configured pass history. Both results are nil
// when no driver is set.
func openHistory(ctx context.Context, cfg *config.Config) (*sql.DB, *sqlstore.PassRepository, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Database.Driver {
	case "":
		return nil, nil, nil
	case config.DriverSQLite:
		db, err = sqlite.Connect(ctx, cfg.Database.Path)
	case config.DriverMySQL:
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
	case config.DriverPostgres:
		db, err = postgres.Connect(ctx, cfg.PostgresDSN())
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s connect error: %w", cfg.Database.Driver, err)
	}

	var repo *sqlstore.PassRepository
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		repo, err = sqlite.NewPassRepository(ctx, db)
	case config.DriverMySQL:
		repo, err = mysqlp.NewPassRepository(ctx, db)
	case config.DriverPostgres:
		repo, err = postgres.NewPassRepository(ctx, db)
	}
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("%s migrate error: %w", cfg.Database.Driver, err)
	}
	return db, repo, nil
}

func startStatusServer(cfg *config.Config, sess *textures.Session, repo *sqlstore.PassRepository) *http.Server {
	checkers := map[string]middleware.HealthChecker{
		"process": &middleware.ProcessHealthChecker{Alive: func() bool {
			p := sess.Process()
			return p != nil && p.Alive()
		}},
	}
	// a nil *PassRepository must not become a non-nil interface
	var hist history.Repository
	if repo != nil {
		hist = repo
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: repo}
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr: addr,
		Handler: httpserver.NewRouter(sess, hist, httpserver.Options{
			Token:       cfg.Server.Token,
			RateLimit:   cfg.Server.RateLimit,
			CORSOrigins: cfg.Server.CORSOrigins,
			Checkers:    checkers,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", addr).Info("status server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("status server error")
		}
	}()
	return srv
}
