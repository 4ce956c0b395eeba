package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/example/conceptbot/internal/bot"
	"github.com/example/conceptbot/internal/config"
	"github.com/example/conceptbot/internal/database"
	"github.com/example/conceptbot/internal/excel"
	"github.com/example/conceptbot/internal/memstore"
	"github.com/example/conceptbot/internal/review"
	"github.com/example/conceptbot/internal/scheduler"
)

// appStores groups the storage capabilities each component consumes.
// Both backends (sqlx repositories and the in-memory store) populate it.
type appStores struct {
	progress      review.ProgressStore
	concepts      review.ConceptStore
	conceptWriter excel.ConceptWriter
	users         bot.UserStore
	userList      scheduler.UserLister
	snapshots     scheduler.SnapshotStore
}

func main() {
	importPath := flag.String("import", "", "import concepts from an .xlsx/.csv file and exit")
	importUser := flag.Int64("import-user", 0, "user ID to import concepts for (with -import)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	stores, err := buildStores(cfg, sugar)
	if err != nil {
		sugar.Fatalw("failed to set up storage", "backend", cfg.StoreBackend, "error", err)
	}

	if *importPath != "" {
		runImport(stores.conceptWriter, *importPath, *importUser, sugar)
		return
	}

	orch := review.New(stores.progress, stores.concepts, sugar)

	sched := scheduler.New(stores.userList, orch, stores.snapshots, sugar)
	if err := sched.Start(cfg.SnapshotHour); err != nil {
		sugar.Fatalw("failed to start scheduler", "error", err)
	}
	defer sched.Stop()

	b, err := bot.New(cfg, orch, stores.users, stores.conceptWriter, sugar)
	if err != nil {
		sugar.Fatalw("failed to create bot", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		sugar.Infow("received signal, shutting down", "signal", sig)
		cancel()

		// Give in-flight handlers a moment before the process exits.
		time.Sleep(2 * time.Second)
		b.Stop()
	}()

	sugar.Infow("bot starting", "backend", cfg.StoreBackend)
	if err := b.Start(ctx); err != nil && err != context.Canceled {
		sugar.Errorw("bot stopped with error", "error", err)
	}
	sugar.Infow("bot stopped")
}

func newLogger(mode string) (*zap.Logger, error) {
	if mode == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func buildStores(cfg *config.Config, log *zap.SugaredLogger) (*appStores, error) {
	if cfg.StoreBackend == config.BackendMemory {
		mem := memstore.New()
		return &appStores{
			progress:      mem,
			concepts:      mem,
			conceptWriter: mem,
			users:         mem,
			userList:      mem,
			snapshots:     mem,
		}, nil
	}

	driver, dsn := database.DriverSQLite, cfg.SQLitePath
	if cfg.StoreBackend == config.BackendPostgres {
		driver, dsn = database.DriverPostgres, cfg.PostgresDSN
	}

	db, err := database.Connect(driver, dsn)
	if err != nil {
		return nil, err
	}

	concepts := database.NewConceptRepository(db, log)
	users := database.NewUserRepository(db, log)
	return &appStores{
		progress:      database.NewProgressRepository(db, log),
		concepts:      concepts,
		conceptWriter: concepts,
		users:         users,
		userList:      users,
		snapshots:     database.NewSnapshotRepository(db, log),
	}, nil
}

func runImport(store excel.ConceptWriter, path string, userID int64, log *zap.SugaredLogger) {
	if userID == 0 {
		log.Fatalw("-import requires -import-user")
	}

	result, err := excel.ImportConcepts(context.Background(), store, userID, excel.DefaultImportConfig(path))
	if err != nil {
		log.Fatalw("import failed", "file", path, "error", err)
	}

	log.Infow("import finished",
		"file", path,
		"processed", result.TotalProcessed,
		"imported", result.Imported,
		"skipped", result.Skipped,
		"failed", len(result.Errors),
	)
	for _, e := range result.Errors {
		log.Warnw("import row failed", "detail", e)
	}
}
