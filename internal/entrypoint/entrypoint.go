package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/storyreader/internal/config"
	"github.com/mrlokans/storyreader/internal/database"
	"github.com/mrlokans/storyreader/internal/database/books"
	"github.com/mrlokans/storyreader/internal/database/chapters"
	progressrepo "github.com/mrlokans/storyreader/internal/database/progress"
	"github.com/mrlokans/storyreader/internal/database/settings"
	syncrepo "github.com/mrlokans/storyreader/internal/database/sync"
	http_controllers "github.com/mrlokans/storyreader/internal/http"
	"github.com/mrlokans/storyreader/internal/images"
	"github.com/mrlokans/storyreader/internal/library"
	"github.com/mrlokans/storyreader/internal/preferences"
	"github.com/mrlokans/storyreader/internal/progress"
	"github.com/mrlokans/storyreader/internal/remote"
	"github.com/mrlokans/storyreader/internal/scheduler"
	"github.com/mrlokans/storyreader/internal/session"
	"github.com/mrlokans/storyreader/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// stop background work first so nothing writes after the server is gone
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

// Library bundles the storage and sync components shared by the server and
// the CLI commands.
type Library struct {
	DB       *database.Database
	Books    *books.Repository
	Chapters *chapters.Repository
	Progress *progressrepo.Repository
	Settings *settings.Repository
	Sync     *syncrepo.Repository
	Syncer   *library.Syncer
	Images   *images.Cache
}

// OpenLibrary opens the database and builds the story API syncer.
func OpenLibrary(cfg *config.Config) (*Library, error) {
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	lib := &Library{
		DB:       db,
		Books:    books.NewRepository(db.DB),
		Chapters: chapters.NewRepository(db.DB),
		Progress: progressrepo.NewRepository(db.DB),
		Settings: settings.NewRepository(db.DB),
		Sync:     syncrepo.NewRepository(db.DB),
	}

	if cfg.StoryAPI.BaseURL == "" {
		log.Printf("WARNING: STORY_API_URL is not set. Chapters not already cached cannot be opened.")
	}
	client := remote.NewClient(cfg.StoryAPI.BaseURL, cfg.StoryAPI.Token, cfg.StoryAPI.Timeout)
	lib.Syncer = library.NewSyncer(client, lib.Chapters, lib.Books)
	lib.Syncer.SetProgressReporter(lib.Sync)

	// covers and illustrations live next to the database
	imageDir := filepath.Join(filepath.Dir(cfg.Database.Path), "images")
	if cache, err := images.NewCache(imageDir, cfg.StoryAPI.Timeout); err != nil {
		log.Printf("WARNING: Failed to initialize image cache: %v", err)
	} else {
		lib.Images = cache
		lib.Syncer.SetImageInvalidator(cache)
		log.Printf("Image cache initialized at %s", imageDir)
	}

	return lib, nil
}

func (l *Library) Close() {
	if err := l.DB.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting StoryReader v%s", version)

	lib, err := OpenLibrary(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer lib.Close()

	prefs, err := preferences.NewStore(lib.Settings, preferences.Preferences{
		ChapterSortAscending: cfg.Reader.ChapterSortAscending,
		NarrationEnabled:     cfg.Reader.NarrationEnabled,
		NarrationWPM:         cfg.Reader.NarrationWPM,
	})
	if err != nil {
		log.Fatalf("Failed to load reader preferences: %v", err)
	}

	tracker := progress.NewTracker(lib.Progress, lib.Chapters)

	manager := session.NewManager(session.NewFactory(session.Deps{
		Chapters:    lib.Chapters,
		Refresher:   lib.Syncer,
		Positions:   tracker,
		Preferences: prefs,
		Narrator:    session.NewPacedNarrator(),
		Defaults:    prefs.Get(),
	}))

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.FromAppConfig(cfg.Tasks))
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(
			tasks.NewRefreshBookQueue(lib.Syncer),
			tasks.NewRefreshChapterQueue(lib.Syncer),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	var refreshScheduler *scheduler.LibraryRefreshScheduler
	if cfg.LibraryRefresh.Enabled {
		refreshScheduler = scheduler.NewLibraryRefreshScheduler(cfg.LibraryRefresh.Schedule, lib.Books, lib.Syncer, lib.Settings)
		if taskClient != nil {
			refreshScheduler.SetQueue(taskClient)
		}
		if err := refreshScheduler.Start(context.Background()); err != nil {
			log.Printf("WARNING: Library refresh disabled: %v", err)
			refreshScheduler = nil
		}
	}

	routerCfg := http_controllers.RouterConfig{
		Health:      lib.DB,
		Books:       lib.Books,
		Chapters:    lib.Chapters,
		Progress:    lib.Progress,
		Refresher:   lib.Syncer,
		Positions:   tracker,
		Preferences: prefs,
		Sessions:    manager,
		Version:     version,
	}
	if taskClient != nil {
		routerCfg.TaskQueue = taskClient
		routerCfg.TaskStatus = taskClient
	}
	if lib.Images != nil {
		routerCfg.Images = lib.Images
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		if refreshScheduler != nil {
			refreshScheduler.Stop()
		}
		manager.Shutdown()
		if err := tracker.Flush(ctx); err != nil {
			log.Printf("[PROGRESS] Pending positions not written before shutdown: %v", err)
		}
		tracker.Close()
		prefs.Close()
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}
