package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		StoryAPI
		Reader
		Tasks
		LibraryRefresh
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	StoryAPI struct {
		BaseURL string
		Token   string
		Timeout time.Duration
	}
	Reader struct {
		ChapterSortAscending bool // Default chapter list order until the user picks one
		NarrationEnabled     bool
		NarrationWPM         int // Words per minute used to pace narration
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	LibraryRefresh struct {
		Enabled  bool
		Schedule string // Cron format: "0 */6 * * *" = every 6 hours
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8189)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Story API defaults
	v.SetDefault("story_api_url", DefaultStoryAPIURL)
	v.SetDefault("story_api_token", "")
	v.SetDefault("story_api_timeout", "10s")

	// Reader defaults
	v.SetDefault("reader_chapter_sort_ascending", true)
	v.SetDefault("reader_narration_enabled", true)
	v.SetDefault("reader_narration_wpm", 180)

	// Library refresh defaults
	v.SetDefault("library_refresh_enabled", false)
	v.SetDefault("library_refresh_schedule", "0 */6 * * *") // Every 6 hours

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "5m")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		StoryAPI: StoryAPI{
			BaseURL: v.GetString("STORY_API_URL"),
			Token:   v.GetString("STORY_API_TOKEN"),
			Timeout: v.GetDuration("STORY_API_TIMEOUT"),
		},
		Reader: Reader{
			ChapterSortAscending: v.GetBool("READER_CHAPTER_SORT_ASCENDING"),
			NarrationEnabled:     v.GetBool("READER_NARRATION_ENABLED"),
			NarrationWPM:         v.GetInt("READER_NARRATION_WPM"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		LibraryRefresh: LibraryRefresh{
			Enabled:  v.GetBool("LIBRARY_REFRESH_ENABLED"),
			Schedule: v.GetString("LIBRARY_REFRESH_SCHEDULE"),
		},
	}
}
