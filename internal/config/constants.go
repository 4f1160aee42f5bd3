package config

// Default paths and endpoints
const (
	// DefaultDatabasePath is the default path for the local chapter cache
	DefaultDatabasePath = "./storyreader.db"

	// DefaultStoryAPIURL is the story API used when STORY_API_URL is unset
	DefaultStoryAPIURL = "http://localhost:8080"
)
