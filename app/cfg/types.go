package cfg

import "time"

type Cfg struct {
	// Storage configuration
	DBPath     string
	SourcesDir string

	// Application configuration
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Forum API configuration
	ForumBaseURL      string
	ForumClientID     string
	ForumClientSecret string
	LookupDelay       time.Duration
	LookupMaxRetries  int
	LookupTimeout     time.Duration

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	LogFile   string
	Version   string
}
