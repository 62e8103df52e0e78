package cfg

type Cfg struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Ingestion configuration
	SourcesDir  string
	Source      string
	Force       bool
	MaxPages    int
	DaysBack    int
	WorkerCount int
	BatchSize   int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
