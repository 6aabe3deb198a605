package config

const (
	defaultReviewDir         = "~/offload/review"
	defaultLogDir            = "~/.local/share/offload"
	defaultMinSizeMB         = 100
	defaultHashWorkers       = 4
	defaultImportTimeout     = 120
	defaultBatchSize         = 500
	defaultFreeSpaceMarginMB = 512
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults. The source
// directory and catalog index have no sensible defaults and must be set.
func Default() Config {
	return Config{
		Paths: Paths{
			ReviewDir: defaultReviewDir,
			LogDir:    defaultLogDir,
		},
		Scan: Scan{
			Extensions: []string{".mov", ".mp4", ".m4v", ".avi"},
			MinSizeMB:  defaultMinSizeMB,
		},
		Hashing: Hashing{
			Workers: defaultHashWorkers,
		},
		Catalog: Catalog{
			ImportTimeout: defaultImportTimeout,
		},
		Execute: Execute{
			BatchSize:         defaultBatchSize,
			FreeSpaceMarginMB: defaultFreeSpaceMarginMB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
