package config

const (
	defaultConfigPath        = "~/.config/tubescan/config.toml"
	defaultDataDir           = "~/.local/share/tubescan"
	defaultCacheDirName      = "transcriptions_cache"
	defaultQueueFileName     = "jobs_queue.json"
	defaultQueueDBName       = "queue.db"
	defaultStatsFileName     = "processing_stats.json"
	defaultLogDirName        = "logs"
	defaultWorkDirName       = "work"
	defaultQueueBackend      = QueueBackendJSON
	defaultPollInterval      = 5
	defaultWorkers           = 2
	maxWorkers               = 16
	defaultJobTimeout        = 3600
	defaultWhisperBinary     = "whisper"
	defaultYtDlpBinary       = "yt-dlp"
	defaultModel             = "base"
	defaultDownloadTimeout   = 300
	defaultMetadataTimeout   = 120
	defaultTranscribeTimeout = 3600
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Supported queue backends.
const (
	QueueBackendJSON   = "json"
	QueueBackendSQLite = "sqlite"
)

// Default returns a Config populated with repository defaults. Derived paths
// (cache, queue, stats, logs) stay empty here and are filled relative to the
// data directory during normalization.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		Queue: Queue{
			Backend:      defaultQueueBackend,
			PollInterval: defaultPollInterval,
		},
		Dispatcher: Dispatcher{
			Workers:    defaultWorkers,
			JobTimeout: defaultJobTimeout,
		},
		Transcriber: Transcriber{
			WhisperBinary:     defaultWhisperBinary,
			YtDlpBinary:       defaultYtDlpBinary,
			DefaultModel:      defaultModel,
			DownloadTimeout:   defaultDownloadTimeout,
			MetadataTimeout:   defaultMetadataTimeout,
			TranscribeTimeout: defaultTranscribeTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
