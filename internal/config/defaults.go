package config

const (
	defaultStagingDir        = "~/.local/share/revoice/staging"
	defaultOutputDir         = "~/revoice/output"
	defaultLogDir            = "~/.local/share/revoice/logs"
	defaultDatabasePath      = "~/.local/share/revoice/revoice.db"
	defaultPoolSize          = 2
	defaultModelID           = "tts_models/multilingual/multi-dataset/xtts_v2"
	defaultTargetLanguage    = "en"
	defaultDevice            = "cpu"
	defaultSampleRate        = 24000
	defaultJobBaseSeconds    = 300
	defaultSegmentSeconds    = 120
	defaultDrainGraceSeconds = 15
	defaultStderrTailLines   = 40
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 60
	defaultNtfyTimeoutSecs   = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir:   defaultStagingDir,
			OutputDir:    defaultOutputDir,
			LogDir:       defaultLogDir,
			DatabasePath: defaultDatabasePath,
		},
		Synthesis: Synthesis{
			PoolSize:       defaultPoolSize,
			ModelID:        defaultModelID,
			TargetLanguage: defaultTargetLanguage,
			Device:         defaultDevice,
			SampleRate:     defaultSampleRate,
		},
		Watchdog: Watchdog{
			JobBaseSeconds:    defaultJobBaseSeconds,
			SegmentSeconds:    defaultSegmentSeconds,
			DrainGraceSeconds: defaultDrainGraceSeconds,
			StderrTailLines:   defaultStderrTailLines,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Validation: Validation{
			VerifyArtifacts: true,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSecs,
		},
	}
}
