package config

// Engine defaults.
const (
	DefaultEngineWorkers       = 4
	DefaultEngineMaxFiles      = 2000
	DefaultEngineMaxBundleSize = "50MB"
	DefaultEngineStripComments = true
)

// Cache defaults. An empty directory resolves to the user cache directory.
const (
	DefaultCacheEnabled    = true
	DefaultCacheMaxEntries = 1024
	DefaultCacheDirectory  = ""
	DefaultCachePersist    = true
)

// Logging defaults.
const (
	DefaultLoggingLevel = "info"
	DefaultLoggingJSON  = false
)

// Telemetry defaults. No endpoint means no export.
const (
	DefaultTelemetrySampleRatio = 0.0
)
