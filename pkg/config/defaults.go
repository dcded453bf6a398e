package config

// Stress workload defaults.
const (
	DefaultStressSeed        = 1
	DefaultStressOperations  = 100_000
	DefaultStressKeySpace    = 10_000
	DefaultStressDeleteRatio = 0.4
	DefaultStressCheckEvery  = 1_000
	DefaultStressSampleEvery = 500
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = LogFormatText
)

// Supported log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Telemetry defaults.
const (
	DefaultOTLPEndpoint = ""
	DefaultOTLPInsecure = false
	DefaultMetricsAddr  = ""
)
