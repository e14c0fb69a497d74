package config

const (
	defaultBaseDir            = "/flywheel/v0"
	defaultPipelineShell      = "/bin/sh"
	defaultPipelineScript     = "app/main.sh"
	defaultPipelineInputName  = "input"
	defaultAPIKeyInput        = "api-key"
	defaultPlatformTimeout    = 30
	defaultPlatformRetryCount = 3
	defaultCustomAgeKey       = "age_months"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogFileName        = "synthgear.log"
	defaultLedgerFileName     = "synthgear.db"
)

var (
	defaultAcquisitionInclude = []string{"T2", "AXI"}
	defaultAcquisitionExclude = []string{"Segmentation", "Align"}
)

// Default returns a Config populated with repository defaults. Directory
// fields left empty are derived from the base directory by Load.
func Default() Config {
	return Config{
		Paths: Paths{
			BaseDir: defaultBaseDir,
		},
		Pipeline: Pipeline{
			Shell:     defaultPipelineShell,
			InputName: defaultPipelineInputName,
		},
		Platform: Platform{
			APIKeyInput:    defaultAPIKeyInput,
			TimeoutSeconds: defaultPlatformTimeout,
			RetryCount:     defaultPlatformRetryCount,
		},
		Demographics: Demographics{
			CustomAgeKey:       defaultCustomAgeKey,
			AcquisitionInclude: append([]string(nil), defaultAcquisitionInclude...),
			AcquisitionExclude: append([]string(nil), defaultAcquisitionExclude...),
			LocalDICOMFallback: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Ledger: Ledger{
			Enabled: true,
		},
	}
}
