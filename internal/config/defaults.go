package config

const (
	defaultConfigPath              = "~/.config/wpqueue/config.toml"
	defaultDataDir                 = "~/.local/share/wpqueue"
	defaultLogDir                  = "~/.local/share/wpqueue/logs"
	defaultSocketName              = "wpqueue.sock"
	defaultRequestsPerSecond       = 4.0
	defaultBurst                   = 2
	defaultStorageBackend          = "sqlite"
	defaultRedisAddress            = "127.0.0.1:6379"
	defaultRedisKey                = "wpqueue:entries"
	defaultConnectivityMode        = "auto"
	defaultProbeInterval           = 15
	defaultProbeTimeout            = 5
	defaultCompletedDisplayDelayMS = 3000
	defaultNotifyRequestTimeout    = 10
	defaultMetricsBind             = "127.0.0.1:9464"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		WordPress: WordPress{
			RequestsPerSecond: defaultRequestsPerSecond,
			Burst:             defaultBurst,
		},
		Storage: Storage{
			Backend:      defaultStorageBackend,
			RedisAddress: defaultRedisAddress,
			RedisKey:     defaultRedisKey,
		},
		Connectivity: Connectivity{
			Mode:          defaultConnectivityMode,
			ProbeInterval: defaultProbeInterval,
			ProbeTimeout:  defaultProbeTimeout,
			Netlink:       true,
		},
		Workflow: Workflow{
			CompletedDisplayDelayMS: defaultCompletedDisplayDelayMS,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Success:        true,
			Failure:        true,
			Offline:        true,
		},
		Metrics: Metrics{
			Bind: defaultMetricsBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
