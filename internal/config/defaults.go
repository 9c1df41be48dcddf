package config

const (
	defaultCacheDir                = "~/.cache/lightcut"
	defaultLogDir                  = "~/.local/share/lightcut/logs"
	defaultPreviewBind             = "127.0.0.1:7733"
	defaultCanvasWidth             = 1280
	defaultCanvasHeight            = 720
	defaultCacheBudgetMiB          = 512
	defaultFrameStoreDepth         = 2
	defaultMaxWorkers              = 4
	defaultMaxOpenDecoders         = 8
	defaultSequentialWindowSeconds = 2.0
	defaultPeakCacheMaxMiB         = 256
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir:    defaultCacheDir,
			LogDir:      defaultLogDir,
			PreviewBind: defaultPreviewBind,
		},
		Preview: Preview{
			CanvasWidth:     defaultCanvasWidth,
			CanvasHeight:    defaultCanvasHeight,
			CacheBudgetMiB:  defaultCacheBudgetMiB,
			FrameStoreDepth: defaultFrameStoreDepth,
		},
		Decode: Decode{
			MaxWorkers:              defaultMaxWorkers,
			MaxOpenDecoders:         defaultMaxOpenDecoders,
			SequentialWindowSeconds: defaultSequentialWindowSeconds,
			HardwareAccel:           true,
		},
		PeakCache: PeakCache{
			Enabled: true,
			Dir:     defaultCacheDir + "/peaks",
			MaxMiB:  defaultPeakCacheMaxMiB,
		},
		MediaInfo: MediaInfo{
			Enabled: true,
			Path:    defaultCacheDir + "/mediainfo.db",
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
