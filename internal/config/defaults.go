package config

const (
	defaultDataDir              = "~/.local/share/tinytales"
	defaultExportDir            = "~/tinytales"
	defaultLogDir               = "~/.local/share/tinytales/logs"
	defaultDatabaseName         = "tinytales.db"
	defaultAPIBind              = "127.0.0.1:7488"
	defaultGenAIBaseURL         = "https://generativelanguage.googleapis.com/v1beta"
	defaultStoryModel           = "gemini-2.0-flash"
	defaultImageModel           = "gemini-2.0-flash-exp"
	defaultGenAITimeoutSeconds  = 60
	defaultTransportRetries     = 3
	defaultSpeechBaseURL        = "https://texttospeech.googleapis.com/v1"
	defaultSpeechEncoding       = "LINEAR16"
	defaultSpeechSampleRate     = 24000
	defaultSpeechTimeoutSeconds = 30
	defaultMaxRetries           = 3
	defaultInitialBackoffSecs   = 5
	defaultMaxBackoffSecs       = 60
	defaultMinBackoffSecs       = 1
	defaultFrameWidth           = 600
	defaultFrameHeight          = 400
	defaultFrameRate            = 10
	defaultGIFFrameDelayMS      = 2000
	defaultPDFMargin            = 20
	defaultDrainMS              = 1000
	defaultFlushMS              = 500
	defaultSilentPauseMS        = 1000
	defaultPlaybackFloorMS      = 5000
	defaultPlaybackMarginMS     = 1500
	defaultBackdropColor        = "#F0F0F0"
	defaultCardColor            = "#FFFFFF"
	defaultAdminPassword        = "adminpassword123"
	defaultHistoryLimit         = 10
	defaultBlogLimit            = 20
	defaultNotifyTimeoutSeconds = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

var defaultRateLimitStatuses = []int{429}

var defaultRateLimitPatterns = []string{`(?i)too many requests`, `429`, `RESOURCE_EXHAUSTED`}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			ExportDir: defaultExportDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		GenAI: GenAI{
			BaseURL:          defaultGenAIBaseURL,
			StoryModel:       defaultStoryModel,
			ImageModel:       defaultImageModel,
			TimeoutSeconds:   defaultGenAITimeoutSeconds,
			TransportRetries: defaultTransportRetries,
		},
		Speech: Speech{
			BaseURL:        defaultSpeechBaseURL,
			AudioEncoding:  defaultSpeechEncoding,
			SampleRateHz:   defaultSpeechSampleRate,
			TimeoutSeconds: defaultSpeechTimeoutSeconds,
		},
		Illustration: Illustration{
			MaxRetries:            defaultMaxRetries,
			InitialBackoffSeconds: defaultInitialBackoffSecs,
			MaxBackoffSeconds:     defaultMaxBackoffSecs,
			MinBackoffSeconds:     defaultMinBackoffSecs,
			RateLimitStatuses:     append([]int(nil), defaultRateLimitStatuses...),
			RateLimitPatterns:     append([]string(nil), defaultRateLimitPatterns...),
		},
		Export: Export{
			Width:            defaultFrameWidth,
			Height:           defaultFrameHeight,
			FrameRate:        defaultFrameRate,
			GIFFrameDelayMS:  defaultGIFFrameDelayMS,
			PDFMargin:        defaultPDFMargin,
			DrainMS:          defaultDrainMS,
			FlushMS:          defaultFlushMS,
			SilentPauseMS:    defaultSilentPauseMS,
			PlaybackFloorMS:  defaultPlaybackFloorMS,
			PlaybackMarginMS: defaultPlaybackMarginMS,
			BackdropColor:    defaultBackdropColor,
			CardColor:        defaultCardColor,
		},
		Library: Library{
			HistoryLimit: defaultHistoryLimit,
			BlogLimit:    defaultBlogLimit,
			SeedBlog:     true,
		},
		Admin: Admin{
			Password: defaultAdminPassword,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeoutSeconds,
			Story:          true,
			Illustrations:  true,
			Exports:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
