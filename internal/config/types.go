package config

// Config is the root configuration for larkgpt.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway,omitempty"`
	Lark     LarkConfig     `yaml:"lark,omitempty"`
	OpenAI   OpenAIConfig   `yaml:"openai,omitempty"`
	History  HistoryConfig  `yaml:"history,omitempty"`
	Search   SearchConfig   `yaml:"search,omitempty"`
	Throttle ThrottleConfig `yaml:"throttle,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// GatewayConfig controls the webhook HTTP server.
type GatewayConfig struct {
	Port int `yaml:"port,omitempty"`

	// Bind is "lan" or "loopback". Webhook delivery needs a reachable
	// address, so lan is the default.
	Bind string `yaml:"bind,omitempty"`

	// VerificationToken is checked against the token in every event.
	VerificationToken string `yaml:"verificationToken,omitempty"`

	// AllowedOrigins for cross-origin observers of the event feed.
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// LarkConfig holds the IM platform app credentials.
type LarkConfig struct {
	AppID     string `yaml:"appId,omitempty"`
	AppSecret string `yaml:"appSecret,omitempty"`

	// AppName is the bot's display name, used to gate group messages
	// that mention everyone.
	AppName string `yaml:"appName,omitempty"`

	BaseURL string `yaml:"baseUrl,omitempty"`

	// RateLimit caps outbound messenger API calls per second.
	RateLimit float64 `yaml:"rateLimit,omitempty"`
}

// OpenAIConfig holds the completion API settings.
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey,omitempty"`
	BaseURL string `yaml:"baseUrl,omitempty"`
	Model   string `yaml:"model,omitempty"`

	// Proxy is an optional forward proxy URL for completion requests.
	Proxy string `yaml:"proxy,omitempty"`
}

// HistoryConfig controls conversation persistence.
type HistoryConfig struct {
	// Backend is "sqlite" or "mongo".
	Backend string `yaml:"backend,omitempty"`

	// Window is how many recent turns are replayed as prior context.
	Window int `yaml:"window,omitempty"`

	Mongo MongoConfig `yaml:"mongo,omitempty"`
}

// MongoConfig holds MongoDB connection settings for the mongo backend.
type MongoConfig struct {
	URI      string `yaml:"uri,omitempty"`
	Database string `yaml:"database,omitempty"`
}

// SearchConfig enables the web search function.
type SearchConfig struct {
	Enabled    bool   `yaml:"enabled,omitempty"`
	APIKey     string `yaml:"apiKey,omitempty"`
	EngineID   string `yaml:"engineId,omitempty"`
	MaxResults int    `yaml:"maxResults,omitempty"`
}

// ThrottleConfig controls the pacing of card edits.
type ThrottleConfig struct {
	// GapMillis is the minimum spacing between card edits.
	GapMillis int `yaml:"gapMillis,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File  string `yaml:"file,omitempty"`
}
