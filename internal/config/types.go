package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Token          string        `json:"token"`
	GroupID        int64         `json:"groupId"`
	APIVersion     string        `json:"apiVersion"`
	APIBaseURL     string        `json:"apiBaseUrl"`
	LogLevel       string        `json:"logLevel"`
	Wait           int           `json:"wait"`           // seconds the long poll server holds the request
	RetryDelay     int           `json:"retryDelay"`     // ms - delay before retrying a failed long poll request
	RequestSlack   int           `json:"requestSlack"`   // ms - added on top of wait for the HTTP request timeout
	RequestTimeout int           `json:"requestTimeout"` // ms - timeout for regular API calls
	DedupCacheSize int           `json:"dedupCacheSize"` // 0 uses the default, -1 disables replay deduplication
	Plugins        *PluginConfig `json:"plugins,omitempty"`
}

// PluginConfig represents script plugin configuration
type PluginConfig struct {
	Enabled   bool   `json:"enabled"`
	Directory string `json:"directory"` // path to plugins directory
	Timeout   int    `json:"timeout"`   // execution timeout in milliseconds
}

// Default values
const (
	DefaultAPIVersion      = "5.131"
	DefaultAPIBaseURL      = "https://api.vk.com/method/"
	DefaultLogLevel        = "info"
	DefaultWait            = 25    // seconds
	DefaultRetryDelay      = 3000  // ms
	DefaultRequestSlack    = 10000 // ms
	DefaultRequestTimeout  = 5000  // ms
	DefaultDedupCacheSize  = 1000
	DefaultPluginDirectory = "./plugins"
	DefaultPluginTimeout   = 10000 // ms
)

// GetWaitDuration returns the long poll hold time as time.Duration
func (c *Config) GetWaitDuration() time.Duration {
	return time.Duration(c.Wait) * time.Second
}

// GetRetryDelayDuration returns the long poll retry delay as time.Duration
func (c *Config) GetRetryDelayDuration() time.Duration {
	return time.Duration(c.RetryDelay) * time.Millisecond
}

// GetRequestSlackDuration returns the long poll request slack as time.Duration
func (c *Config) GetRequestSlackDuration() time.Duration {
	return time.Duration(c.RequestSlack) * time.Millisecond
}

// GetRequestTimeoutDuration returns the API request timeout as time.Duration
func (c *Config) GetRequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Millisecond
}

// IsPluginsEnabled returns true if plugins are configured and enabled
func (c *Config) IsPluginsEnabled() bool {
	return c.Plugins != nil && c.Plugins.Enabled
}

// GetPluginDirectory returns the plugins directory path
func (c *Config) GetPluginDirectory() string {
	if c.Plugins == nil || c.Plugins.Directory == "" {
		return DefaultPluginDirectory
	}
	return c.Plugins.Directory
}

// GetPluginTimeoutDuration returns the plugin execution timeout as time.Duration
func (c *Config) GetPluginTimeoutDuration() time.Duration {
	if c.Plugins == nil || c.Plugins.Timeout == 0 {
		return time.Duration(DefaultPluginTimeout) * time.Millisecond
	}
	return time.Duration(c.Plugins.Timeout) * time.Millisecond
}
