package checker

import "time"

const (
	DefaultTimeout     = 10 * time.Second
	DefaultConcurrency = 10
	DefaultTestURL     = "http://httpbin.org/ip"
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Config controls a Checker. The With* setters return modified copies so a
// base config can be shared.
type Config struct {
	Timeout     time.Duration
	Concurrency int
	TestURL     string
	GeoDBPath   string
	UserAgent   string
}

func DefaultConfig() Config {
	return Config{
		Timeout:     DefaultTimeout,
		Concurrency: DefaultConcurrency,
		TestURL:     DefaultTestURL,
		UserAgent:   DefaultUserAgent,
	}
}

func (c Config) WithTimeout(timeout time.Duration) Config {
	c.Timeout = timeout
	return c
}

func (c Config) WithConcurrency(n int) Config {
	c.Concurrency = n
	return c
}

func (c Config) WithTestURL(url string) Config {
	c.TestURL = url
	return c
}

// WithGeoDBPath enables geo enrichment of working proxies. An empty path disables it.
func (c Config) WithGeoDBPath(path string) Config {
	c.GeoDBPath = path
	return c
}

func (c Config) WithUserAgent(ua string) Config {
	c.UserAgent = ua
	return c
}

// normalized fills zero values with the defaults.
func (c Config) normalized() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.TestURL == "" {
		c.TestURL = DefaultTestURL
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}
