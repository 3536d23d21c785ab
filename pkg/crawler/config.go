package crawler

import (
	"fmt"
	"time"

	"openproxy/pkg/proxy"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// RandomUserAgent as Config.UserAgent picks a fresh desktop browser UA
	// for every request.
	RandomUserAgent = "random"
)

// Engine selects the HTTP machinery behind Fetch.
type Engine string

const (
	EngineHTTP  Engine = "http"
	EngineColly Engine = "colly"
)

func ParseEngine(s string) (Engine, error) {
	switch Engine(s) {
	case "", EngineHTTP:
		return EngineHTTP, nil
	case EngineColly:
		return EngineColly, nil
	}
	return "", fmt.Errorf("unknown crawler engine %q", s)
}

type Config struct {
	Timeout     time.Duration
	UserAgent   string
	DefaultType proxy.Type
	Engine      Engine
	// RateLimit caps source fetches per second in multi-source crawls.
	// Zero means unlimited.
	RateLimit float64
}

func DefaultConfig() Config {
	return Config{
		Timeout:     DefaultTimeout,
		UserAgent:   DefaultUserAgent,
		DefaultType: proxy.TypeHTTP,
		Engine:      EngineHTTP,
	}
}

func (c Config) WithTimeout(timeout time.Duration) Config {
	c.Timeout = timeout
	return c
}

func (c Config) WithUserAgent(ua string) Config {
	c.UserAgent = ua
	return c
}

func (c Config) WithProxyType(typ proxy.Type) Config {
	c.DefaultType = typ
	return c
}

func (c Config) WithEngine(engine Engine) Config {
	c.Engine = engine
	return c
}

func (c Config) WithRateLimit(perSecond float64) Config {
	c.RateLimit = perSecond
	return c
}
