package proxy

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// ErrUnknownType is returned by ParseType for anything outside the supported schemes.
var ErrUnknownType = errors.New("unknown proxy type")

type Type int

const (
	TypeHTTP Type = iota
	TypeHTTPS
	TypeSOCKS4
	TypeSOCKS5
)

func (t Type) String() string {
	switch t {
	case TypeHTTPS:
		return "https"
	case TypeSOCKS4:
		return "socks4"
	case TypeSOCKS5:
		return "socks5"
	default:
		return "http"
	}
}

// ParseType maps a scheme name (http, https, socks4, socks5) to its Type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "http":
		return TypeHTTP, nil
	case "https":
		return TypeHTTPS, nil
	case "socks4":
		return TypeSOCKS4, nil
	case "socks5":
		return TypeSOCKS5, nil
	}
	return TypeHTTP, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type Auth struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// Proxy is a single proxy endpoint. Treat it as immutable: copy it around,
// never mutate one that has been handed to another component.
type Proxy struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
	Type Type   `json:"type" yaml:"type"`
	Auth *Auth  `json:"auth,omitempty" yaml:"auth,omitempty"`
}

func New(host string, port int, typ Type) Proxy {
	return Proxy{Host: host, Port: port, Type: typ}
}

func NewWithAuth(host string, port int, typ Type, username, password string) Proxy {
	return Proxy{
		Host: host,
		Port: port,
		Type: typ,
		Auth: &Auth{Username: username, Password: password},
	}
}

func (p Proxy) Address() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// Key is the deduplication identity. Scheme and credentials are not part of it.
func (p Proxy) Key() string {
	return p.Address()
}

// URL renders scheme://[user:pass@]host:port
func (p Proxy) URL() *url.URL {
	u := &url.URL{
		Scheme: p.Type.String(),
		Host:   p.Address(),
	}
	if p.Auth != nil {
		u.User = url.UserPassword(p.Auth.Username, p.Auth.Password)
	}
	return u
}

func (p Proxy) String() string {
	return p.URL().String()
}

// SimpleString renders host:port
func (p Proxy) SimpleString() string {
	return p.Address()
}

// FullString renders host:port:user:pass, or host:port when there is no auth
func (p Proxy) FullString() string {
	if p.Auth == nil {
		return p.SimpleString()
	}
	return fmt.Sprintf("%s:%d:%s:%s", p.Host, p.Port, p.Auth.Username, p.Auth.Password)
}

// Equal compares every field, credentials included.
func (p Proxy) Equal(other Proxy) bool {
	if p.Host != other.Host || p.Port != other.Port || p.Type != other.Type {
		return false
	}
	if p.Auth == nil || other.Auth == nil {
		return p.Auth == nil && other.Auth == nil
	}
	return *p.Auth == *other.Auth
}

// Dedup sorts by the host:port key and collapses adjacent duplicates. Records
// that differ only in scheme or credentials are merged; the first one in key
// order wins.
func Dedup(proxies []Proxy) []Proxy {
	if len(proxies) == 0 {
		return proxies
	}

	sorted := make([]Proxy, len(proxies))
	copy(sorted, proxies)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Key() < sorted[j].Key()
	})

	out := sorted[:1]
	for _, p := range sorted[1:] {
		last := out[len(out)-1]
		if p.Host == last.Host && p.Port == last.Port {
			continue
		}
		out = append(out, p)
	}
	return out
}

func validPort(s string) (int, bool) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, false
	}
	return port, true
}
