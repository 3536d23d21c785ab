package checker

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	netproxy "golang.org/x/net/proxy"
	"h12.io/socks"

	"openproxy/pkg/proxy"
)

// newTransport builds a single-use transport that routes every request
// through p. Connections are never reused between probes.
func newTransport(p proxy.Proxy, timeout time.Duration) (*http.Transport, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
		DisableKeepAlives:     true,
		DisableCompression:    true,
		MaxIdleConns:          0,
		IdleConnTimeout:       1 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	switch p.Type {
	case proxy.TypeHTTP, proxy.TypeHTTPS:
		transport.Proxy = http.ProxyURL(forwardURL(p))
		transport.DialContext = (&net.Dialer{Timeout: timeout}).DialContext
	case proxy.TypeSOCKS5:
		dial, err := socks5Dialer(p, timeout)
		if err != nil {
			return nil, err
		}
		transport.DialContext = dial
	case proxy.TypeSOCKS4:
		transport.DialContext = socks4Dialer(p, timeout)
	default:
		return nil, fmt.Errorf("unsupported proxy type: %d", int(p.Type))
	}
	return transport, nil
}

// forwardURL is the address the transport talks plain HTTP to. Listing
// sites tag CONNECT-capable forward proxies as "https", so both HTTP
// variants are reached over http://.
func forwardURL(p proxy.Proxy) *url.URL {
	u := p.URL()
	u.Scheme = "http"
	return u
}

func socks5Dialer(p proxy.Proxy, timeout time.Duration) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	var auth *netproxy.Auth
	if p.Auth != nil {
		auth = &netproxy.Auth{User: p.Auth.Username, Password: p.Auth.Password}
	}

	dialer, err := netproxy.SOCKS5("tcp", p.Address(), auth, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	cd, ok := dialer.(netproxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("SOCKS5 dialer for %s cannot dial with a context", p.Address())
	}
	return cd.DialContext, nil
}

// socks4Dialer returns a dial function speaking SOCKS4 to p. The library
// dialer takes no context; the transport abandons it when the request
// context ends and the timeout below bounds the stray connection attempt.
// SOCKS4 has no password authentication and the library always sends an
// empty user id, so credentials on a SOCKS4 proxy are not used.
func socks4Dialer(p proxy.Proxy, timeout time.Duration) func(ctx context.Context, network, addr string) (net.Conn, error) {
	dial := socks.Dial(fmt.Sprintf("socks4://%s?timeout=%s", p.Address(), timeout))
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return dial(network, addr)
	}
}
