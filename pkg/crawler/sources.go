package crawler

import (
	"fmt"

	"openproxy/pkg/proxy"
)

// Source is a named listing page and the type its entries default to.
type Source struct {
	Name string     `json:"name" yaml:"name"`
	URL  string     `json:"url" yaml:"url"`
	Type proxy.Type `json:"type" yaml:"type"`
}

func NewSource(name, url string, typ proxy.Type) Source {
	return Source{Name: name, URL: url, Type: typ}
}

// Target is an ad-hoc URL to crawl with an explicit default type.
type Target struct {
	URL  string
	Type proxy.Type
}

// CommonSources returns the built-in catalog of free proxy listings. The
// HTML listing sites come first, followed by raw text lists.
func CommonSources() []Source {
	return []Source{
		NewSource("free-proxy-list.net", "https://free-proxy-list.net/", proxy.TypeHTTP),
		NewSource("sslproxies", "https://www.sslproxies.org/", proxy.TypeHTTPS),
		NewSource("us-proxy.org", "https://www.us-proxy.org/", proxy.TypeHTTP),
		NewSource("socks-proxy.net", "https://www.socks-proxy.net/", proxy.TypeSOCKS4),
		NewSource("thespeedx-http", "https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/http.txt", proxy.TypeHTTP),
		NewSource("clarketm", "https://raw.githubusercontent.com/clarketm/proxy-list/master/proxy-list-raw.txt", proxy.TypeHTTP),
		NewSource("proxifly", "https://raw.githubusercontent.com/proxifly/free-proxy-list/refs/heads/main/proxies/all/data.txt", proxy.TypeHTTP),
		NewSource("proxyscrape", "https://api.proxyscrape.com/v4/free-proxy-list/get?request=get_proxies&proxy_format=protocolipport&format=text", proxy.TypeHTTP),
		NewSource("proxy-list.download-socks5", "https://www.proxy-list.download/api/v1/get?type=socks5", proxy.TypeSOCKS5),
	}
}

// SelectSources picks catalog entries by name, in the order given. An empty
// list selects the whole catalog.
func SelectSources(names []string) ([]Source, error) {
	catalog := CommonSources()
	if len(names) == 0 {
		return catalog, nil
	}

	byName := make(map[string]Source, len(catalog))
	for _, s := range catalog {
		byName[s.Name] = s
	}

	selected := make([]Source, 0, len(names))
	for _, name := range names {
		s, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown source %q", name)
		}
		selected = append(selected, s)
	}
	return selected, nil
}
