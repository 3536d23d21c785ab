package crawler

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"openproxy/pkg/proxy"
)

var ipPortPattern = sync.OnceValue(func() *regexp.Regexp {
	return regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}):(\d{1,5})\b`)
})

// Extract pulls proxies out of a fetched page. Each line is tried with the
// proxy line parser first. When that finds nothing the whole body is
// scanned for ip:port pairs, and failing that, HTML table rows whose first
// two cells hold an IPv4 address and a port. The result is deduplicated
// by host:port.
func Extract(body string, typ proxy.Type) []proxy.Proxy {
	var found []proxy.Proxy
	for _, line := range strings.Split(body, "\n") {
		if p, ok := proxy.ParseLine(line, typ); ok {
			found = append(found, p)
		}
	}

	if len(found) == 0 {
		found = extractWithRegex(body, typ)
	}
	if len(found) == 0 && looksLikeHTML(body) {
		found = extractFromTables(body, typ)
	}
	return proxy.Dedup(found)
}

func extractWithRegex(body string, typ proxy.Type) []proxy.Proxy {
	var found []proxy.Proxy
	for _, m := range ipPortPattern().FindAllStringSubmatch(body, -1) {
		if p, ok := endpoint(m[1], m[2], typ); ok {
			found = append(found, p)
		}
	}
	return found
}

func looksLikeHTML(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "<tr") && strings.Contains(lower, "<td")
}

func extractFromTables(body string, typ proxy.Type) []proxy.Proxy {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}

	var found []proxy.Proxy
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		host := strings.TrimSpace(cells.Eq(0).Text())
		port := strings.TrimSpace(cells.Eq(1).Text())
		if p, ok := endpoint(host, port, typ); ok {
			found = append(found, p)
		}
	})
	return found
}

// endpoint validates a dotted-quad host and a port string. Octets may carry
// leading zeros but must not exceed 255; the port must be 1-65535.
func endpoint(host, port string, typ proxy.Type) (proxy.Proxy, bool) {
	if !validIPv4(host) {
		return proxy.Proxy{}, false
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return proxy.Proxy{}, false
	}
	return proxy.New(host, n, typ), true
}

func validIPv4(host string) bool {
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return false
	}
	for _, part := range parts {
		if part == "" || len(part) > 3 {
			return false
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return true
}
