package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openproxy/pkg/proxy"
)

func keys(proxies []proxy.Proxy) []string {
	out := make([]string, len(proxies))
	for i, p := range proxies {
		out[i] = p.Key()
	}
	return out
}

func TestExtractLines(t *testing.T) {
	body := "# free list\n192.168.1.1:8080\r\nsocks5://10.0.0.1:1080\n\ngarbage\n"

	got := Extract(body, proxy.TypeHTTP)
	require.Len(t, got, 2)
	assert.Equal(t, "10.0.0.1:1080", got[0].Key())
	assert.Equal(t, proxy.TypeSOCKS5, got[0].Type)
	assert.Equal(t, proxy.TypeHTTP, got[1].Type)
}

func TestExtractRegexFallback(t *testing.T) {
	body := "Some text with proxy 10.0.0.1:3128 embedded in it"

	got := Extract(body, proxy.TypeHTTP)
	require.Len(t, got, 1)
	assert.Equal(t, "10.0.0.1", got[0].Host)
	assert.Equal(t, 3128, got[0].Port)
	assert.Equal(t, proxy.TypeHTTP, got[0].Type)
}

func TestExtractRegexRejectsInvalid(t *testing.T) {
	assert.Empty(t, Extract("bad address 999.1.1.1:8080 here", proxy.TypeHTTP))
	assert.Empty(t, Extract("zero port 10.0.0.1:0 here", proxy.TypeHTTP))
	assert.Empty(t, Extract("too big 10.0.0.1:70000 here", proxy.TypeHTTP))

	got := Extract("mixed 999.1.1.1:80, 1.2.3.4:0 and 5.6.7.8:8080.", proxy.TypeSOCKS4)
	require.Len(t, got, 1)
	assert.Equal(t, "5.6.7.8:8080", got[0].Key())
	assert.Equal(t, proxy.TypeSOCKS4, got[0].Type)
}

func TestExtractRegexOnlyWhenLinesFindNothing(t *testing.T) {
	body := "1.1.1.1:80\nsee also 2.2.2.2:81 inline"

	got := Extract(body, proxy.TypeHTTP)
	assert.Equal(t, []string{"1.1.1.1:80"}, keys(got))
}

func TestExtractDeduplicates(t *testing.T) {
	body := "192.168.1.1:8080\n192.168.1.1:8080\n10.0.0.1:3128\n192.168.1.1:8080\n"

	got := Extract(body, proxy.TypeHTTP)
	assert.Equal(t, []string{"10.0.0.1:3128", "192.168.1.1:8080"}, keys(got))

	inline := "a 1.1.1.1:80 b 1.1.1.1:80 c 1.1.1.2:80"
	assert.Equal(t, []string{"1.1.1.1:80", "1.1.1.2:80"}, keys(Extract(inline, proxy.TypeHTTP)))
}

func TestExtractHTMLTable(t *testing.T) {
	body := `<html><body>
<table class="table table-striped">
<thead><tr><th>IP Address</th><th>Port</th><th>Code</th></tr></thead>
<tbody>
<tr><td>45.77.1.2</td><td>8080</td><td>US</td></tr>
<tr><td> 103.1.2.3 </td><td>3128</td><td>ID</td></tr>
<tr><td>300.1.2.3</td><td>80</td><td>XX</td></tr>
<tr><td>8.8.8.8</td><td>0</td><td>XX</td></tr>
<tr><td>only one cell</td></tr>
</tbody></table></body></html>`

	got := Extract(body, proxy.TypeSOCKS4)
	require.Equal(t, []string{"103.1.2.3:3128", "45.77.1.2:8080"}, keys(got))
	for _, p := range got {
		assert.Equal(t, proxy.TypeSOCKS4, p.Type)
	}
}

func TestExtractEmpty(t *testing.T) {
	assert.Empty(t, Extract("", proxy.TypeHTTP))
	assert.Empty(t, Extract("<html><p>nothing to see</p></html>", proxy.TypeHTTP))
}

func TestValidIPv4(t *testing.T) {
	assert.True(t, validIPv4("0.0.0.0"))
	assert.True(t, validIPv4("255.255.255.255"))
	assert.True(t, validIPv4("010.001.002.003"))
	assert.False(t, validIPv4("256.1.1.1"))
	assert.False(t, validIPv4("1.1.1"))
	assert.False(t, validIPv4("1..1.1"))
	assert.False(t, validIPv4("a.b.c.d"))
}
