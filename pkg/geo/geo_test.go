package geo

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/maxmind/mmdbwriter"
	"github.com/maxmind/mmdbwriter/mmdbtype"
	"github.com/oschwald/geoip2-golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCityDB builds a tiny city database with one network, 81.2.69.0/24.
func writeCityDB(t *testing.T) string {
	t.Helper()

	tree, err := mmdbwriter.New(mmdbwriter.Options{
		DatabaseType: "GeoIP2-City",
		RecordSize:   24,
	})
	require.NoError(t, err)

	_, network, err := net.ParseCIDR("81.2.69.0/24")
	require.NoError(t, err)

	require.NoError(t, tree.Insert(network, mmdbtype.Map{
		"city": mmdbtype.Map{
			"names": mmdbtype.Map{"en": mmdbtype.String("London")},
		},
		"continent": mmdbtype.Map{
			"code": mmdbtype.String("EU"),
		},
		"country": mmdbtype.Map{
			"iso_code": mmdbtype.String("GB"),
			"names":    mmdbtype.Map{"en": mmdbtype.String("United Kingdom")},
		},
		"location": mmdbtype.Map{
			"accuracy_radius": mmdbtype.Uint16(10),
			"latitude":        mmdbtype.Float64(51.5142),
			"longitude":       mmdbtype.Float64(-0.0931),
			"time_zone":       mmdbtype.String("Europe/London"),
		},
	}))

	path := filepath.Join(t.TempDir(), "city.mmdb")
	f, err := os.Create(path)
	require.NoError(t, err)
	_, err = tree.WriteTo(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return path
}

func TestOpenAndLookup(t *testing.T) {
	locator, err := Open(writeCityDB(t))
	require.NoError(t, err)
	defer locator.Close()

	loc, err := locator.Lookup("81.2.69.160")
	require.NoError(t, err)
	assert.Equal(t, "GB", loc.CountryCode)
	assert.Equal(t, "United Kingdom", loc.CountryName)
	assert.Equal(t, "London", loc.CityName)
	assert.Equal(t, "EU", loc.ContinentCode)
	assert.Equal(t, "Europe/London", loc.Timezone)
	require.NotNil(t, loc.Latitude)
	require.NotNil(t, loc.Longitude)
	assert.InDelta(t, 51.5142, *loc.Latitude, 1e-9)
	assert.InDelta(t, -0.0931, *loc.Longitude, 1e-9)
	assert.Equal(t, "London, GB", loc.ShortDisplay())
}

func TestLookupUnknownAddressIsEmpty(t *testing.T) {
	locator, err := Open(writeCityDB(t))
	require.NoError(t, err)
	defer locator.Close()

	loc, err := locator.Lookup("8.8.8.8")
	require.NoError(t, err)
	assert.True(t, loc.IsEmpty())
	assert.Nil(t, loc.Latitude)
	assert.Equal(t, Location{}, loc)
}

func TestLookupRejectsHostnames(t *testing.T) {
	locator := &Locator{reader: &fakeReader{}}

	_, err := locator.Lookup("proxy.example.com")
	assert.ErrorIs(t, err, ErrInvalidIP)

	_, err = locator.Lookup("")
	assert.ErrorIs(t, err, ErrInvalidIP)
}

func TestLookupConcurrent(t *testing.T) {
	locator, err := Open(writeCityDB(t))
	require.NoError(t, err)
	defer locator.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loc, err := locator.Lookup("81.2.69.1")
			assert.NoError(t, err)
			assert.Equal(t, "GB", loc.CountryCode)
		}()
	}
	wg.Wait()
}

func TestOpenMissingOrCorrupt(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.mmdb"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.mmdb")
	require.NoError(t, os.WriteFile(bad, []byte("definitely not a maxmind database"), 0644))
	_, err = Open(bad)
	require.Error(t, err)
}

type fakeReader struct {
	city *geoip2.City
	err  error
}

func (f *fakeReader) City(net.IP) (*geoip2.City, error) { return f.city, f.err }
func (f *fakeReader) Close() error                      { return nil }

func TestLookupPartialRecord(t *testing.T) {
	city := &geoip2.City{}
	city.Country.IsoCode = "DE"

	locator := &Locator{reader: &fakeReader{city: city}}
	loc, err := locator.Lookup("2001:db8::1")
	require.NoError(t, err)
	assert.Equal(t, "DE", loc.CountryCode)
	assert.Empty(t, loc.CityName)
	assert.Nil(t, loc.Latitude)
	assert.Equal(t, "DE", loc.ShortDisplay())
	assert.Equal(t, "Unknown Location", Location{}.String())
}

func TestLookupTimeZoneOnlyRecordHasCoordinates(t *testing.T) {
	city := &geoip2.City{}
	city.Location.TimeZone = "Africa/Abidjan"

	locator := &Locator{reader: &fakeReader{city: city}}
	loc, err := locator.Lookup("10.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, "Africa/Abidjan", loc.Timezone)
	require.NotNil(t, loc.Latitude)
	require.NotNil(t, loc.Longitude)
	assert.Zero(t, *loc.Latitude)
	assert.Zero(t, *loc.Longitude)
}

func TestLookupReaderError(t *testing.T) {
	boom := errors.New("decode failed")
	locator := &Locator{reader: &fakeReader{err: boom}}

	_, err := locator.Lookup("1.2.3.4")
	assert.ErrorIs(t, err, boom)
}

func TestLocationDisplay(t *testing.T) {
	lat, lon := 40.7128, -74.0060
	loc := Location{
		CountryCode:   "US",
		CountryName:   "United States",
		CityName:      "New York",
		ContinentCode: "NA",
		Latitude:      &lat,
		Longitude:     &lon,
		Timezone:      "America/New_York",
	}
	assert.Equal(t, "New York, United States, NA", loc.String())
	assert.Equal(t, "New York, US", loc.ShortDisplay())
	assert.Equal(t, "London", Location{CityName: "London"}.ShortDisplay())
	assert.Equal(t, "Unknown", Location{}.ShortDisplay())
}
