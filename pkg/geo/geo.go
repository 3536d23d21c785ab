package geo

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// ErrInvalidIP is returned when the host is not a literal IP address.
// Hostnames are never resolved.
var ErrInvalidIP = errors.New("host is not a literal IP address")

// Location is what the city database knows about an address. Every field is
// optional; a zero Location means "unknown", not failure.
type Location struct {
	CountryCode   string   `json:"country_code,omitempty" yaml:"country_code,omitempty"`
	CountryName   string   `json:"country_name,omitempty" yaml:"country_name,omitempty"`
	CityName      string   `json:"city_name,omitempty" yaml:"city_name,omitempty"`
	ContinentCode string   `json:"continent_code,omitempty" yaml:"continent_code,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty" yaml:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty" yaml:"longitude,omitempty"`
	Timezone      string   `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

func (l Location) IsEmpty() bool {
	return l.CountryCode == "" && l.CountryName == "" && l.CityName == "" && l.ContinentCode == ""
}

// ShortDisplay renders "City, CC", "CC", "City" or "Unknown".
func (l Location) ShortDisplay() string {
	switch {
	case l.CountryCode != "" && l.CityName != "":
		return l.CityName + ", " + l.CountryCode
	case l.CountryCode != "":
		return l.CountryCode
	case l.CityName != "":
		return l.CityName
	default:
		return "Unknown"
	}
}

func (l Location) String() string {
	var parts []string
	for _, s := range []string{l.CityName, l.CountryName, l.ContinentCode} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "Unknown Location"
	}
	return strings.Join(parts, ", ")
}

type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

// Locator answers city lookups from an offline MMDB file. The reader is
// opened once and shared read-only, so a Locator is safe for concurrent use.
type Locator struct {
	reader cityReader
}

// Open memory-maps the database at path. A missing or corrupt file is an error.
func Open(path string) (*Locator, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geo database %s: %w", path, err)
	}
	return &Locator{reader: reader}, nil
}

func (l *Locator) Close() error {
	return l.reader.Close()
}

// Lookup returns the location of a literal IPv4/IPv6 host. An address with
// no database entry yields an empty Location and a nil error.
func (l *Locator) Lookup(host string) (Location, error) {
	ip := net.ParseIP(strings.Trim(host, "[]"))
	if ip == nil {
		return Location{}, fmt.Errorf("%w: %q", ErrInvalidIP, host)
	}

	record, err := l.reader.City(ip)
	if err != nil {
		return Location{}, fmt.Errorf("geo lookup %s: %w", host, err)
	}
	return fromCity(record), nil
}

func fromCity(c *geoip2.City) Location {
	if c == nil {
		return Location{}
	}

	loc := Location{
		CountryCode:   c.Country.IsoCode,
		CountryName:   c.Country.Names["en"],
		CityName:      c.City.Names["en"],
		ContinentCode: c.Continent.Code,
		Timezone:      c.Location.TimeZone,
	}

	// geoip2 decodes a missing location as zero values; only report
	// coordinates when the record carried a location block.
	l := c.Location
	if l.Latitude != 0 || l.Longitude != 0 || l.AccuracyRadius != 0 || l.TimeZone != "" {
		lat, lon := c.Location.Latitude, c.Location.Longitude
		loc.Latitude = &lat
		loc.Longitude = &lon
	}
	return loc
}
