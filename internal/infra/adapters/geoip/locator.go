// Package geoip geolocates addresses with a MaxMind GeoLite2 City database.
package geoip

import (
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/ahrav/aura-radar/internal/application/triage"
	"github.com/ahrav/aura-radar/internal/domain/threat"
)

var _ triage.Locator = (*Locator)(nil)

type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

// Locator answers Locate from an open database. A Locator without a database
// reports every address as not found.
type Locator struct {
	db cityReader
}

// Open loads the database at path. When the file cannot be opened the returned
// Locator is still usable and the error wraps ErrConfigurationGap.
func Open(path string) (*Locator, error) {
	if path == "" {
		return &Locator{}, fmt.Errorf("geoip database: %w: no path configured", threat.ErrConfigurationGap)
	}

	db, err := geoip2.Open(path)
	if err != nil {
		return &Locator{}, fmt.Errorf("geoip database %s: %w", path, errors.Join(threat.ErrConfigurationGap, err))
	}
	return &Locator{db: db}, nil
}

// Enabled reports whether a database is loaded.
func (l *Locator) Enabled() bool { return l.db != nil }

// Locate returns the country name and coordinates of address. Internal and
// unparsable addresses are never looked up.
func (l *Locator) Locate(address string) (threat.Location, bool) {
	if l.db == nil || threat.IsInternal(address) {
		return threat.Location{}, false
	}
	addr, err := threat.ParseAddr(address)
	if err != nil {
		return threat.Location{}, false
	}

	rec, err := l.db.City(net.IP(addr.AsSlice()))
	if err != nil || rec == nil {
		return threat.Location{}, false
	}

	country := rec.Country.Names["en"]
	if country == "" {
		country = threat.UnknownLocation.Country
	}
	return threat.Location{
		Country:   country,
		Latitude:  rec.Location.Latitude,
		Longitude: rec.Location.Longitude,
	}, true
}

// Close releases the database.
func (l *Locator) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}
