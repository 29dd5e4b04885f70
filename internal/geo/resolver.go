// Package geo resolves client IPs to ISO country codes using a local
// MaxMind database. The resolver is optional everywhere it is consumed; a
// nil resolver simply never resolves.
package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Resolver wraps a GeoIP2 country database.
type Resolver struct {
	db *geoip2.Reader
}

// Open loads the database at path.
func Open(path string) (*Resolver, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &Resolver{db: db}, nil
}

// Country returns the ISO country code for the given IP, or "" when the
// resolver is nil, the IP is unparsable, or the database has no match.
func (r *Resolver) Country(ip string) string {
	if r == nil || r.db == nil {
		return ""
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	record, err := r.db.Country(parsed)
	if err != nil {
		return ""
	}
	return record.Country.IsoCode
}

// Close releases the underlying database.
func (r *Resolver) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
