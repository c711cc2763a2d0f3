// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package identity

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
)

// GeoResolver resolves a client IP to an ISO-3166 alpha-2 country code.
// An empty string means unknown; events then carry no country and fall out
// of the geography breakdown.
type GeoResolver interface {
	Country(ip net.IP) string
}

// NoopGeoResolver resolves everything to unknown. Used when no lookup table
// is configured.
type NoopGeoResolver struct{}

// Country always returns "".
func (NoopGeoResolver) Country(net.IP) string { return "" }

// TableGeoResolver resolves countries from a static CIDR table, the
// lookup-table form the request IP mapping arrives in from the edge.
type TableGeoResolver struct {
	entries []geoEntry
}

type geoEntry struct {
	network *net.IPNet
	country string
}

// NewTableGeoResolver parses a table of "CIDR,COUNTRY" lines. Blank lines
// and lines starting with '#' are skipped.
func NewTableGeoResolver(r io.Reader) (*TableGeoResolver, error) {
	resolver := &TableGeoResolver{}
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("geo table line %d: expected CIDR,COUNTRY", lineNo)
		}

		_, network, err := net.ParseCIDR(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("geo table line %d: %w", lineNo, err)
		}

		country := strings.ToUpper(strings.TrimSpace(parts[1]))
		if len(country) != 2 {
			return nil, fmt.Errorf("geo table line %d: country must be alpha-2, got %q", lineNo, country)
		}

		resolver.entries = append(resolver.entries, geoEntry{network: network, country: country})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading geo table: %w", err)
	}

	return resolver, nil
}

// LoadGeoTable opens and parses a geo table file. An empty path yields the
// noop resolver.
func LoadGeoTable(path string) (GeoResolver, error) {
	if path == "" {
		return NoopGeoResolver{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening geo table %s: %w", path, err)
	}
	defer f.Close()

	return NewTableGeoResolver(f)
}

// Country returns the country of the first matching CIDR, or "".
func (t *TableGeoResolver) Country(ip net.IP) string {
	if ip == nil {
		return ""
	}
	for _, e := range t.entries {
		if e.network.Contains(ip) {
			return e.country
		}
	}
	return ""
}
