// Package harvest holds the canonical, protocol-independent shape of a
// harvested record as produced by every repository source and consumed by
// the store.
package harvest

import (
	"errors"
	"strings"
	"time"
)

// ErrRemoved reports that the source confirmed the record no longer exists.
var ErrRemoved = errors.New("record removed at source")

// Record is the normalized form of one source record.
//
// Collection fields follow replace semantics in the store: a nil slice
// leaves the stored collection untouched, a non-nil slice (even empty)
// replaces it.
type Record struct {
	Identifier string
	Title      string
	PubDate    string
	Contact    string
	Series     string
	Source     []string

	Creators       []string
	Contributors   []string
	Subjects       []string
	Publishers     []string
	Rights         []string
	Access         []string
	Descriptions   []string
	DescriptionsFr []string
	Tags           []string
	TagsFr         []string

	Geospatial *Geometry
}

// SourceURL returns the first source entry, which becomes records.source_url.
func (r Record) SourceURL() string {
	if len(r.Source) == 0 {
		return ""
	}
	return r.Source[0]
}

// Geometry is a polygon ring; each point is stored as one geospatial row.
type Geometry struct {
	Type   string
	Points []Point
}

// Point is a single polygon vertex.
type Point struct {
	Lat float64
	Lon float64
}

// BoundingBox builds a closed polygon ring from a bounding box.
func BoundingBox(south, west, north, east float64) *Geometry {
	return &Geometry{
		Type: "Polygon",
		Points: []Point{
			{Lat: south, Lon: west},
			{Lat: north, Lon: west},
			{Lat: north, Lon: east},
			{Lat: south, Lon: east},
			{Lat: south, Lon: west},
		},
	}
}

// Item is what a protocol hands to the harvester for one identifier.
type Item struct {
	Record Record
	Domain DomainMetadata

	// HeaderOnly pre-registers the identifier; metadata is resolved later
	// by staleness reconciliation.
	HeaderOnly bool
	// Deleted is set when the source announces the record as deleted.
	Deleted bool
	// Datestamp is the source-side modification time, when known.
	Datestamp time.Time
	// Err carries a per-record fetch or normalization failure.
	Err error
}

// EmitFunc receives items as a protocol pages through its source. A non-nil
// return stops the listing and is returned by the protocol unchanged.
type EmitFunc func(Item) error

// DomainMetadata maps "namespace#field" keys to one or more values.
type DomainMetadata map[string][]string

// Add appends values under namespace#field, skipping blanks.
func (d DomainMetadata) Add(namespace, field string, values ...string) {
	key := namespace + "#" + field
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		d[key] = append(d[key], v)
	}
}

// SplitKey splits a compound domain metadata key at the first '#'.
func SplitKey(key string) (namespace, field string, ok bool) {
	namespace, field, ok = strings.Cut(key, "#")
	if !ok || namespace == "" || field == "" {
		return "", "", false
	}
	return namespace, field, true
}

// CleanValues trims values and drops blanks and duplicates, preserving order.
// A nil input stays nil so the "omitted" meaning survives normalization.
func CleanValues(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// First returns the first non-blank value.
func First(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
