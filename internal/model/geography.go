package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// GeoType identifies the kind of geographic entity a record refers to.
type GeoType string

const (
	GeoTypeCity  GeoType = "CITY"
	GeoTypePlace GeoType = "PLACE"
	GeoTypeZCTA  GeoType = "ZCTA"
)

// AllGeoTypes lists every supported geography type in canonical order.
var AllGeoTypes = []GeoType{GeoTypeCity, GeoTypePlace, GeoTypeZCTA}

// ParseGeoType validates and normalizes a geo type string. Matching is
// case-insensitive.
func ParseGeoType(s string) (GeoType, error) {
	switch GeoType(strings.ToUpper(s)) {
	case GeoTypeCity, GeoTypePlace, GeoTypeZCTA:
		return GeoType(strings.ToUpper(s)), nil
	}
	return "", eris.Errorf("model: unknown geo type %q (want CITY, PLACE, or ZCTA)", s)
}

// GeoKey is the identity of a geography across all engine tables.
// Uniqueness is the pair (Type, ID): city IDs, place GEOIDs, and ZCTA
// codes live in separate namespaces.
type GeoKey struct {
	Type GeoType `json:"geo_type"`
	ID   string  `json:"geo_id"`
}

// Less orders keys by (Type, ID). Used as the stable secondary sort key
// wherever ranking has to break ties deterministically.
func (k GeoKey) Less(other GeoKey) bool {
	if k.Type != other.Type {
		return k.Type < other.Type
	}
	return k.ID < other.ID
}

func (k GeoKey) String() string {
	return string(k.Type) + "/" + k.ID
}
