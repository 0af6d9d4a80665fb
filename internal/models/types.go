package models

import (
	"math"
	"time"
)

// RepositoryType is the closed set of supported source protocols.
type RepositoryType string

const (
	TypeOAI       RepositoryType = "oai"
	TypeCKAN      RepositoryType = "ckan"
	TypeMarkLogic RepositoryType = "marklogic"
	TypeCSW       RepositoryType = "csw"
)

// RepositoryTypes lists every supported type.
var RepositoryTypes = []RepositoryType{TypeOAI, TypeCKAN, TypeMarkLogic, TypeCSW}

func (t RepositoryType) Valid() bool {
	for _, known := range RepositoryTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Language scopes descriptions and tags.
type Language string

const (
	LangEnglish Language = "en"
	LangFrench  Language = "fr"
)

// Epoch converts t to fractional unix seconds, the storage format of
// modified_timestamp.
func Epoch(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromEpoch is the inverse of Epoch.
func FromEpoch(ts float64) time.Time {
	if ts <= 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}
