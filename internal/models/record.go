package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Record is a harvested item. Records are soft-deleted and never removed,
// so a deleted row doubles as an export tombstone.
type Record struct {
	bun.BaseModel `bun:"table:records,alias:r"`

	ID                int64   `bun:"record_id,pk,autoincrement" json:"record_id"`
	RepositoryID      int64   `bun:"repository_id,notnull" json:"repository_id"`
	LocalIdentifier   string  `bun:"local_identifier,notnull" json:"local_identifier"`
	Title             string  `bun:"title" json:"title"`
	PubDate           string  `bun:"pub_date" json:"pub_date"`
	Contact           string  `bun:"contact" json:"contact"`
	Series            string  `bun:"series" json:"series"`
	SourceURL         string  `bun:"source_url" json:"source_url"`
	ModifiedTimestamp float64 `bun:"modified_timestamp" json:"modified_timestamp"`
	Deleted           bool    `bun:"deleted" json:"deleted"`

	Repository *Repository `bun:"rel:belongs-to,join:repository_id=repository_id" json:"repository,omitempty"`
}

// Modified returns modified_timestamp as a time.
func (r *Record) Modified() time.Time {
	return FromEpoch(r.ModifiedTimestamp)
}

// IsHeader reports whether the row is a placeholder awaiting metadata.
func (r *Record) IsHeader() bool {
	return r.ModifiedTimestamp == 0 && r.Title == ""
}

// Creator rows hold both creators and contributors, split by IsContributor.
type Creator struct {
	bun.BaseModel `bun:"table:creators,alias:cr"`

	ID            int64  `bun:"creator_id,pk,autoincrement"`
	RecordID      int64  `bun:"record_id,notnull"`
	Creator       string `bun:"creator,notnull"`
	IsContributor bool   `bun:"is_contributor"`
}

type Subject struct {
	bun.BaseModel `bun:"table:subjects,alias:su"`

	ID       int64  `bun:"subject_id,pk,autoincrement"`
	RecordID int64  `bun:"record_id,notnull"`
	Subject  string `bun:"subject,notnull"`
}

type Publisher struct {
	bun.BaseModel `bun:"table:publishers,alias:pu"`

	ID        int64  `bun:"publisher_id,pk,autoincrement"`
	RecordID  int64  `bun:"record_id,notnull"`
	Publisher string `bun:"publisher,notnull"`
}

type Rights struct {
	bun.BaseModel `bun:"table:rights,alias:ri"`

	ID       int64  `bun:"rights_id,pk,autoincrement"`
	RecordID int64  `bun:"record_id,notnull"`
	Rights   string `bun:"rights,notnull"`
}

type Access struct {
	bun.BaseModel `bun:"table:access,alias:ac"`

	ID       int64  `bun:"access_id,pk,autoincrement"`
	RecordID int64  `bun:"record_id,notnull"`
	Access   string `bun:"access,notnull"`
}

// Description is language scoped; replacing "en" never touches "fr".
type Description struct {
	bun.BaseModel `bun:"table:descriptions,alias:de"`

	ID          int64    `bun:"description_id,pk,autoincrement"`
	RecordID    int64    `bun:"record_id,notnull"`
	Description string   `bun:"description,notnull"`
	Language    Language `bun:"language,notnull"`
}

type Tag struct {
	bun.BaseModel `bun:"table:tags,alias:ta"`

	ID       int64    `bun:"tag_id,pk,autoincrement"`
	RecordID int64    `bun:"record_id,notnull"`
	Tag      string   `bun:"tag,notnull"`
	Language Language `bun:"language,notnull"`
}

// Geospatial is one polygon vertex.
type Geospatial struct {
	bun.BaseModel `bun:"table:geospatial,alias:ge"`

	ID             int64   `bun:"geospatial_id,pk,autoincrement"`
	RecordID       int64   `bun:"record_id,notnull"`
	CoordinateType string  `bun:"coordinate_type"`
	Lat            float64 `bun:"lat"`
	Lon            float64 `bun:"lon"`
}

type DomainMetadata struct {
	bun.BaseModel `bun:"table:domain_metadata,alias:dm"`

	ID         int64  `bun:"metadata_id,pk,autoincrement"`
	RecordID   int64  `bun:"record_id,notnull"`
	SchemaID   int64  `bun:"schema_id,notnull"`
	FieldName  string `bun:"field_name,notnull"`
	FieldValue string `bun:"field_value"`
}

// DomainSchema is the append-only namespace dictionary.
type DomainSchema struct {
	bun.BaseModel `bun:"table:domain_schemas,alias:ds"`

	ID        int64  `bun:"schema_id,pk,autoincrement"`
	Namespace string `bun:"namespace,unique,notnull"`
}

// RecordChildren bundles every child collection of one record.
type RecordChildren struct {
	Creators       []Creator
	Subjects       []Subject
	Publishers     []Publisher
	Rights         []Rights
	Access         []Access
	Descriptions   []Description
	Tags           []Tag
	Geospatial     []Geospatial
	DomainMetadata []DomainMetadataValue
}

// DomainMetadataValue is a domain_metadata row joined with its namespace.
type DomainMetadataValue struct {
	Namespace  string `bun:"namespace"`
	FieldName  string `bun:"field_name"`
	FieldValue string `bun:"field_value"`
}

// Len counts every child row.
func (c *RecordChildren) Len() int {
	return len(c.Creators) + len(c.Subjects) + len(c.Publishers) + len(c.Rights) +
		len(c.Access) + len(c.Descriptions) + len(c.Tags) + len(c.Geospatial) + len(c.DomainMetadata)
}
