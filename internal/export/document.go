package export

import (
	"strings"

	"github.com/mkoziy/harvester/internal/models"
)

// Document is the format-neutral view of one stored record.
type Document struct {
	Subject    string
	Identifier string
	Deleted    bool
	Modified   float64

	RepositoryName string
	RepositoryURL  string
	Thumbnail      string

	Title          string
	PubDate        string
	Contact        string
	Series         string
	SourceURL      string
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
	Geospatial     []models.Geospatial
	Domain         map[string][]string
}

// buildDocument flattens a record and its children. children may be nil
// for deleted records.
func buildDocument(rec *models.Record, children *models.RecordChildren) *Document {
	d := &Document{
		Identifier: rec.LocalIdentifier,
		Deleted:    rec.Deleted,
		Modified:   rec.ModifiedTimestamp,
		Title:      rec.Title,
		PubDate:    rec.PubDate,
		Contact:    rec.Contact,
		Series:     rec.Series,
		SourceURL:  rec.SourceURL,
	}
	if repo := rec.Repository; repo != nil {
		d.RepositoryName = repo.Name
		d.RepositoryURL = repo.URL
		d.Thumbnail = repo.Thumbnail
	}
	d.Subject = subject(d)
	if children == nil {
		return d
	}

	for _, c := range children.Creators {
		if c.IsContributor {
			d.Contributors = append(d.Contributors, c.Creator)
		} else {
			d.Creators = append(d.Creators, c.Creator)
		}
	}
	for _, s := range children.Subjects {
		d.Subjects = append(d.Subjects, s.Subject)
	}
	for _, p := range children.Publishers {
		d.Publishers = append(d.Publishers, p.Publisher)
	}
	for _, r := range children.Rights {
		d.Rights = append(d.Rights, r.Rights)
	}
	for _, a := range children.Access {
		d.Access = append(d.Access, a.Access)
	}
	for _, desc := range children.Descriptions {
		if desc.Language == models.LangFrench {
			d.DescriptionsFr = append(d.DescriptionsFr, desc.Description)
		} else {
			d.Descriptions = append(d.Descriptions, desc.Description)
		}
	}
	for _, t := range children.Tags {
		if t.Language == models.LangFrench {
			d.TagsFr = append(d.TagsFr, t.Tag)
		} else {
			d.Tags = append(d.Tags, t.Tag)
		}
	}
	d.Geospatial = children.Geospatial
	if len(children.DomainMetadata) > 0 {
		d.Domain = make(map[string][]string)
		for _, m := range children.DomainMetadata {
			key := m.Namespace + "#" + m.FieldName
			d.Domain[key] = append(d.Domain[key], m.FieldValue)
		}
	}
	return d
}

// subject is the stable downstream key: the landing page when known,
// otherwise the repository URL joined with the local identifier.
func subject(d *Document) string {
	if d.SourceURL != "" {
		return d.SourceURL
	}
	return strings.TrimSuffix(d.RepositoryURL, "/") + "#" + d.Identifier
}
