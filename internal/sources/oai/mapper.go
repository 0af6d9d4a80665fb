package oai

import (
	"errors"
	"strings"

	"github.com/mkoziy/harvester/internal/harvest"
)

// Namespace keys Dublin Core elements without a canonical column.
const Namespace = "dc"

// MapRecord converts one OAI record into a harvest item. A deleted header
// becomes a Deleted item; a record without metadata is an error item.
func MapRecord(r RecordXML) harvest.Item {
	item := harvest.Item{
		Record:    harvest.Record{Identifier: strings.TrimSpace(r.Header.Identifier)},
		Datestamp: harvest.ParseDate(r.Header.Datestamp),
	}
	if r.Header.Status == "deleted" {
		item.Deleted = true
		return item
	}
	dc := r.Metadata.DC
	if dc == nil {
		item.Err = errors.New("record has no Dublin Core metadata")
		return item
	}

	rec := &item.Record
	rec.Title = harvest.First(dc.Title)
	rec.PubDate = harvest.PubDate(harvest.First(dc.Date))
	rec.Source = sourceURLs(dc)
	rec.Creators = harvest.CleanValues(dc.Creator)
	rec.Contributors = harvest.CleanValues(dc.Contributor)
	rec.Subjects = harvest.CleanValues(dc.Subject)
	rec.Publishers = harvest.CleanValues(dc.Publisher)
	rec.Rights = harvest.CleanValues(dc.Rights)
	rec.Descriptions = harvest.CleanValues(dc.Description)
	rec.Series = seriesOf(dc.Relation)

	domain := harvest.DomainMetadata{}
	domain.Add(Namespace, "type", dc.Type...)
	domain.Add(Namespace, "format", dc.Format...)
	domain.Add(Namespace, "language", dc.Language...)
	domain.Add(Namespace, "relation", dc.Relation...)
	domain.Add(Namespace, "coverage", dc.Coverage...)
	if len(dc.Title) > 1 {
		domain.Add(Namespace, "alternative", dc.Title[1:]...)
	}
	item.Domain = domain
	return item
}

// sourceURLs prefers dc:source and falls back to resolvable identifiers.
func sourceURLs(dc *DublinCore) []string {
	if src := harvest.CleanValues(dc.Source); len(src) > 0 {
		return src
	}
	var urls []string
	for _, id := range harvest.CleanValues(dc.Identifier) {
		switch {
		case strings.HasPrefix(id, "http://"), strings.HasPrefix(id, "https://"):
			urls = append(urls, id)
		case strings.HasPrefix(id, "doi:"):
			urls = append(urls, "https://doi.org/"+strings.TrimPrefix(id, "doi:"))
		}
	}
	return urls
}

// seriesOf picks an "ispartof" style relation, which Dataverse and DSpace
// use for the parent collection.
func seriesOf(relations []string) string {
	for _, r := range relations {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(r), "isPartOf:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
