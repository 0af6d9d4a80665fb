package marklogic

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mkoziy/harvester/internal/harvest"
)

// Namespace keys document fields without a canonical column.
const Namespace = "marklogic"

// canonical lists the document fields consumed by MapDocument; every other
// top-level scalar or string array becomes domain metadata.
var canonical = map[string]bool{
	"title": true, "date": true, "published": true, "modified": true, "contact": true,
	"url": true, "creators": true, "authors": true, "contributors": true,
	"subjects": true, "publisher": true, "rights": true, "license": true, "access": true,
	"description": true, "description_fr": true, "keywords": true, "keywords_fr": true,
	"series": true, "bbox": true,
}

// MapDocument converts one stored JSON document into a harvest item.
func MapDocument(uri string, doc gjson.Result) harvest.Item {
	item := harvest.Item{
		Record:    harvest.Record{Identifier: uri},
		Datestamp: harvest.ParseDate(doc.Get("modified").String()),
	}
	if doc.Get("deleted").Bool() {
		item.Deleted = true
		return item
	}

	rec := &item.Record
	rec.Title = doc.Get("title").String()
	rec.PubDate = harvest.PubDate(first(doc, "published", "date"))
	rec.Contact = doc.Get("contact").String()
	rec.Series = doc.Get("series").String()
	if u := doc.Get("url").String(); u != "" {
		rec.Source = []string{u}
	}
	rec.Creators = list(doc, "creators", "authors")
	rec.Contributors = list(doc, "contributors")
	rec.Subjects = list(doc, "subjects")
	rec.Publishers = list(doc, "publisher")
	rec.Rights = list(doc, "rights", "license")
	rec.Access = list(doc, "access")
	rec.Descriptions = list(doc, "description")
	rec.DescriptionsFr = list(doc, "description_fr")
	rec.Tags = list(doc, "keywords")
	rec.TagsFr = list(doc, "keywords_fr")

	if bbox := doc.Get("bbox"); bbox.Exists() {
		rec.Geospatial = harvest.BoundingBox(
			bbox.Get("south").Float(), bbox.Get("west").Float(),
			bbox.Get("north").Float(), bbox.Get("east").Float(),
		)
	}

	domain := harvest.DomainMetadata{}
	doc.ForEach(func(key, value gjson.Result) bool {
		field := key.String()
		if canonical[field] || field == "deleted" || strings.Contains(field, "#") {
			return true
		}
		switch {
		case value.IsArray():
			for _, v := range value.Array() {
				if !v.IsObject() && !v.IsArray() {
					domain.Add(Namespace, field, v.String())
				}
			}
		case !value.IsObject():
			domain.Add(Namespace, field, value.String())
		}
		return true
	})
	item.Domain = domain
	return item
}

func first(doc gjson.Result, fields ...string) string {
	for _, f := range fields {
		if v := doc.Get(f).String(); v != "" {
			return v
		}
	}
	return ""
}

// list reads the first present field as a string list. A scalar becomes a
// one-element list; an absent field stays nil.
func list(doc gjson.Result, fields ...string) []string {
	for _, f := range fields {
		v := doc.Get(f)
		if !v.Exists() {
			continue
		}
		out := []string{}
		if v.IsArray() {
			for _, e := range v.Array() {
				out = append(out, e.String())
			}
		} else {
			out = append(out, v.String())
		}
		return harvest.CleanValues(out)
	}
	return nil
}
