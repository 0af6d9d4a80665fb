package ckan

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mkoziy/harvester/internal/harvest"
)

// Namespace keys CKAN extras in domain metadata.
const Namespace = "ckan"

// MapPackage converts a package_show or package_search dataset object.
// siteURL is used to build the dataset landing page.
func MapPackage(pkg gjson.Result, siteURL string) harvest.Item {
	name := pkg.Get("name").String()
	if name == "" {
		name = pkg.Get("id").String()
	}
	item := harvest.Item{
		Record:    harvest.Record{Identifier: name},
		Datestamp: harvest.ParseDate(pkg.Get("metadata_modified").String()),
	}
	if name == "" {
		item.Err = errors.New("dataset has neither name nor id")
		return item
	}
	if pkg.Get("state").String() == "deleted" {
		item.Deleted = true
		return item
	}

	rec := &item.Record
	rec.Title = translated(pkg, "title", "en")
	rec.PubDate = harvest.PubDate(pkg.Get("metadata_created").String())
	rec.Contact = harvest.First([]string{pkg.Get("author_email").String(), pkg.Get("maintainer_email").String()})
	rec.Source = []string{strings.TrimRight(siteURL, "/") + "/dataset/" + name}

	creators := strings.Split(pkg.Get("author").String(), ";")
	if harvest.First(creators) == "" {
		creators = []string{pkg.Get("maintainer").String()}
	}
	rec.Creators = harvest.CleanValues(creators)

	rec.Publishers = harvest.CleanValues([]string{pkg.Get("organization.title").String()})
	rec.Rights = harvest.CleanValues([]string{pkg.Get("license_title").String()})
	if pkg.Get("private").Bool() {
		rec.Access = []string{"Restricted"}
	} else {
		rec.Access = []string{"Public"}
	}
	rec.Subjects = harvest.CleanValues(append([]string{}, stringArray(pkg.Get("groups.#.display_name"))...))

	rec.Descriptions = harvest.CleanValues([]string{translated(pkg, "notes", "en")})
	if fr := pkg.Get("notes_translated.fr").String(); fr != "" {
		rec.DescriptionsFr = harvest.CleanValues([]string{fr})
	}
	tags := append([]string{}, stringArray(pkg.Get("tags.#.display_name"))...)
	rec.Tags = harvest.CleanValues(append(tags, stringArray(pkg.Get("keywords.en"))...))
	if fr := pkg.Get("keywords.fr"); fr.Exists() {
		rec.TagsFr = harvest.CleanValues(stringArray(fr))
	}

	domain := harvest.DomainMetadata{}
	spatial := pkg.Get("spatial").String()
	pkg.Get("extras").ForEach(func(_, extra gjson.Result) bool {
		key := strings.TrimSpace(extra.Get("key").String())
		value := extra.Get("value").String()
		if key == "spatial" {
			if spatial == "" {
				spatial = value
			}
			return true
		}
		if key != "" && !strings.Contains(key, "#") {
			domain.Add(Namespace, key, value)
		}
		return true
	})
	item.Domain = domain
	rec.Geospatial = parseGeoJSON(spatial)
	return item
}

// translated reads a multilingual field ("title_translated.en"), falling
// back to the plain field.
func translated(pkg gjson.Result, field, lang string) string {
	if v := pkg.Get(field + "_translated." + lang).String(); v != "" {
		return v
	}
	return pkg.Get(field).String()
}

func stringArray(r gjson.Result) []string {
	if !r.Exists() {
		return nil
	}
	var out []string
	for _, v := range r.Array() {
		out = append(out, v.String())
	}
	return out
}

// parseGeoJSON turns a Point or the outer ring of a Polygon into a geometry.
// GeoJSON positions are [lon, lat].
func parseGeoJSON(s string) *harvest.Geometry {
	if s == "" || !gjson.Valid(s) {
		return nil
	}
	geo := gjson.Parse(s)
	var positions []gjson.Result
	switch geo.Get("type").String() {
	case "Point":
		positions = []gjson.Result{geo.Get("coordinates")}
	case "Polygon":
		positions = geo.Get("coordinates.0").Array()
	case "MultiPolygon":
		positions = geo.Get("coordinates.0.0").Array()
	default:
		return nil
	}
	g := &harvest.Geometry{Type: geo.Get("type").String()}
	if g.Type == "MultiPolygon" {
		g.Type = "Polygon"
	}
	for _, p := range positions {
		xy := p.Array()
		if len(xy) < 2 {
			continue
		}
		g.Points = append(g.Points, harvest.Point{Lon: xy[0].Float(), Lat: xy[1].Float()})
	}
	if len(g.Points) == 0 {
		return nil
	}
	return g
}
