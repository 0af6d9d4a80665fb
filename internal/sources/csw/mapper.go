package csw

import (
	"errors"
	"strconv"
	"strings"

	"github.com/mkoziy/harvester/internal/harvest"
)

// Namespace keys Dublin Core elements without a canonical column.
const Namespace = "csw"

func MapRecord(r Record) harvest.Item {
	item := harvest.Item{
		Record:    harvest.Record{Identifier: harvest.First(r.Identifier)},
		Datestamp: harvest.ParseDate(harvest.First(r.Modified)),
	}
	if item.Record.Identifier == "" {
		item.Err = errors.New("csw record has no identifier")
		return item
	}

	rec := &item.Record
	rec.Title = harvest.First(r.Title)
	rec.PubDate = harvest.PubDate(harvest.First(r.Date))
	if rec.PubDate == "" {
		rec.PubDate = harvest.PubDate(harvest.First(r.Modified))
	}
	rec.Source = links(append(append([]string{}, r.References...), r.Source...))
	rec.Creators = harvest.CleanValues(orEmpty(r.Creator))
	rec.Contributors = harvest.CleanValues(orEmpty(r.Contributor))
	rec.Publishers = harvest.CleanValues(orEmpty(r.Publisher))
	rec.Subjects = harvest.CleanValues(orEmpty(r.Subject))
	rec.Rights = harvest.CleanValues(orEmpty(r.Rights))
	rec.Access = harvest.CleanValues(orEmpty(r.AccessRights))
	rec.Descriptions = harvest.CleanValues(append(orEmpty(r.Abstract), r.Description...))
	for _, bb := range r.BoundingBox {
		if g := bboxGeometry(bb); g != nil {
			rec.Geospatial = g
			break
		}
	}

	domain := harvest.DomainMetadata{}
	domain.Add(Namespace, "type", r.Type...)
	domain.Add(Namespace, "format", r.Format...)
	domain.Add(Namespace, "language", r.Language...)
	domain.Add(Namespace, "relation", r.Relation...)
	domain.Add(Namespace, "alternative", r.Alternative...)
	if len(r.Identifier) > 1 {
		domain.Add(Namespace, "identifier", r.Identifier[1:]...)
	}
	item.Domain = domain
	return item
}

func orEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func links(values []string) []string {
	var out []string
	for _, v := range harvest.CleanValues(values) {
		if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			out = append(out, v)
		}
	}
	return out
}

// bboxGeometry converts an ows:BoundingBox to a closed polygon. Corners are
// "lat lon" for EPSG:4326 and "lon lat" for CRS84 or when no CRS is given.
func bboxGeometry(bb BoundingBox) *harvest.Geometry {
	lower, ok1 := corner(bb.LowerCorner)
	upper, ok2 := corner(bb.UpperCorner)
	if !ok1 || !ok2 {
		return nil
	}
	if strings.Contains(bb.CRS, "4326") {
		return harvest.BoundingBox(lower[0], lower[1], upper[0], upper[1])
	}
	return harvest.BoundingBox(lower[1], lower[0], upper[1], upper[0])
}

func corner(s string) ([2]float64, bool) {
	var c [2]float64
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return c, false
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return c, false
		}
		c[i] = v
	}
	return c, true
}
