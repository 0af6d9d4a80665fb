package export

import (
	"encoding/json"
)

const gmetaVersion = "2016-11-09"

// gmeta writes Globus search ingest documents: one GMetaList per file.
// Deleted records become delete entries for their subject.
type gmeta struct{}

func (gmeta) name() string { return FormatGmeta }
func (gmeta) ext() string  { return ".json" }

func (gmeta) header() []byte {
	return []byte(`{"@datatype":"GIngest","@version":"` + gmetaVersion +
		`","ingest_type":"GMetaList","ingest_data":{"@datatype":"GMetaList","@version":"` + gmetaVersion + `","gmeta":[`)
}

func (gmeta) footer() []byte    { return []byte("]}}\n") }
func (gmeta) separator() []byte { return []byte(",\n") }

type gmetaEntry struct {
	DataType  string         `json:"@datatype"`
	Version   string         `json:"@version"`
	Subject   string         `json:"subject"`
	VisibleTo []string       `json:"visible_to,omitempty"`
	MimeType  string         `json:"mimetype,omitempty"`
	Content   map[string]any `json:"content,omitempty"`
}

func (gmeta) entry(d *Document) ([]byte, bool, error) {
	if d.Deleted {
		b, err := json.Marshal(gmetaEntry{DataType: "GDeleteSubject", Version: gmetaVersion, Subject: d.Subject})
		return b, true, err
	}
	b, err := json.Marshal(gmetaEntry{
		DataType:  "GMetaEntry",
		Version:   gmetaVersion,
		Subject:   d.Subject,
		VisibleTo: []string{"public"},
		MimeType:  "application/json",
		Content:   gmetaContent(d),
	})
	return b, true, err
}

func gmetaContent(d *Document) map[string]any {
	c := map[string]any{
		"dc_title":              d.Title,
		"dc_date":               d.PubDate,
		"dc_source":             d.SourceURL,
		"frdr_origin_id":        d.RepositoryName,
		"frdr_origin_url":       d.RepositoryURL,
		"frdr_origin_icon":      d.Thumbnail,
		"frdr_identifier":       d.Identifier,
		"frdr_series":           d.Series,
		"frdr_contact":          d.Contact,
		"frdr_modified":         d.Modified,
		"dc_contributor_author": orEmpty(d.Creators),
		"dc_contributor":        orEmpty(d.Contributors),
		"dc_subject":            orEmpty(d.Subjects),
		"dc_publisher":          orEmpty(d.Publishers),
		"dc_rights":             orEmpty(d.Rights),
		"frdr_access":           orEmpty(d.Access),
		"dc_description":        orEmpty(d.Descriptions),
		"dc_description_fr":     orEmpty(d.DescriptionsFr),
		"frdr_keywords":         orEmpty(d.Tags),
		"frdr_keywords_fr":      orEmpty(d.TagsFr),
	}
	if len(d.Geospatial) > 0 {
		points := make([]map[string]float64, 0, len(d.Geospatial))
		for _, g := range d.Geospatial {
			points = append(points, map[string]float64{"lat": g.Lat, "lon": g.Lon})
		}
		c["frdr_geospatial"] = map[string]any{"type": d.Geospatial[0].CoordinateType, "points": points}
	}
	for k, v := range d.Domain {
		c[k] = v
	}
	return c
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
