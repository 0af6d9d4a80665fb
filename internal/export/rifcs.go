package export

import (
	"encoding/xml"
	"fmt"
	"strings"
)

const rifcsNamespace = "http://ands.org.au/standards/rif-cs/registryObjects"

// rifcs writes RIF-CS registry objects. The format has no tombstone, so
// deleted records are left out.
type rifcs struct{}

func (rifcs) name() string { return FormatRIFCS }
func (rifcs) ext() string  { return ".xml" }

func (rifcs) header() []byte {
	return []byte(xml.Header + `<registryObjects xmlns="` + rifcsNamespace + `">` + "\n")
}

func (rifcs) footer() []byte    { return []byte("</registryObjects>\n") }
func (rifcs) separator() []byte { return []byte("\n") }

type registryObject struct {
	XMLName           xml.Name   `xml:"registryObject"`
	Group             string     `xml:"group,attr"`
	Key               string     `xml:"key"`
	OriginatingSource string     `xml:"originatingSource"`
	Collection        collection `xml:"collection"`
}

type collection struct {
	Type         string        `xml:"type,attr"`
	Identifiers  []identifier  `xml:"identifier"`
	Names        []namePart    `xml:"name>namePart"`
	Location     *location     `xml:"location,omitempty"`
	Dates        []dates       `xml:"dates,omitempty"`
	Descriptions []description `xml:"description"`
	Subjects     []typedValue  `xml:"subject"`
	Coverage     *coverage     `xml:"coverage,omitempty"`
	Rights       *rights       `xml:"rights,omitempty"`
	Related      []relatedInfo `xml:"relatedInfo"`
}

type identifier struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type namePart struct {
	Value string `xml:",chardata"`
}

type location struct {
	URL string `xml:"address>electronic>value"`
}

type dates struct {
	Type string     `xml:"type,attr"`
	Date typedValue `xml:"date"`
}

type description struct {
	Type string `xml:"type,attr"`
	Lang string `xml:"xml:lang,attr,omitempty"`
	Text string `xml:",chardata"`
}

type typedValue struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type coverage struct {
	Spatial typedValue `xml:"spatial"`
}

type rights struct {
	Statement string `xml:"rightsStatement,omitempty"`
	Access    string `xml:"accessRights,omitempty"`
}

type relatedInfo struct {
	Type  string `xml:"type,attr"`
	Title string `xml:"title"`
}

func (rifcs) entry(d *Document) ([]byte, bool, error) {
	if d.Deleted {
		return nil, false, nil
	}
	obj := registryObject{
		Group:             d.RepositoryName,
		Key:               d.Subject,
		OriginatingSource: d.RepositoryURL,
		Collection: collection{
			Type:        "dataset",
			Identifiers: []identifier{{Type: "local", Value: d.Identifier}},
			Names:       []namePart{{Value: d.Title}},
		},
	}
	c := &obj.Collection
	if d.SourceURL != "" {
		c.Identifiers = append(c.Identifiers, identifier{Type: "uri", Value: d.SourceURL})
		c.Location = &location{URL: d.SourceURL}
	}
	if d.PubDate != "" {
		c.Dates = []dates{{Type: "dc.issued", Date: typedValue{Type: "dateFrom", Value: d.PubDate}}}
	}
	for _, text := range d.Descriptions {
		c.Descriptions = append(c.Descriptions, description{Type: "full", Text: text})
	}
	for _, text := range d.DescriptionsFr {
		c.Descriptions = append(c.Descriptions, description{Type: "full", Lang: "fr", Text: text})
	}
	for _, s := range d.Subjects {
		c.Subjects = append(c.Subjects, typedValue{Type: "local", Value: s})
	}
	for _, t := range d.Tags {
		c.Subjects = append(c.Subjects, typedValue{Type: "keyword", Value: t})
	}
	if len(d.Geospatial) > 0 {
		coords := make([]string, 0, len(d.Geospatial))
		for _, g := range d.Geospatial {
			coords = append(coords, fmt.Sprintf("%g,%g", g.Lon, g.Lat))
		}
		c.Coverage = &coverage{Spatial: typedValue{Type: "kmlPolyCoords", Value: strings.Join(coords, " ")}}
	}
	if len(d.Rights) > 0 || len(d.Access) > 0 {
		c.Rights = &rights{Statement: strings.Join(d.Rights, "; "), Access: strings.Join(d.Access, "; ")}
	}
	if d.Series != "" {
		c.Related = []relatedInfo{{Type: "collection", Title: d.Series}}
	}

	b, err := xml.MarshalIndent(obj, "", "  ")
	return b, true, err
}
