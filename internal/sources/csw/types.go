package csw

import "encoding/xml"

// Response matches GetRecords, GetRecordById and ExceptionReport roots.
type Response struct {
	XMLName       xml.Name
	Exceptions    []Exception    `xml:"Exception"`
	SearchResults *SearchResults `xml:"SearchResults"`
	Records       []Record       `xml:"Record"`
}

type Exception struct {
	Code    string   `xml:"exceptionCode,attr"`
	Locator string   `xml:"locator,attr"`
	Text    []string `xml:"ExceptionText"`
}

type SearchResults struct {
	Matched    int      `xml:"numberOfRecordsMatched,attr"`
	Returned   int      `xml:"numberOfRecordsReturned,attr"`
	NextRecord int      `xml:"nextRecord,attr"`
	Records    []Record `xml:"Record"`
}

// Record is a csw:Record in the "full" element set. Elements are matched by
// local name, so dc, dct and ows prefixes all decode.
type Record struct {
	Identifier   []string      `xml:"identifier"`
	Title        []string      `xml:"title"`
	Alternative  []string      `xml:"alternative"`
	Creator      []string      `xml:"creator"`
	Contributor  []string      `xml:"contributor"`
	Publisher    []string      `xml:"publisher"`
	Subject      []string      `xml:"subject"`
	Abstract     []string      `xml:"abstract"`
	Description  []string      `xml:"description"`
	Date         []string      `xml:"date"`
	Modified     []string      `xml:"modified"`
	Type         []string      `xml:"type"`
	Format       []string      `xml:"format"`
	Language     []string      `xml:"language"`
	Source       []string      `xml:"source"`
	Relation     []string      `xml:"relation"`
	References   []string      `xml:"references"`
	Rights       []string      `xml:"rights"`
	AccessRights []string      `xml:"accessRights"`
	BoundingBox  []BoundingBox `xml:"BoundingBox"`
}

type BoundingBox struct {
	CRS         string `xml:"crs,attr"`
	LowerCorner string `xml:"LowerCorner"`
	UpperCorner string `xml:"UpperCorner"`
}
