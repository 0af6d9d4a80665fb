package oai

import "encoding/xml"

// Envelope is the OAI-PMH response root.
type Envelope struct {
	XMLName      xml.Name     `xml:"OAI-PMH"`
	ResponseDate string       `xml:"responseDate"`
	Errors       []Error      `xml:"error"`
	ListRecords  *ListRecords `xml:"ListRecords"`
	GetRecord    *GetRecord   `xml:"GetRecord"`
}

// Error is a protocol level error such as noRecordsMatch.
type Error struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

type ListRecords struct {
	Records         []RecordXML      `xml:"record"`
	ResumptionToken *ResumptionToken `xml:"resumptionToken"`
}

type GetRecord struct {
	Record RecordXML `xml:"record"`
}

type ResumptionToken struct {
	Token            string `xml:",chardata"`
	CompleteListSize string `xml:"completeListSize,attr"`
	Cursor           string `xml:"cursor,attr"`
}

type RecordXML struct {
	Header   Header   `xml:"header"`
	Metadata Metadata `xml:"metadata"`
}

type Header struct {
	Status     string   `xml:"status,attr"`
	Identifier string   `xml:"identifier"`
	Datestamp  string   `xml:"datestamp"`
	SetSpecs   []string `xml:"setSpec"`
}

// Metadata holds the oai_dc payload. Element names are matched without
// their namespace so both oai_dc and bare dc payloads decode.
type Metadata struct {
	DC *DublinCore `xml:"dc"`
}

// DublinCore is the unqualified Dublin Core element set.
type DublinCore struct {
	Title       []string `xml:"title"`
	Creator     []string `xml:"creator"`
	Subject     []string `xml:"subject"`
	Description []string `xml:"description"`
	Publisher   []string `xml:"publisher"`
	Contributor []string `xml:"contributor"`
	Date        []string `xml:"date"`
	Type        []string `xml:"type"`
	Format      []string `xml:"format"`
	Identifier  []string `xml:"identifier"`
	Source      []string `xml:"source"`
	Language    []string `xml:"language"`
	Relation    []string `xml:"relation"`
	Coverage    []string `xml:"coverage"`
	Rights      []string `xml:"rights"`
}
