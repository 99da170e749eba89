package model

import "math"

const (
	DefaultCaseStatus      = "new"
	DefaultCaseSensitivity = "standard"
)

// Case is a document of the Cases database. Access is decided by Workers and Clients only.
type Case struct {
	ID                   string         `bson:"_id" json:"id"`
	Sensitivity          string         `bson:"sensitivity" json:"sensitivity"`
	Title                string         `bson:"title" json:"title"`
	Status               string         `bson:"status" json:"status"`
	BriefDescription     string         `bson:"brief_description" json:"brief_description"`
	CaseReferrer         string         `bson:"case_referrer" json:"case_referrer"`
	Description          string         `bson:"description" json:"description"`
	Workers              []string       `bson:"workers" json:"workers"`
	Clients              []string       `bson:"clients" json:"clients"`
	AdditionalProperties map[string]any `bson:"additional_properties" json:"additional_properties"`
}

const (
	DefaultPageSize = 8
	MaxPageSize     = 100
	MaxPageNumber   = math.MaxInt32
)

type Page struct {
	Number int
	Size   int
}

// NewPage clamps a requested page to sane bounds: pages run from 1 to MaxPageNumber,
// size falls back to DefaultPageSize and is capped at MaxPageSize.
func NewPage(number int, size int) Page {
	if number < 1 {
		number = 1
	}
	if number > MaxPageNumber {
		number = MaxPageNumber
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

func (p Page) Skip() int64 {
	return int64(p.Number-1) * int64(p.Size)
}

type CaseList struct {
	Cases []Case
	Total int64
}
