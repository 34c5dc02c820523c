// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package aggregate

import "time"

// BIOM format constants.
const (
	BIOMFormat      = "Biological Observation Matrix 1.0"
	BIOMFormatURL   = "http://biom-format.org"
	BIOMGeneratedBy = "MG-RAST"
	BIOMDense       = "dense"
)

// BIOM is a dense Biological Observation Matrix.
type BIOM struct {
	ID                 string       `json:"id"`
	URL                string       `json:"url,omitempty"`
	Format             string       `json:"format"`
	FormatURL          string       `json:"format_url"`
	Type               string       `json:"type"`
	DataSource         string       `json:"data_source"`
	SourceType         string       `json:"source_type"`
	GeneratedBy        string       `json:"generated_by"`
	Date               time.Time    `json:"date"`
	MatrixType         string       `json:"matrix_type"`
	MatrixElementType  string       `json:"matrix_element_type"`
	MatrixElementValue string       `json:"matrix_element_value,omitempty"`
	Shape              [2]int       `json:"shape"`
	Rows               []BIOMRow    `json:"rows"`
	Columns            []BIOMColumn `json:"columns"`
	Data               [][]float64  `json:"data"`
}

// BIOMRow is a row header.
type BIOMRow struct {
	ID       string                 `json:"id"`
	Metadata map[string]interface{} `json:"metadata"`
}

// BIOMColumn is a column header.
type BIOMColumn struct {
	ID       string                 `json:"id"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func newBIOM(id, source, sourceType string, date time.Time) *BIOM {
	return &BIOM{
		ID:          id,
		Format:      BIOMFormat,
		FormatURL:   BIOMFormatURL,
		DataSource:  source,
		SourceType:  sourceType,
		GeneratedBy: BIOMGeneratedBy,
		Date:        date,
		MatrixType:  BIOMDense,
		Rows:        []BIOMRow{},
		Columns:     []BIOMColumn{},
		Data:        [][]float64{},
	}
}
