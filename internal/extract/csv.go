package extract

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ovoloshko/statement-ingest/internal/domain"
)

// Header aliases for the column triple, in priority order. Matching is on
// the normalized header cell (lowercased, trimmed, BOM stripped) and each
// column serves at most one field.
var (
	dateAliases = []string{
		"date", "transaction date", "posting date", "posted date",
		"value date", "booking date", "completed date",
	}
	amountAliases = []string{
		"amount", "transaction amount", "value", "amount (gbp)",
		"amount (usd)", "amount (eur)",
	}
	descriptionAliases = []string{
		"description", "details", "transaction details", "narrative",
		"memo", "name", "merchant", "payee",
	}
	referenceAliases = []string{
		"reference", "transaction id", "ref",
	}
)

// dateFormats tried in order. ISO first so the unambiguous form always wins;
// day-first before month-first, so month-first only catches dates day-first
// rejects.
var dateFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"02-01-2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"02.01.2006",
}

type columnMap struct {
	date        int
	amount      int
	description int
	reference   int // -1 when the statement has no reference column
}

// mapCSV maps a delimited statement into records. The first non-empty row is
// the header; data rows that fail to yield the full date/amount/description
// triple are skipped silently, absent from the output and counted nowhere.
func mapCSV(data []byte) ([]Record, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var records []Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Ragged or malformed rows are skipped like unmappable ones.
			continue
		}
		if rec, ok := parseRecordRow(row, cols); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

func readHeader(r *csv.Reader) ([]string, error) {
	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil, domain.NewIngestError(domain.ErrUnreadableDocument,
				"the CSV file is empty", nil)
		}
		if err != nil {
			return nil, domain.NewIngestError(domain.ErrUnreadableDocument,
				"the CSV file could not be read, re-export it from your bank", err)
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		return row, nil
	}
}

func resolveColumns(header []string) (columnMap, error) {
	normalized := make([]string, len(header))
	for i, cell := range header {
		cell = strings.TrimPrefix(cell, "﻿")
		normalized[i] = strings.ToLower(strings.TrimSpace(cell))
	}

	claimed := make(map[int]bool)
	find := func(aliases []string) int {
		for _, a := range aliases {
			for i, cell := range normalized {
				if cell == a && !claimed[i] {
					claimed[i] = true
					return i
				}
			}
		}
		return -1
	}

	cols := columnMap{
		date:        find(dateAliases),
		amount:      find(amountAliases),
		description: find(descriptionAliases),
		reference:   find(referenceAliases),
	}
	if cols.date < 0 || cols.amount < 0 || cols.description < 0 {
		return columnMap{}, domain.NewIngestError(domain.ErrUnsupportedFormat,
			"the CSV needs date, amount and description columns, check the header row or upload the PDF statement instead", nil)
	}
	return cols, nil
}

func parseRecordRow(row []string, cols columnMap) (Record, bool) {
	if cols.date >= len(row) || cols.amount >= len(row) || cols.description >= len(row) {
		return Record{}, false
	}

	date, ok := parseDate(row[cols.date])
	if !ok {
		return Record{}, false
	}
	amount, ok := parseAmount(row[cols.amount])
	if !ok || amount == 0 {
		return Record{}, false
	}
	desc := domain.ClampDescription(row[cols.description])
	if desc == "" {
		return Record{}, false
	}

	rec := Record{Date: date, Description: desc, Amount: amount}
	if cols.reference >= 0 && cols.reference < len(row) {
		rec.Reference = strings.TrimSpace(row[cols.reference])
	}
	return rec, true
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseAmount handles the amount spellings banks actually export: currency
// symbols, thousands separators, parenthesized negatives and CR/DR suffixes.
func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	upper := strings.ToUpper(s)
	switch {
	case strings.HasSuffix(upper, "CR"):
		s = s[:len(s)-2]
	case strings.HasSuffix(upper, "DR"), strings.HasSuffix(upper, "DB"):
		negative = true
		s = s[:len(s)-2]
	}

	s = strings.Map(func(r rune) rune {
		switch r {
		case '$', '£', '€', ',', ' ':
			return -1
		}
		return r
	}, s)

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	if negative && v > 0 {
		v = -v
	}
	return v, true
}
