/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package rules

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	columnVariable   = "variable"
	columnValue      = "value"
	columnSeedGenres = "seed_genres"

	genreSeparator = "/"
)

// Header is the exact column layout of a rule table.
var Header = []string{
	columnVariable,
	columnValue,
	ParamAcousticness,
	ParamEnergy,
	ParamLoudness,
	ParamLiveness,
	ParamDanceability,
	ParamInstrumentalness,
	ParamValence,
	columnSeedGenres,
}

// LoadFile reads a rule table from disk.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rule table: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a semicolon-delimited rule table. Rows are grouped by the
// variable column and indexed by the value column; a later row with the same
// pair replaces an earlier one.
func Load(r io.Reader) (*Store, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = len(Header)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ConfigError{Kind: KindSchema, Line: 1, Err: errors.New("empty rule table")}
		}
		return nil, &ConfigError{Kind: KindSchema, Line: 1, Err: err}
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	categories := map[string]map[string]Entry{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				line = parseErr.Line
			}
			return nil, &ConfigError{Kind: KindMalformed, Line: line, Err: err}
		}
		line, _ := reader.FieldPos(0)
		if blankRecord(record) {
			continue
		}

		category, label, entry, err := parseRecord(record, line)
		if err != nil {
			return nil, err
		}
		if categories[category] == nil {
			categories[category] = map[string]Entry{}
		}
		categories[category][label] = entry
	}

	return &Store{categories: categories}, nil
}

func checkHeader(header []string) error {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	if len(header) != len(Header) {
		return &ConfigError{Kind: KindSchema, Line: 1, Err: fmt.Errorf("expected %d columns, got %d", len(Header), len(header))}
	}
	for i, want := range Header {
		if got := strings.TrimSpace(header[i]); got != want {
			return &ConfigError{Kind: KindSchema, Line: 1, Err: fmt.Errorf("column %d is %q, want %q", i+1, got, want)}
		}
	}
	return nil
}

func parseRecord(record []string, line int) (string, string, Entry, error) {
	category := strings.TrimSpace(record[0])
	label := strings.TrimSpace(record[1])
	if category == "" || label == "" {
		return "", "", Entry{}, &ConfigError{
			Kind: KindMalformed, Line: line, Category: category, Label: label,
			Err: errors.New("variable and value must not be empty"),
		}
	}

	entry := Entry{Params: make(map[string]float64, len(NumericParams))}
	for i := 2; i < len(Header)-1; i++ {
		param := Header[i]
		raw := strings.TrimSpace(record[i])
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return "", "", Entry{}, &ConfigError{
				Kind: KindMalformed, Line: line, Category: category, Label: label, Param: param,
				Err: fmt.Errorf("not a number: %q", raw),
			}
		}
		entry.Params[param] = value
	}
	entry.SeedGenres = parseGenres(record[len(Header)-1])

	return category, label, entry, nil
}

// parseGenres splits a slash-delimited genre cell. A blank cell yields nil.
func parseGenres(cell string) []string {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	var genres []string
	for _, part := range strings.Split(cell, genreSeparator) {
		if g := strings.TrimSpace(part); g != "" {
			genres = append(genres, g)
		}
	}
	return genres
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
