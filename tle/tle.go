// Package tle ingests two-line element sets: feed parsing, field access, and
// epoch decoding. Elements are immutable once ingested; orbital math lives in
// the propagate package.
package tle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const lineLen = 69

var (
	// ErrEmptyFeed indicates the feed contained no element sets at all.
	ErrEmptyFeed = errors.New("element feed is empty")
	// ErrMalformedElement indicates an element line fails basic validation.
	ErrMalformedElement = errors.New("malformed element")
)

// RawElement is one object's name line plus its two fixed-format data lines.
type RawElement struct {
	Name  string
	Line1 string
	Line2 string
}

// CatalogNumber returns the object's catalog identifier (columns 3-7 of
// line 1), or "" when the line is too short.
func (e RawElement) CatalogNumber() string {
	if len(e.Line1) < 7 {
		return ""
	}
	return strings.TrimSpace(e.Line1[2:7])
}

// Validate performs the structural checks shared by the feed parser and the
// constants derivation: line markers, length, and a decodable epoch field.
func (e RawElement) Validate() error {
	if len(e.Line1) < lineLen || len(e.Line2) < lineLen {
		return fmt.Errorf("%w: line shorter than %d columns", ErrMalformedElement, lineLen)
	}
	if !strings.HasPrefix(e.Line1, "1 ") {
		return fmt.Errorf("%w: line 1 marker missing", ErrMalformedElement)
	}
	if !strings.HasPrefix(e.Line2, "2 ") {
		return fmt.Errorf("%w: line 2 marker missing", ErrMalformedElement)
	}
	if _, err := ParseEpoch(e.Line1); err != nil {
		return err
	}
	return nil
}

// ParseEpoch decodes the element epoch (columns 19-32 of line 1, a two-digit
// year and fractional day-of-year) into an absolute UTC instant.
//
// Two-digit years pivot at 57: values below 57 map to 2000+yy, values of 57
// and above map to 1900+yy. Day 1.0 is January 1st at 00:00 UTC.
func ParseEpoch(line1 string) (time.Time, error) {
	if len(line1) < 32 {
		return time.Time{}, fmt.Errorf("%w: epoch field missing", ErrMalformedElement)
	}
	field := strings.TrimSpace(line1[18:32])
	if len(field) < 5 {
		return time.Time{}, fmt.Errorf("%w: epoch field %q too short", ErrMalformedElement, field)
	}

	yy, err := strconv.Atoi(field[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: epoch year %q: %v", ErrMalformedElement, field[:2], err)
	}
	day, err := strconv.ParseFloat(field[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: epoch day %q: %v", ErrMalformedElement, field[2:], err)
	}
	if day < 1 || day >= 367 {
		return time.Time{}, fmt.Errorf("%w: epoch day %v out of range", ErrMalformedElement, day)
	}

	year := 1900 + yy
	if yy < 57 {
		year = 2000 + yy
	}

	whole := int(day)
	frac := day - float64(whole)

	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return jan1.
		AddDate(0, 0, whole-1).
		Add(time.Duration(frac * 24 * float64(time.Hour))), nil
}

// ParseFeed reads a three-line-element text stream into RawElements. The feed
// is tolerated in the shapes real catalogs come in: CRLF line endings,
// interleaved blank lines, and sets missing the name line (the element is
// then named by its catalog number). Lines that belong to no recognizable
// set are skipped.
func ParseFeed(r io.Reader) ([]RawElement, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256), 1024)

	var (
		elements []RawElement
		name     string
		line1    string
	)
	flush := func(line2 string) {
		e := RawElement{Name: name, Line1: line1, Line2: line2}
		if e.Name == "" {
			e.Name = e.CatalogNumber()
		}
		elements = append(elements, e)
		name, line1 = "", ""
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "1 "):
			line1 = line
		case strings.HasPrefix(line, "2 "):
			if line1 == "" {
				// Orphan second line; drop it and any pending name.
				name = ""
				continue
			}
			flush(line)
		default:
			name = strings.TrimSpace(line)
			line1 = ""
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read element feed: %w", err)
	}
	if len(elements) == 0 {
		return nil, ErrEmptyFeed
	}
	return elements, nil
}
