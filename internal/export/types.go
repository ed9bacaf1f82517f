// Package export renders question lists to CSV and single questions to PDF or PNG.
package export

import (
	"errors"
	"time"
)

type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
	FormatPNG Format = "png"
)

// ParseFormat accepts the formats a single question can be rendered to.
func ParseFormat(value string) (Format, bool) {
	switch Format(value) {
	case FormatPDF, FormatPNG:
		return Format(value), true
	}
	return "", false
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrBrowserMissing indicates PDF/PNG rendering has no headless browser available.
	ErrBrowserMissing    = errors.New("export browser dependency missing")
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

var shortMonthsID = [...]string{"Jan", "Feb", "Mar", "Apr", "Mei", "Jun", "Jul", "Agu", "Sep", "Okt", "Nov", "Des"}

// FormatDateID renders a date the way Indonesian readers expect, e.g. "3 Feb 2025".
func FormatDateID(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2") + " " + shortMonthsID[t.Month()-1] + " " + t.Format("2006")
}
