package analytics

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

var csvHeader = []string{"Timestamp", "Votes", "Comments", "Velocity", "Engagement"}

// Export renders series as JSON (indented array) or CSV.
func Export(series []Point, format string) ([]byte, string, error) {
	switch format {
	case "", FormatJSON:
		b, err := ExportJSON(series)
		return b, "application/json", err
	case FormatCSV:
		b, err := ExportCSV(series)
		return b, "text/csv", err
	default:
		return nil, "", fmt.Errorf("unsupported export format %q", format)
	}
}

// ExportJSON renders series as an indented JSON array.
func ExportJSON(series []Point) ([]byte, error) {
	if series == nil {
		series = []Point{}
	}
	return json.MarshalIndent(series, "", "  ")
}

// ExportCSV renders series with the header
// Timestamp,Votes,Comments,Velocity,Engagement.
func ExportCSV(series []Point) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, p := range series {
		row := []string{
			p.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
			strconv.Itoa(p.Votes),
			strconv.Itoa(p.Comments),
			strconv.FormatFloat(p.Velocity, 'f', 2, 64),
			strconv.FormatFloat(p.Engagement, 'f', 3, 64),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
