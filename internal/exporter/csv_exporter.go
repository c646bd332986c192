package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"cyberwhale/internal/challenges"
)

// SchemaVersion identifies the CSV export format version.
// This version should be incremented when adding new columns or changing the format.
const SchemaVersion = "1"

// csvColumns defines the column order for export. Flag material is
// intentionally excluded: only hashes are stored and they must not leave the
// database. Re-importing an export therefore requires supplying fresh flags.
var csvColumns = []string{
	"schemaVersion",
	"title",
	"description",
	"category",
	"difficulty",
	"points",
	"tags",
	"timeLimit",
	"downloadUrl",
	"solvedBy",
	"createdAt",
	"updatedAt",
}

// CSVExporter writes the challenge catalog to CSV for reporting and backup.
type CSVExporter struct{}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Export writes challenges to the given writer in CSV format.
func (e *CSVExporter) Export(w io.Writer, list []challenges.Challenge) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(csvColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, challenge := range list {
		if err := writer.Write(e.challengeToRow(challenge)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	return writer.Error()
}

// challengeToRow converts a challenge to a CSV row following the column order.
func (e *CSVExporter) challengeToRow(challenge challenges.Challenge) []string {
	row := make([]string, len(csvColumns))

	row[0] = SchemaVersion
	row[1] = challenge.Title
	row[2] = challenge.Description
	row[3] = string(challenge.Category)
	row[4] = string(challenge.Difficulty)
	row[5] = strconv.Itoa(challenge.Points)
	row[6] = strings.Join(challenge.Tags, ";")
	row[7] = formatOptionalInt(challenge.TimeLimit)
	row[8] = challenge.DownloadURL
	row[9] = strconv.Itoa(challenge.SolvedBy)
	row[10] = formatTime(challenge.CreatedAt)
	row[11] = formatTime(challenge.UpdatedAt)

	return row
}

// formatOptionalInt formats an optional integer pointer to a string.
func formatOptionalInt(value *int) string {
	if value == nil {
		return ""
	}
	return strconv.Itoa(*value)
}

// formatTime formats a time to RFC3339 string.
func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.Format(time.RFC3339)
}
