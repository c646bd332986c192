package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cyberwhale/internal/challenges"
)

// ChallengeStore is the slice of the challenge service the importer needs.
type ChallengeStore interface {
	Create(ctx context.Context, input challenges.CreateInput) (challenges.Challenge, error)
	List(ctx context.Context, opts challenges.ListOptions) ([]challenges.Challenge, error)
}

type Summary struct {
	TotalRows         int             `json:"totalRows"`
	Imported          int             `json:"imported"`
	SkippedDuplicates []SkippedRecord `json:"skippedDuplicates"`
	Failed            []FailedRecord  `json:"failed"`
	TruncatedRecords  bool            `json:"truncatedRecords,omitempty"`
}

type SkippedRecord struct {
	Row    int    `json:"row"`
	Title  string `json:"title,omitempty"`
	Reason string `json:"reason"`
}

type FailedRecord struct {
	Row   int    `json:"row"`
	Title string `json:"title,omitempty"`
	Error string `json:"error"`
}

var ErrInvalidCSV = errors.New("invalid csv upload")

// MaxImportRows limits the number of data rows processed per CSV import to
// prevent excessive memory usage and long-running requests.
const MaxImportRows = 1000

// MaxFailedRecords caps the number of failed/skipped records stored in the
// summary to avoid unbounded memory growth from malformed uploads.
const MaxFailedRecords = 100

var requiredColumns = []string{
	"title",
	"description",
	"category",
	"difficulty",
	"points",
	"flag",
}

// CSVImporter bulk-creates challenges from an admin-uploaded CSV. Flags are
// supplied in plaintext and hashed by the challenge service on create.
type CSVImporter struct {
	challenges ChallengeStore
}

func NewCSVImporter(store ChallengeStore) *CSVImporter {
	return &CSVImporter{challenges: store}
}

func (i *CSVImporter) Import(ctx context.Context, reader io.Reader) (Summary, error) {
	if i.challenges == nil {
		return Summary{}, fmt.Errorf("%w: challenge store is not configured", ErrInvalidCSV)
	}

	existing, err := i.challenges.List(ctx, challenges.ListOptions{})
	if err != nil {
		return Summary{}, err
	}

	tracker := newDuplicateTracker(existing)

	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	header, err := csvReader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Summary{}, fmt.Errorf("%w: file is empty", ErrInvalidCSV)
		}
		return Summary{}, fmt.Errorf("%w: failed to read header", ErrInvalidCSV)
	}

	columns, err := normalizeHeader(header)
	if err != nil {
		return Summary{}, err
	}

	type parsedRow struct {
		number int
		values map[string]string
	}

	var rows []parsedRow
	rowNumber := 1
	totalRows := 0

	for {
		record, err := csvReader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Summary{}, fmt.Errorf("%w: failed to read row %d", ErrInvalidCSV, rowNumber+1)
		}
		rowNumber++
		values := mapRecord(columns, record)
		if isRowEmpty(values) {
			continue
		}

		totalRows++
		if totalRows > MaxImportRows {
			return Summary{}, fmt.Errorf("%w: CSV exceeds maximum of %d rows", ErrInvalidCSV, MaxImportRows)
		}

		rows = append(rows, parsedRow{
			number: rowNumber,
			values: values,
		})
	}

	summary := Summary{TotalRows: totalRows}

	for _, row := range rows {
		input, rowErr := buildInput(row.values)
		if rowErr != nil {
			if len(summary.Failed) < MaxFailedRecords {
				summary.Failed = append(summary.Failed, FailedRecord{
					Row:   row.number,
					Title: strings.TrimSpace(row.values["title"]),
					Error: rowErr.Error(),
				})
			} else {
				summary.TruncatedRecords = true
			}
			continue
		}

		if reason, ok := tracker.Check(input.Title); ok {
			if len(summary.SkippedDuplicates) < MaxFailedRecords {
				summary.SkippedDuplicates = append(summary.SkippedDuplicates, SkippedRecord{
					Row:    row.number,
					Title:  input.Title,
					Reason: reason,
				})
			} else {
				summary.TruncatedRecords = true
			}
			continue
		}

		if _, err := i.challenges.Create(ctx, input); err != nil {
			if len(summary.Failed) < MaxFailedRecords {
				summary.Failed = append(summary.Failed, FailedRecord{
					Row:   row.number,
					Title: input.Title,
					Error: err.Error(),
				})
			} else {
				summary.TruncatedRecords = true
			}
			continue
		}

		tracker.Add(input.Title)
		summary.Imported++
	}

	return summary, nil
}

func buildInput(values map[string]string) (challenges.CreateInput, error) {
	title := strings.TrimSpace(values["title"])
	if title == "" {
		return challenges.CreateInput{}, fmt.Errorf("title is required")
	}

	category := challenges.Category(strings.ToLower(strings.TrimSpace(values["category"])))
	if !challenges.ValidCategory(category) {
		return challenges.CreateInput{}, fmt.Errorf("unknown category %q", values["category"])
	}

	difficulty := challenges.Difficulty(strings.ToLower(strings.TrimSpace(values["difficulty"])))
	if !challenges.ValidDifficulty(difficulty) {
		return challenges.CreateInput{}, fmt.Errorf("unknown difficulty %q", values["difficulty"])
	}

	points, err := parseRequiredInt(values["points"], "points")
	if err != nil {
		return challenges.CreateInput{}, err
	}

	timeLimit, err := parseOptionalInt(values["timelimit"], "timeLimit")
	if err != nil {
		return challenges.CreateInput{}, err
	}

	flag := strings.TrimSpace(values["flag"])
	if flag == "" {
		return challenges.CreateInput{}, fmt.Errorf("flag is required")
	}

	return challenges.CreateInput{
		Title:       title,
		Description: strings.TrimSpace(values["description"]),
		Category:    category,
		Difficulty:  difficulty,
		Points:      points,
		Tags:        splitTags(values["tags"]),
		Flag:        flag,
		TimeLimit:   timeLimit,
		DownloadURL: strings.TrimSpace(values["downloadurl"]),
	}, nil
}

// splitTags parses the semicolon-separated tags column.
func splitTags(value string) []string {
	var tags []string
	for _, raw := range strings.Split(value, ";") {
		if tag := strings.TrimSpace(raw); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func normalizeHeader(header []string) (map[int]string, error) {
	columns := make(map[int]string, len(header))
	seen := map[string]bool{}
	for idx, raw := range header {
		cleaned := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\uFEFF")))
		if cleaned == "" {
			continue
		}
		columns[idx] = cleaned
		seen[cleaned] = true
	}

	missing := make([]string, 0)
	for _, column := range requiredColumns {
		if !seen[column] {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns: %s", ErrInvalidCSV, strings.Join(missing, ", "))
	}
	return columns, nil
}

func mapRecord(columns map[int]string, record []string) map[string]string {
	values := make(map[string]string, len(columns))
	for idx, column := range columns {
		if idx >= len(record) {
			values[column] = ""
			continue
		}
		values[column] = strings.TrimSpace(record[idx])
	}
	return values
}

func isRowEmpty(values map[string]string) bool {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}

func parseRequiredInt(value string, field string) (int, error) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	parsed, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", field)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive", field)
	}
	return parsed, nil
}

func parseOptionalInt(value string, field string) (*int, error) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", field)
	}
	if parsed <= 0 {
		return nil, fmt.Errorf("%s must be positive", field)
	}
	return &parsed, nil
}

type duplicateTracker struct {
	known map[string]bool
}

func newDuplicateTracker(existing []challenges.Challenge) *duplicateTracker {
	tracker := &duplicateTracker{known: map[string]bool{}}
	for _, challenge := range existing {
		tracker.Add(challenge.Title)
	}
	return tracker
}

func (t *duplicateTracker) Add(title string) {
	cleaned := strings.ToLower(strings.TrimSpace(title))
	if cleaned == "" {
		return
	}
	t.known[cleaned] = true
}

func (t *duplicateTracker) Check(title string) (string, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(title))
	if cleaned != "" && t.known[cleaned] {
		return "duplicate title", true
	}
	return "", false
}
