package analysis

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
)

// Format selects how FileAnalysis prints results.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// ParseFormat accepts table, csv or json. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q, use table, csv or json", s)
	}
}

// WriteResults writes results to w in the given format.
func WriteResults(w io.Writer, format Format, results []FileResult) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, results)
	case FormatJSON:
		return writeJSON(w, results)
	default:
		return writeTable(w, results)
	}
}

func writeTable(w io.Writer, results []FileResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "File\tRank\tLabel\tConfidence")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(tw, "%s\t-\terror: %v\t\n", r.Path, r.Err)
			continue
		}
		for i, rec := range r.Recognitions {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%.4f\n", r.Path, i+1, rec.Label, rec.Confidence)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write results table: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, results []FileResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"file", "rank", "label", "confidence", "error"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range results {
		if r.Err != nil {
			if err := cw.Write([]string{r.Path, "", "", "", r.Err.Error()}); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
			continue
		}
		for i, rec := range r.Recognitions {
			row := []string{r.Path, strconv.Itoa(i + 1), rec.Label, strconv.FormatFloat(float64(rec.Confidence), 'f', 4, 32), ""}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// jsonResult adds the error text, which FileResult leaves out of its encoding.
type jsonResult struct {
	FileResult
	Error string `json:"error,omitempty"`
}

func writeJSON(w io.Writer, results []FileResult) error {
	out := make([]jsonResult, len(results))
	for i, r := range results {
		out[i].FileResult = r
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func newRequestID() string {
	return uuid.NewString()
}
