package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/pankaj-dahiya-devops/s3audit/internal/models"
)

// Format selects the report renderer.
type Format string

const (
	FormatText Format = "text"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "text" or "csv", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q; valid values: text, csv", s)
	}
}

// Render writes reports to w in format f.
func Render(w io.Writer, f Format, reports []*models.Report, opts TextOptions) error {
	switch f {
	case FormatCSV:
		cw := NewCSVWriter(w)
		for _, r := range reports {
			if err := cw.Write(r); err != nil {
				return err
			}
		}
		return cw.Flush()
	case FormatText:
		RenderTextAll(w, reports, opts)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
}
