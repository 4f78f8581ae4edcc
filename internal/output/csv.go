package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/pankaj-dahiya-devops/s3audit/internal/findings"
	"github.com/pankaj-dahiya-devops/s3audit/internal/models"
)

// column is one CSV column. cell reports false when the owning slot is
// unpopulated.
type column struct {
	name string
	cell func(r *models.Report) (string, bool)
}

// columns is the full column list in output order.
var columns = []column{
	{"name", func(r *models.Report) (string, bool) { return r.Name, true }},
	{"acl", func(r *models.Report) (string, bool) {
		v, ok := r.ACL()
		return v.String(), ok
	}},
	{"block_public_acls", func(r *models.Report) (string, bool) {
		v, ok := r.PublicAccessBlock()
		return strconv.FormatBool(v.BlockPublicAcls), ok
	}},
	{"block_public_policy", func(r *models.Report) (string, bool) {
		v, ok := r.PublicAccessBlock()
		return strconv.FormatBool(v.BlockPublicPolicy), ok
	}},
	{"cloudfront_distributions", func(r *models.Report) (string, bool) {
		v, ok := r.CloudFront()
		return strconv.Itoa(v.CloudFrontDistributions()), ok
	}},
	{"encryption", func(r *models.Report) (string, bool) {
		v, ok := r.Encryption()
		return v.String(), ok
	}},
	{"ignore_public_acls", func(r *models.Report) (string, bool) {
		v, ok := r.PublicAccessBlock()
		return strconv.FormatBool(v.IgnorePublicAcls), ok
	}},
	{"logging", func(r *models.Report) (string, bool) {
		v, ok := r.Logging()
		return strconv.FormatBool(v.Enabled), ok
	}},
	{"logging_target_bucket", func(r *models.Report) (string, bool) {
		v, ok := r.Logging()
		return v.TargetBucket, ok
	}},
	{"mfa_delete", func(r *models.Report) (string, bool) {
		v, ok := r.MFADelete()
		return strconv.FormatBool(v.MFADelete == findings.MFADeleteEnabled), ok
	}},
	{"policy_wildcard_principals", func(r *models.Report) (string, bool) {
		v, ok := r.Policy()
		return strconv.FormatBool(v.Wildcards() > 0), ok
	}},
	{"restrict_public_buckets", func(r *models.Report) (string, bool) {
		v, ok := r.PublicAccessBlock()
		return strconv.FormatBool(v.RestrictPublicBuckets), ok
	}},
	{"versioning", func(r *models.Report) (string, bool) {
		v, ok := r.Versioning()
		return strconv.FormatBool(v.Status == findings.VersioningEnabled), ok
	}},
	{"website", func(r *models.Report) (string, bool) {
		v, ok := r.Website()
		return strconv.FormatBool(v == findings.WebsiteEnabled), ok
	}},
}

// CSVWriter writes reports as CSV rows under a single header. Every row has
// every column; a slot the report lacks is written as an empty cell.
// CSVWriter is safe for concurrent use.
type CSVWriter struct {
	mu    sync.Mutex
	w     *csv.Writer
	wrote bool
}

// NewCSVWriter returns a CSVWriter on w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// Header returns the column names in output order.
func Header() []string {
	out := make([]string, len(columns))
	for i, col := range columns {
		out[i] = col.name
	}
	return out
}

// Write writes the header on first use, then one row for r.
func (c *CSVWriter) Write(r *models.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writeHeader(); err != nil {
		return err
	}

	row := make([]string, len(columns))
	for i, col := range columns {
		if v, ok := col.cell(r); ok {
			row[i] = v
		}
	}
	if err := c.w.Write(row); err != nil {
		return fmt.Errorf("write CSV row for %s: %w", r.Name, err)
	}
	return nil
}

// Flush writes the header if no row was written yet, then flushes buffered
// output to the underlying writer.
func (c *CSVWriter) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.writeHeader(); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *CSVWriter) writeHeader() error {
	if c.wrote {
		return nil
	}
	if err := c.w.Write(Header()); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	c.wrote = true
	return nil
}
