package engine

import (
	"context"
	"fmt"

	"github.com/pankaj-dahiya-devops/s3audit/internal/audit"
	"github.com/pankaj-dahiya-devops/s3audit/internal/models"
)

// DefaultConcurrency is used for any Options field left at zero.
const DefaultConcurrency = 4

// Options configures an Auditor.
type Options struct {
	// FetchConcurrency bounds the configuration fetches in flight for one
	// bucket.
	FetchConcurrency int

	// BucketConcurrency bounds the buckets audited at once by RunAll.
	BucketConcurrency int
}

func (o Options) withDefaults() Options {
	if o.FetchConcurrency <= 0 {
		o.FetchConcurrency = DefaultConcurrency
	}
	if o.BucketConcurrency <= 0 {
		o.BucketConcurrency = DefaultConcurrency
	}
	return o
}

// Result is the outcome of a multi-bucket run. Reports and Failures are both
// in input order; a bucket appears in at most one of them.
type Result struct {
	Reports  []*models.Report
	Failures []*BucketError

	// Skipped lists buckets that were never started because the run was
	// cancelled.
	Skipped []string
}

// BucketError is a failure that aborted one bucket's report. Other buckets
// are unaffected.
type BucketError struct {
	Bucket string
	// Audit is the audit whose fetch or analysis failed, or audit.All when
	// the failure is not tied to one audit (such as the region lookup).
	Audit audit.Audit
	Err   error
}

func (e *BucketError) Error() string {
	if e.Audit == audit.All {
		return fmt.Sprintf("bucket %s: %v", e.Bucket, e.Err)
	}
	return fmt.Sprintf("bucket %s: %s audit: %v", e.Bucket, e.Audit, e.Err)
}

func (e *BucketError) Unwrap() error { return e.Err }

// Engine is the orchestration interface the CLI drives. The orchestrator
// never talks to AWS directly; all I/O goes through a BucketProber.
type Engine interface {
	Discover(ctx context.Context, explicit []string) ([]string, error)
	RunReport(ctx context.Context, bucket string, set audit.Set) (*models.Report, error)
	RunAll(ctx context.Context, buckets []string, set audit.Set) (*Result, error)
}
