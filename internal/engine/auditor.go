package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pankaj-dahiya-devops/s3audit/internal/audit"
	"github.com/pankaj-dahiya-devops/s3audit/internal/findings"
	"github.com/pankaj-dahiya-devops/s3audit/internal/models"
	awss3 "github.com/pankaj-dahiya-devops/s3audit/internal/providers/aws/s3"
)

// Auditor implements Engine on top of a BucketProber.
type Auditor struct {
	prober awss3.BucketProber
	opts   Options
	log    *zap.Logger
}

// NewAuditor returns an Auditor. Zero Options fields take DefaultConcurrency.
func NewAuditor(prober awss3.BucketProber, opts Options, log *zap.Logger) *Auditor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Auditor{prober: prober, opts: opts.withDefaults(), log: log}
}

// Discover returns explicit unchanged when it is non-empty, otherwise every
// bucket the account owns.
func (a *Auditor) Discover(ctx context.Context, explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}
	buckets, err := a.prober.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover buckets: %w", err)
	}
	a.log.Debug("discovered buckets", zap.Int("count", len(buckets)))
	return buckets, nil
}

// RunReport audits one bucket. Each prober request is issued at most once
// even when several enabled audits depend on it. Any failure aborts the
// bucket and is returned as a *BucketError.
func (a *Auditor) RunReport(ctx context.Context, bucket string, set audit.Set) (*models.Report, error) {
	report := models.NewReport(bucket)
	plan := planFetches(set)
	if len(plan) == 0 {
		return report, nil
	}

	a.log.Debug("auditing bucket", zap.String("bucket", bucket), zap.Int("fetches", len(plan)))

	region, err := a.prober.BucketRegion(ctx, bucket)
	if err != nil {
		return nil, &BucketError{Bucket: bucket, Audit: audit.All, Err: err}
	}
	report.Region = region

	var table fetchTable
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.FetchConcurrency)
	for _, f := range plan {
		f := f
		g.Go(func() error {
			if err := a.fetch(gctx, bucket, f.kind, &table); err != nil {
				return &BucketError{Bucket: bucket, Audit: f.owner, Err: err}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := classify(report, set, &table); err != nil {
		return nil, err
	}
	a.log.Debug("bucket audited", zap.String("bucket", bucket), zap.Int("findings", report.Len()))
	return report, nil
}

// fetch issues one prober request and stores the raw result in t. Typed
// absence is folded into a nil result here.
func (a *Auditor) fetch(ctx context.Context, bucket string, kind fetchKind, t *fetchTable) error {
	var err error
	switch kind {
	case fetchACL:
		t.grants, err = a.prober.FetchACL(ctx, bucket)
	case fetchEncryption:
		t.encryption, err = a.prober.FetchEncryption(ctx, bucket)
	case fetchVersioning:
		t.versioning, err = a.prober.FetchVersioning(ctx, bucket)
	case fetchWebsite:
		t.website, err = a.prober.FetchWebsite(ctx, bucket)
	case fetchLogging:
		t.logging, err = a.prober.FetchLogging(ctx, bucket)
	case fetchPublicAccessBlock:
		t.pab, err = a.prober.FetchPublicAccessBlock(ctx, bucket)
	case fetchPolicy:
		t.policy, err = a.prober.FetchPolicy(ctx, bucket)
	}
	if errors.Is(err, awss3.ErrNotConfigured) {
		return nil
	}
	return err
}

// classify fills one slot per enabled audit from the fetched table.
func classify(report *models.Report, set audit.Set, t *fetchTable) error {
	var (
		policy     findings.Policy
		policyDone bool
	)
	for _, a := range set.Enabled() {
		switch a {
		case audit.Acl:
			report.Set(a, findings.ClassifyACL(t.grants))
		case audit.ServerSideEncryption:
			report.Set(a, findings.ClassifyEncryption(t.encryption))
		case audit.Versioning, audit.MfaDelete:
			report.Set(a, findings.ClassifyVersioning(t.versioning))
		case audit.Website:
			report.Set(a, findings.ClassifyWebsite(t.website))
		case audit.Logging:
			report.Set(a, findings.ClassifyLogging(t.logging))
		case audit.PublicAccessBlocks:
			report.Set(a, findings.ClassifyPublicAccessBlock(t.pab))
		case audit.Policy, audit.Cloudfront:
			if !policyDone {
				p, err := findings.ClassifyPolicy(t.policy)
				if err != nil {
					return &BucketError{Bucket: report.Name, Audit: a, Err: err}
				}
				policy, policyDone = p, true
			}
			report.Set(a, policy)
		}
	}
	return nil
}

// RunAll audits buckets with at most BucketConcurrency in flight. A failing
// bucket is recorded in Result.Failures and does not affect the others. When
// ctx is cancelled no further buckets are started, running ones finish, and
// ctx.Err() is returned alongside the partial Result.
func (a *Auditor) RunAll(ctx context.Context, buckets []string, set audit.Set) (*Result, error) {
	reports := make([]*models.Report, len(buckets))
	errs := make([]error, len(buckets))
	started := make([]bool, len(buckets))

	var g errgroup.Group
	g.SetLimit(a.opts.BucketConcurrency)
	for i, bucket := range buckets {
		if ctx.Err() != nil {
			break
		}
		started[i] = true
		i, bucket := i, bucket
		g.Go(func() error {
			// The slot may have been granted after cancellation.
			if ctx.Err() != nil {
				started[i] = false
				return nil
			}
			reports[i], errs[i] = a.RunReport(ctx, bucket, set)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{}
	for i, bucket := range buckets {
		switch {
		case !started[i]:
			res.Skipped = append(res.Skipped, bucket)
		case errs[i] != nil:
			res.Failures = append(res.Failures, asBucketError(bucket, errs[i]))
			a.log.Warn("bucket audit failed", zap.String("bucket", bucket), zap.Error(errs[i]))
		default:
			res.Reports = append(res.Reports, reports[i])
		}
	}
	return res, ctx.Err()
}

func asBucketError(bucket string, err error) *BucketError {
	var be *BucketError
	if errors.As(err, &be) {
		return be
	}
	return &BucketError{Bucket: bucket, Audit: audit.All, Err: err}
}
