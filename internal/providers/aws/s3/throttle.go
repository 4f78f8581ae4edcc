package awss3

import (
	"context"

	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/time/rate"
)

// ThrottledProber waits on a shared token bucket before every call to the
// wrapped BucketProber, capping the request rate of a whole run.
type ThrottledProber struct {
	next    BucketProber
	limiter *rate.Limiter
}

// NewThrottledProber wraps next. A nil limiter disables throttling.
func NewThrottledProber(next BucketProber, limiter *rate.Limiter) *ThrottledProber {
	return &ThrottledProber{next: next, limiter: limiter}
}

func (t *ThrottledProber) wait(ctx context.Context) error {
	if t.limiter == nil {
		return ctx.Err()
	}
	return t.limiter.Wait(ctx)
}

func (t *ThrottledProber) ListBuckets(ctx context.Context) ([]string, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.ListBuckets(ctx)
}

func (t *ThrottledProber) BucketRegion(ctx context.Context, bucket string) (string, error) {
	if err := t.wait(ctx); err != nil {
		return "", err
	}
	return t.next.BucketRegion(ctx, bucket)
}

func (t *ThrottledProber) FetchACL(ctx context.Context, bucket string) ([]types.Grant, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.FetchACL(ctx, bucket)
}

func (t *ThrottledProber) FetchEncryption(ctx context.Context, bucket string) (*types.ServerSideEncryptionConfiguration, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.FetchEncryption(ctx, bucket)
}

func (t *ThrottledProber) FetchVersioning(ctx context.Context, bucket string) (*s3svc.GetBucketVersioningOutput, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.FetchVersioning(ctx, bucket)
}

func (t *ThrottledProber) FetchWebsite(ctx context.Context, bucket string) (*s3svc.GetBucketWebsiteOutput, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.FetchWebsite(ctx, bucket)
}

func (t *ThrottledProber) FetchLogging(ctx context.Context, bucket string) (*types.LoggingEnabled, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.FetchLogging(ctx, bucket)
}

func (t *ThrottledProber) FetchPublicAccessBlock(ctx context.Context, bucket string) (*types.PublicAccessBlockConfiguration, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.FetchPublicAccessBlock(ctx, bucket)
}

func (t *ThrottledProber) FetchPolicy(ctx context.Context, bucket string) (*string, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.FetchPolicy(ctx, bucket)
}
