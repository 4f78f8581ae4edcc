// Package awss3 fetches raw bucket configuration from Amazon S3. It reports
// "nothing configured" as a typed absence instead of an error so callers can
// tell a disabled feature apart from a failed request.
package awss3

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/s3audit/internal/providers/aws/common"
)

// ErrNotConfigured is returned when a bucket has no configuration of the
// requested kind.
var ErrNotConfigured = errors.New("not configured")

// Error codes S3 uses to say a configuration does not exist.
const (
	codeNoEncryption        = "ServerSideEncryptionConfigurationNotFoundError"
	codeNoPublicAccessBlock = "NoSuchPublicAccessBlockConfiguration"
	codeNoBucketPolicy      = "NoSuchBucketPolicy"
)

// BucketProber retrieves the raw configuration an audit needs. Every method
// is safe for concurrent use.
type BucketProber interface {
	ListBuckets(ctx context.Context) ([]string, error)
	BucketRegion(ctx context.Context, bucket string) (string, error)

	FetchACL(ctx context.Context, bucket string) ([]types.Grant, error)
	// FetchEncryption returns ErrNotConfigured when no default encryption is set.
	FetchEncryption(ctx context.Context, bucket string) (*types.ServerSideEncryptionConfiguration, error)
	FetchVersioning(ctx context.Context, bucket string) (*s3svc.GetBucketVersioningOutput, error)
	// FetchWebsite returns ErrNotConfigured for any S3 error response: S3
	// signals "no website" by failing the request.
	FetchWebsite(ctx context.Context, bucket string) (*s3svc.GetBucketWebsiteOutput, error)
	// FetchLogging returns nil when access logging is off.
	FetchLogging(ctx context.Context, bucket string) (*types.LoggingEnabled, error)
	// FetchPublicAccessBlock returns nil when the bucket has no configuration.
	FetchPublicAccessBlock(ctx context.Context, bucket string) (*types.PublicAccessBlockConfiguration, error)
	// FetchPolicy returns nil when the bucket has no policy.
	FetchPolicy(ctx context.Context, bucket string) (*string, error)
}

// DefaultBucketProber is the production BucketProber. Each bucket's home
// region is looked up once with GetBucketLocation and every later request
// for that bucket goes through a client scoped to that region.
type DefaultBucketProber struct {
	provider common.AWSClientProvider
	profile  *common.ProfileConfig
	factory  s3ClientFactory
	log      *zap.Logger

	mu      sync.Mutex
	home    s3APIClient
	regions map[string]string
	clients map[string]s3APIClient
}

// NewDefaultBucketProber returns a DefaultBucketProber wired to production
// AWS SDK clients.
func NewDefaultBucketProber(provider common.AWSClientProvider, profile *common.ProfileConfig, log *zap.Logger) *DefaultBucketProber {
	return NewDefaultBucketProberWithFactory(provider, profile, newDefaultS3Client, log)
}

// NewDefaultBucketProberWithFactory returns a DefaultBucketProber that uses
// the supplied factory, allowing tests to inject fake clients.
func NewDefaultBucketProberWithFactory(
	provider common.AWSClientProvider,
	profile *common.ProfileConfig,
	f s3ClientFactory,
	log *zap.Logger,
) *DefaultBucketProber {
	if log == nil {
		log = zap.NewNop()
	}
	return &DefaultBucketProber{
		provider: provider,
		profile:  profile,
		factory:  f,
		log:      log,
		regions:  make(map[string]string),
		clients:  make(map[string]s3APIClient),
	}
}

// ListBuckets returns the names of every bucket owned by the account.
func (p *DefaultBucketProber) ListBuckets(ctx context.Context) ([]string, error) {
	var names []string
	pager := s3svc.NewListBucketsPaginator(p.homeClient(), &s3svc.ListBucketsInput{})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list S3 buckets: %w", err)
		}
		for _, b := range page.Buckets {
			names = append(names, aws.ToString(b.Name))
		}
	}
	return names, nil
}

// BucketRegion returns the bucket's home region, asking S3 at most once per
// bucket.
func (p *DefaultBucketProber) BucketRegion(ctx context.Context, bucket string) (string, error) {
	p.mu.Lock()
	region, ok := p.regions[bucket]
	p.mu.Unlock()
	if ok {
		return region, nil
	}

	out, err := p.homeClient().GetBucketLocation(ctx, &s3svc.GetBucketLocationInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return "", fmt.Errorf("get location of bucket %s: %w", bucket, err)
	}
	region = normalizeLocation(out.LocationConstraint)

	p.mu.Lock()
	p.regions[bucket] = region
	p.mu.Unlock()
	p.log.Debug("resolved bucket region", zap.String("bucket", bucket), zap.String("region", region))
	return region, nil
}

func (p *DefaultBucketProber) FetchACL(ctx context.Context, bucket string) ([]types.Grant, error) {
	client, err := p.clientFor(ctx, bucket)
	if err != nil {
		return nil, err
	}
	out, err := client.GetBucketAcl(ctx, &s3svc.GetBucketAclInput{Bucket: aws.String(bucket)})
	if err != nil {
		return nil, fmt.Errorf("get ACL of bucket %s: %w", bucket, err)
	}
	return out.Grants, nil
}

func (p *DefaultBucketProber) FetchEncryption(ctx context.Context, bucket string) (*types.ServerSideEncryptionConfiguration, error) {
	client, err := p.clientFor(ctx, bucket)
	if err != nil {
		return nil, err
	}
	out, err := client.GetBucketEncryption(ctx, &s3svc.GetBucketEncryptionInput{Bucket: aws.String(bucket)})
	if err != nil {
		if hasErrorCode(err, codeNoEncryption) {
			p.logAbsent(bucket, "encryption")
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("get encryption of bucket %s: %w", bucket, err)
	}
	return out.ServerSideEncryptionConfiguration, nil
}

func (p *DefaultBucketProber) FetchVersioning(ctx context.Context, bucket string) (*s3svc.GetBucketVersioningOutput, error) {
	client, err := p.clientFor(ctx, bucket)
	if err != nil {
		return nil, err
	}
	out, err := client.GetBucketVersioning(ctx, &s3svc.GetBucketVersioningInput{Bucket: aws.String(bucket)})
	if err != nil {
		return nil, fmt.Errorf("get versioning of bucket %s: %w", bucket, err)
	}
	return out, nil
}

func (p *DefaultBucketProber) FetchWebsite(ctx context.Context, bucket string) (*s3svc.GetBucketWebsiteOutput, error) {
	client, err := p.clientFor(ctx, bucket)
	if err != nil {
		return nil, err
	}
	out, err := client.GetBucketWebsite(ctx, &s3svc.GetBucketWebsiteInput{Bucket: aws.String(bucket)})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			p.log.Debug("website request failed, treating as not configured",
				zap.String("bucket", bucket), zap.String("code", apiErr.ErrorCode()))
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("get website of bucket %s: %w", bucket, err)
	}
	return out, nil
}

func (p *DefaultBucketProber) FetchLogging(ctx context.Context, bucket string) (*types.LoggingEnabled, error) {
	client, err := p.clientFor(ctx, bucket)
	if err != nil {
		return nil, err
	}
	out, err := client.GetBucketLogging(ctx, &s3svc.GetBucketLoggingInput{Bucket: aws.String(bucket)})
	if err != nil {
		return nil, fmt.Errorf("get logging of bucket %s: %w", bucket, err)
	}
	return out.LoggingEnabled, nil
}

func (p *DefaultBucketProber) FetchPublicAccessBlock(ctx context.Context, bucket string) (*types.PublicAccessBlockConfiguration, error) {
	client, err := p.clientFor(ctx, bucket)
	if err != nil {
		return nil, err
	}
	out, err := client.GetPublicAccessBlock(ctx, &s3svc.GetPublicAccessBlockInput{Bucket: aws.String(bucket)})
	if err != nil {
		if hasErrorCode(err, codeNoPublicAccessBlock) {
			p.logAbsent(bucket, "public access block")
			return nil, nil
		}
		return nil, fmt.Errorf("get public access block of bucket %s: %w", bucket, err)
	}
	return out.PublicAccessBlockConfiguration, nil
}

func (p *DefaultBucketProber) FetchPolicy(ctx context.Context, bucket string) (*string, error) {
	client, err := p.clientFor(ctx, bucket)
	if err != nil {
		return nil, err
	}
	out, err := client.GetBucketPolicy(ctx, &s3svc.GetBucketPolicyInput{Bucket: aws.String(bucket)})
	if err != nil {
		if hasErrorCode(err, codeNoBucketPolicy) {
			p.logAbsent(bucket, "policy")
			return nil, nil
		}
		return nil, fmt.Errorf("get policy of bucket %s: %w", bucket, err)
	}
	return out.Policy, nil
}

// homeClient returns the client for the profile's home region, creating it
// on first use.
func (p *DefaultBucketProber) homeClient() s3APIClient {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.home == nil {
		p.home = p.factory(p.profile.Config)
	}
	return p.home
}

// clientFor returns a client scoped to the bucket's home region.
func (p *DefaultBucketProber) clientFor(ctx context.Context, bucket string) (s3APIClient, error) {
	region, err := p.BucketRegion(ctx, bucket)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[region]; ok {
		return c, nil
	}
	c := p.factory(p.provider.ConfigForRegion(p.profile, region))
	p.clients[region] = c
	return c, nil
}

func (p *DefaultBucketProber) logAbsent(bucket, what string) {
	p.log.Debug("configuration absent", zap.String("bucket", bucket), zap.String("kind", what))
}

// normalizeLocation maps a GetBucketLocation constraint to a region name.
// S3 reports us-east-1 as an empty constraint and the legacy "EU" alias for
// eu-west-1.
func normalizeLocation(c types.BucketLocationConstraint) string {
	switch c {
	case "":
		return common.DefaultRegion
	case types.BucketLocationConstraintEu:
		return "eu-west-1"
	default:
		return string(c)
	}
}

func hasErrorCode(err error, code string) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == code
}
