package awss3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3APIClient is the narrow S3 interface used by the prober. It embeds
// ListBucketsAPIClient so the SDK paginator can be used directly.
type s3APIClient interface {
	s3svc.ListBucketsAPIClient
	GetBucketLocation(ctx context.Context, params *s3svc.GetBucketLocationInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketLocationOutput, error)
	GetBucketAcl(ctx context.Context, params *s3svc.GetBucketAclInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketAclOutput, error)
	GetBucketEncryption(ctx context.Context, params *s3svc.GetBucketEncryptionInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketEncryptionOutput, error)
	GetBucketVersioning(ctx context.Context, params *s3svc.GetBucketVersioningInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketVersioningOutput, error)
	GetBucketWebsite(ctx context.Context, params *s3svc.GetBucketWebsiteInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketWebsiteOutput, error)
	GetBucketLogging(ctx context.Context, params *s3svc.GetBucketLoggingInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketLoggingOutput, error)
	GetPublicAccessBlock(ctx context.Context, params *s3svc.GetPublicAccessBlockInput, optFns ...func(*s3svc.Options)) (*s3svc.GetPublicAccessBlockOutput, error)
	GetBucketPolicy(ctx context.Context, params *s3svc.GetBucketPolicyInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketPolicyOutput, error)
}

// s3ClientFactory creates an S3 client from an AWS config.
// Injection point: tests replace this with a function returning fake clients.
type s3ClientFactory func(cfg aws.Config) s3APIClient

// newDefaultS3Client creates a production S3 client from the given config.
func newDefaultS3Client(cfg aws.Config) s3APIClient {
	return s3svc.NewFromConfig(cfg)
}
