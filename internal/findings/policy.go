package findings

import (
	"github.com/pankaj-dahiya-devops/s3audit/internal/bucketpolicy"
)

// Policy is the bucket policy finding. Analysis is nil when the bucket has
// no policy, which is distinct from a policy that scores zero.
type Policy struct {
	Analysis *bucketpolicy.Analysis
}

// Present reports whether the bucket has a policy.
func (p Policy) Present() bool { return p.Analysis != nil }

// Wildcards returns the policy's wildcard count, 0 without a policy.
func (p Policy) Wildcards() int {
	if p.Analysis == nil {
		return 0
	}
	return p.Analysis.Wildcards()
}

// CloudFrontDistributions returns the number of OAI principals, 0 without a
// policy.
func (p Policy) CloudFrontDistributions() int {
	if p.Analysis == nil {
		return 0
	}
	return p.Analysis.CloudFrontDistributions()
}

// ClassifyPolicy analyses a GetBucketPolicy document. A nil document means
// the bucket has no policy. An error means the document is malformed.
func ClassifyPolicy(document *string) (Policy, error) {
	if document == nil {
		return Policy{}, nil
	}
	a, err := bucketpolicy.Analyze(*document)
	if err != nil {
		return Policy{}, err
	}
	return Policy{Analysis: a}, nil
}
