package engine

import (
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/pankaj-dahiya-devops/s3audit/internal/audit"
)

// fetchKind is one prober request. Several audits can share a kind.
type fetchKind int

const (
	fetchACL fetchKind = iota
	fetchEncryption
	fetchVersioning
	fetchWebsite
	fetchLogging
	fetchPublicAccessBlock
	fetchPolicy
)

func fetchFor(a audit.Audit) fetchKind {
	switch a {
	case audit.Acl:
		return fetchACL
	case audit.ServerSideEncryption:
		return fetchEncryption
	case audit.Versioning, audit.MfaDelete:
		return fetchVersioning
	case audit.Website:
		return fetchWebsite
	case audit.Logging:
		return fetchLogging
	case audit.PublicAccessBlocks:
		return fetchPublicAccessBlock
	default: // Policy, Cloudfront
		return fetchPolicy
	}
}

// plannedFetch is one fetch to issue and the first audit that asked for it,
// used to attribute a failure.
type plannedFetch struct {
	kind  fetchKind
	owner audit.Audit
}

// planFetches returns each fetch kind needed by set exactly once, in audit
// declaration order.
func planFetches(set audit.Set) []plannedFetch {
	seen := make(map[fetchKind]bool)
	var plan []plannedFetch
	for _, a := range set.Enabled() {
		k := fetchFor(a)
		if seen[k] {
			continue
		}
		seen[k] = true
		plan = append(plan, plannedFetch{kind: k, owner: a})
	}
	return plan
}

// fetchTable holds the raw responses for one bucket. Each fetch goroutine
// writes only its own field.
type fetchTable struct {
	grants     []types.Grant
	encryption *types.ServerSideEncryptionConfiguration
	versioning *s3svc.GetBucketVersioningOutput
	website    *s3svc.GetBucketWebsiteOutput
	logging    *types.LoggingEnabled
	pab        *types.PublicAccessBlockConfiguration
	policy     *string
}
