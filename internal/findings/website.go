package findings

import (
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Website is the static website hosting finding.
type Website int

const (
	WebsiteDisabled Website = iota
	WebsiteEnabled
)

// ClassifyWebsite reports Enabled whenever a website configuration was
// returned. S3 signals "no website" by failing the fetch, which the prober
// turns into a nil response.
func ClassifyWebsite(out *s3.GetBucketWebsiteOutput) Website {
	if out == nil {
		return WebsiteDisabled
	}
	return WebsiteEnabled
}
