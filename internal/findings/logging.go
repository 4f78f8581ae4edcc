package findings

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Logging is the server access logging finding.
type Logging struct {
	Enabled      bool
	TargetBucket string
}

// ClassifyLogging maps the LoggingEnabled block of GetBucketLogging. A nil
// block means logging is off.
func ClassifyLogging(le *types.LoggingEnabled) Logging {
	if le == nil {
		return Logging{}
	}
	return Logging{Enabled: true, TargetBucket: aws.ToString(le.TargetBucket)}
}
