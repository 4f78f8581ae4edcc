package findings

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// PublicAccessBlock holds the four bucket-level Block Public Access switches.
// The zero value is what a bucket without any configuration reports.
type PublicAccessBlock struct {
	BlockPublicAcls       bool
	BlockPublicPolicy     bool
	IgnorePublicAcls      bool
	RestrictPublicBuckets bool
}

// Setting is one named switch of a PublicAccessBlock.
type Setting struct {
	Name    string
	Enabled bool
}

// Settings returns the four switches in their fixed display order.
func (p PublicAccessBlock) Settings() []Setting {
	return []Setting{
		{Name: "BlockPublicAcls", Enabled: p.BlockPublicAcls},
		{Name: "BlockPublicPolicy", Enabled: p.BlockPublicPolicy},
		{Name: "IgnorePublicAcls", Enabled: p.IgnorePublicAcls},
		{Name: "RestrictPublicBuckets", Enabled: p.RestrictPublicBuckets},
	}
}

// ClassifyPublicAccessBlock maps a PublicAccessBlockConfiguration. A nil
// configuration or nil field is false.
func ClassifyPublicAccessBlock(cfg *types.PublicAccessBlockConfiguration) PublicAccessBlock {
	if cfg == nil {
		return PublicAccessBlock{}
	}
	return PublicAccessBlock{
		BlockPublicAcls:       aws.ToBool(cfg.BlockPublicAcls),
		BlockPublicPolicy:     aws.ToBool(cfg.BlockPublicPolicy),
		IgnorePublicAcls:      aws.ToBool(cfg.IgnorePublicAcls),
		RestrictPublicBuckets: aws.ToBool(cfg.RestrictPublicBuckets),
	}
}
