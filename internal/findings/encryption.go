package findings

import (
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// EncryptionKind classifies default server-side encryption.
type EncryptionKind int

const (
	EncryptionNone EncryptionKind = iota
	// EncryptionDefault is SSE-S3 with the S3-managed AES256 key.
	EncryptionDefault
	EncryptionKMS
	// EncryptionUnknown carries an algorithm name this tool does not know.
	EncryptionUnknown
)

// Encryption is the default server-side encryption finding. Algorithm holds
// the literal algorithm name for EncryptionUnknown.
type Encryption struct {
	Kind      EncryptionKind
	Algorithm string
}

// String returns the value used in CSV output.
func (e Encryption) String() string {
	switch e.Kind {
	case EncryptionDefault:
		return string(types.ServerSideEncryptionAes256)
	case EncryptionKMS:
		return string(types.ServerSideEncryptionAwsKms)
	case EncryptionUnknown:
		return e.Algorithm
	default:
		return "None"
	}
}

// ClassifyEncryption inspects the first rule of the bucket's default
// encryption configuration. A nil configuration, no rules, or a rule without
// a default algorithm are all EncryptionNone.
func ClassifyEncryption(cfg *types.ServerSideEncryptionConfiguration) Encryption {
	if cfg == nil || len(cfg.Rules) == 0 {
		return Encryption{Kind: EncryptionNone}
	}
	def := cfg.Rules[0].ApplyServerSideEncryptionByDefault
	if def == nil || def.SSEAlgorithm == "" {
		return Encryption{Kind: EncryptionNone}
	}

	switch def.SSEAlgorithm {
	case types.ServerSideEncryptionAes256:
		return Encryption{Kind: EncryptionDefault}
	case types.ServerSideEncryptionAwsKms:
		return Encryption{Kind: EncryptionKMS}
	default:
		return Encryption{Kind: EncryptionUnknown, Algorithm: string(def.SSEAlgorithm)}
	}
}
