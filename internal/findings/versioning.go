package findings

import (
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// VersioningStatus is the object versioning state. A bucket that never had
// versioning enabled reports no status and is treated as Suspended.
type VersioningStatus int

const (
	VersioningSuspended VersioningStatus = iota
	VersioningEnabled
)

// MFADeleteStatus is the MFA Delete state.
type MFADeleteStatus int

const (
	MFADeleteDisabled MFADeleteStatus = iota
	MFADeleteEnabled
)

// Versioning holds both values returned by one GetBucketVersioning call.
type Versioning struct {
	Status    VersioningStatus
	MFADelete MFADeleteStatus
}

// ClassifyVersioning maps a GetBucketVersioning response. Missing fields
// (and a nil response) map to Suspended / Disabled.
func ClassifyVersioning(out *s3.GetBucketVersioningOutput) Versioning {
	var v Versioning
	if out == nil {
		return v
	}
	if out.Status == types.BucketVersioningStatusEnabled {
		v.Status = VersioningEnabled
	}
	if out.MFADelete == types.MFADeleteStatusEnabled {
		v.MFADelete = MFADeleteEnabled
	}
	return v
}
