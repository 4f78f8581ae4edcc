// Package findings classifies raw S3 bucket configuration into closed,
// typed findings. Classifiers are pure: they never perform I/O and treat a
// missing sub-field as the safe or disabled variant, not as an error.
package findings

// Finding is implemented only by the finding types of this package.
type Finding interface {
	finding()
}

func (ACL) finding()               {}
func (Encryption) finding()        {}
func (Versioning) finding()        {}
func (Website) finding()           {}
func (Logging) finding()           {}
func (PublicAccessBlock) finding() {}
func (Policy) finding()            {}
