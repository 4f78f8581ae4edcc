package models

import (
	"github.com/pankaj-dahiya-devops/s3audit/internal/audit"
	"github.com/pankaj-dahiya-devops/s3audit/internal/findings"
)

// Report is the audit result for one bucket. It is sparse: a slot is
// populated if and only if its audit ran. Renderers must not invent values
// for missing slots.
//
// Versioning and MfaDelete hold the same findings.Versioning value, and
// Policy and Cloudfront the same findings.Policy value, because each pair is
// answered by a single fetch.
type Report struct {
	Name string `json:"name"`
	// Region is the bucket's home region as resolved by the prober. Empty
	// when no audit needed a regional fetch.
	Region string `json:"region,omitempty"`

	slots map[audit.Audit]findings.Finding
}

// NewReport returns an empty report for bucket name.
func NewReport(name string) *Report {
	return &Report{Name: name, slots: make(map[audit.Audit]findings.Finding)}
}

// Set stores f in the slot for a. Setting audit.All is ignored.
func (r *Report) Set(a audit.Audit, f findings.Finding) {
	if a == audit.All {
		return
	}
	if r.slots == nil {
		r.slots = make(map[audit.Audit]findings.Finding)
	}
	r.slots[a] = f
}

// Finding returns the raw slot for a.
func (r *Report) Finding(a audit.Audit) (findings.Finding, bool) {
	f, ok := r.slots[a]
	return f, ok
}

// Audits lists the populated slots in declaration order.
func (r *Report) Audits() []audit.Audit {
	var out []audit.Audit
	for _, a := range audit.Concrete() {
		if _, ok := r.slots[a]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Len is the number of populated slots.
func (r *Report) Len() int { return len(r.slots) }

func (r *Report) ACL() (findings.ACL, bool) {
	return slot[findings.ACL](r, audit.Acl)
}

func (r *Report) Encryption() (findings.Encryption, bool) {
	return slot[findings.Encryption](r, audit.ServerSideEncryption)
}

func (r *Report) Versioning() (findings.Versioning, bool) {
	return slot[findings.Versioning](r, audit.Versioning)
}

// MFADelete returns the versioning value stored under the MfaDelete slot.
func (r *Report) MFADelete() (findings.Versioning, bool) {
	return slot[findings.Versioning](r, audit.MfaDelete)
}

func (r *Report) Website() (findings.Website, bool) {
	return slot[findings.Website](r, audit.Website)
}

func (r *Report) Logging() (findings.Logging, bool) {
	return slot[findings.Logging](r, audit.Logging)
}

func (r *Report) PublicAccessBlock() (findings.PublicAccessBlock, bool) {
	return slot[findings.PublicAccessBlock](r, audit.PublicAccessBlocks)
}

// Policy distinguishes three states: ok == false (audit not run),
// Present() == false (no policy), and an analysed policy.
func (r *Report) Policy() (findings.Policy, bool) {
	return slot[findings.Policy](r, audit.Policy)
}

// CloudFront returns the policy value stored under the Cloudfront slot.
func (r *Report) CloudFront() (findings.Policy, bool) {
	return slot[findings.Policy](r, audit.Cloudfront)
}

func slot[T findings.Finding](r *Report, a audit.Audit) (T, bool) {
	var zero T
	f, ok := r.slots[a]
	if !ok {
		return zero, false
	}
	v, ok := f.(T)
	if !ok {
		return zero, false
	}
	return v, true
}
