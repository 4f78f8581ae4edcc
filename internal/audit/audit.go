// Package audit defines the bucket audit categories a run can enable or
// disable, and the selection set the orchestrator consumes.
package audit

import (
	"fmt"
	"strings"
)

// Audit identifies one category of bucket check.
type Audit int

const (
	Acl Audit = iota
	Cloudfront
	Logging
	MfaDelete
	Policy
	PublicAccessBlocks
	ServerSideEncryption
	Versioning
	Website

	// All is a control token for Set.Enable and Set.Disable. It is never a
	// member of a Set.
	All
)

// names holds the canonical spelling of each audit, indexed by value.
var names = [...]string{
	Acl:                  "acl",
	Cloudfront:           "cloudfront",
	Logging:              "logging",
	MfaDelete:            "mfa-delete",
	Policy:               "policy",
	PublicAccessBlocks:   "public-access-blocks",
	ServerSideEncryption: "server-side-encryption",
	Versioning:           "versioning",
	Website:              "website",
	All:                  "all",
}

// lookup maps every accepted spelling, aliases included, to its audit.
var lookup = map[string]Audit{
	"acl":                    Acl,
	"all":                    All,
	"cloudfront":             Cloudfront,
	"logging":                Logging,
	"policy":                 Policy,
	"public-access-blocks":   PublicAccessBlocks,
	"versioning":             Versioning,
	"website":                Website,
	"encryption":             ServerSideEncryption,
	"server-side-encryption": ServerSideEncryption,
	"sse":                    ServerSideEncryption,
	"mfa":                    MfaDelete,
	"mfa-delete":             MfaDelete,
}

// String returns the canonical name of a.
func (a Audit) String() string {
	if a < 0 || int(a) >= len(names) {
		return fmt.Sprintf("audit(%d)", int(a))
	}
	return names[a]
}

// Parse converts a user-supplied audit name to an Audit. Matching is
// case-insensitive and surrounding whitespace is ignored.
func Parse(s string) (Audit, error) {
	a, ok := lookup[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown audit %q; valid values: %s", s, strings.Join(validNames(), ", "))
	}
	return a, nil
}

// ParseList parses every entry of names. A nil or empty input yields nil so
// that Set.Enable and Set.Disable treat it as "nothing requested".
func ParseList(names []string) ([]Audit, error) {
	if len(names) == 0 {
		return nil, nil
	}
	audits := make([]Audit, 0, len(names))
	for _, n := range names {
		a, err := Parse(n)
		if err != nil {
			return nil, err
		}
		audits = append(audits, a)
	}
	return audits, nil
}

// Concrete returns every storable audit (everything except All) in
// declaration order.
func Concrete() []Audit {
	out := make([]Audit, 0, int(All))
	for a := Acl; a < All; a++ {
		out = append(out, a)
	}
	return out
}

func validNames() []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, n)
	}
	return out
}
