package findings

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Grantee group URIs that make a bucket public when granted anything.
const (
	AllUsersURI           = "http://acs.amazonaws.com/groups/global/AllUsers"
	AuthenticatedUsersURI = "http://acs.amazonaws.com/groups/global/AuthenticatedUsers"
)

// ACL is the bucket ACL classification.
type ACL int

const (
	ACLPrivate ACL = iota
	ACLPublic
)

func (a ACL) String() string {
	if a == ACLPublic {
		return "public"
	}
	return "private"
}

// ClassifyACL reports Public when any grant targets the "Everyone" or
// "Any authenticated AWS user" group. No grants at all is Private.
func ClassifyACL(grants []types.Grant) ACL {
	for _, g := range grants {
		if g.Grantee == nil {
			continue
		}
		switch aws.ToString(g.Grantee.URI) {
		case AllUsersURI, AuthenticatedUsersURI:
			return ACLPublic
		}
	}
	return ACLPrivate
}
