// Package bucketpolicy parses S3 bucket policy documents and scores the
// exposure their Allow statements grant: wildcard Actions and Principals,
// and CloudFront Origin Access Identity principals.
//
// It is not an IAM evaluator. Conditions, Resources and NotAction /
// NotPrincipal are ignored.
package bucketpolicy

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrMalformedPolicy is returned when a policy document is not valid JSON,
// has no Statement array, or has a statement without an Effect. S3 only
// stores well-formed documents, so this indicates a broken upstream contract.
var ErrMalformedPolicy = errors.New("malformed bucket policy")

const (
	effectDeny = "Deny"
)

// documentSchema is the minimum shape the analyzer relies on.
const documentSchema = `{
  "type": "object",
  "required": ["Statement"],
  "properties": {
    "Statement": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["Effect"],
        "properties": {
          "Effect": {"type": "string"}
        }
      }
    }
  }
}`

var schema = mustCompileSchema(documentSchema)

func mustCompileSchema(s string) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("compile bucket policy schema: %v", err))
	}
	return compiled
}

// Document is a decoded bucket policy.
type Document struct {
	Version   string      `json:"Version"`
	ID        string      `json:"Id,omitempty"`
	Statement []Statement `json:"Statement"`
}

// Statement is a single policy statement. Action and Principal keep their
// raw decoded shape (string, array or object) and are normalised by
// actionNames and principalARNs.
type Statement struct {
	Sid       string `json:"Sid,omitempty"`
	Effect    string `json:"Effect"`
	Action    any    `json:"Action,omitempty"`
	Principal any    `json:"Principal,omitempty"`
}

// Parse validates and decodes a policy document.
func Parse(document string) (*Document, error) {
	result, err := schema.Validate(gojsonschema.NewStringLoader(document))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPolicy, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformedPolicy, strings.Join(msgs, "; "))
	}

	var doc Document
	if err := json.Unmarshal([]byte(document), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPolicy, err)
	}
	return &doc, nil
}

// actionNames flattens an Action value. A string is one action, an array
// contributes its string elements, anything else contributes nothing.
func actionNames(v any) []string {
	return stringOrList(v)
}

// principalARNs flattens a Principal value.
//
//	"Principal": "*"
//	"Principal": {"AWS": "arn:aws:iam::111122223333:root"}
//	"Principal": {"AWS": ["arn:...", "*"]}
//
// Service, Federated and CanonicalUser principals are not of interest and
// contribute nothing.
func principalARNs(v any) []string {
	switch p := v.(type) {
	case string:
		return []string{p}
	case map[string]any:
		aws, ok := p["AWS"]
		if !ok {
			return nil
		}
		return stringOrList(aws)
	}
	return nil
}

func stringOrList(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
