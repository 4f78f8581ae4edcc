package bucketpolicy

import "strings"

const (
	wildcard = "*"

	// CloudFrontOAIPrefix starts every CloudFront Origin Access Identity
	// principal ARN; the identity ID follows the trailing space.
	CloudFrontOAIPrefix = "arn:aws:iam::cloudfront:user/CloudFront Origin Access Identity "
)

// Analysis is the exposure summary of one policy document, accumulated over
// every Allow statement.
type Analysis struct {
	statements         int
	actionWildcards    int
	principalWildcards int
	cloudFront         int
}

// Analyze parses document and scores it. Deny statements never contribute:
// they narrow access, so wildcards inside them are harmless.
func Analyze(document string) (*Analysis, error) {
	doc, err := Parse(document)
	if err != nil {
		return nil, err
	}
	return AnalyzeDocument(doc), nil
}

// AnalyzeDocument scores an already parsed document.
func AnalyzeDocument(doc *Document) *Analysis {
	a := &Analysis{}
	for _, st := range doc.Statement {
		if st.Effect == effectDeny {
			continue
		}
		a.statements++

		// Wildcards can appear anywhere in an action name:
		// "*", "s3:*", "iam:*AccessKey*".
		for _, name := range actionNames(st.Action) {
			if strings.Contains(name, wildcard) {
				a.actionWildcards++
			}
		}

		// Only the literal "*" principal means anyone; an ARN with a "*"
		// inside it is not a valid principal and is not counted.
		for _, arn := range principalARNs(st.Principal) {
			if arn == wildcard {
				a.principalWildcards++
			}
			if strings.HasPrefix(arn, CloudFrontOAIPrefix) {
				a.cloudFront++
			}
		}
	}
	return a
}

// Wildcards is the number of wildcard Actions plus wildcard Principals.
func (a *Analysis) Wildcards() int { return a.actionWildcards + a.principalWildcards }

func (a *Analysis) ActionWildcards() int    { return a.actionWildcards }
func (a *Analysis) PrincipalWildcards() int { return a.principalWildcards }

// CloudFrontDistributions is the number of CloudFront Origin Access
// Identity principals granted access.
func (a *Analysis) CloudFrontDistributions() int { return a.cloudFront }

// Statements is the number of Allow statements that were scored.
func (a *Analysis) Statements() int { return a.statements }
