package output_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pankaj-dahiya-devops/s3audit/internal/audit"
	"github.com/pankaj-dahiya-devops/s3audit/internal/bucketpolicy"
	"github.com/pankaj-dahiya-devops/s3audit/internal/findings"
	"github.com/pankaj-dahiya-devops/s3audit/internal/models"
	"github.com/pankaj-dahiya-devops/s3audit/internal/output"
)

// ── helpers ───────────────────────────────────────────────────────────────────

func renderText(r *models.Report, colored bool) string {
	var buf bytes.Buffer
	output.RenderText(&buf, r, output.TextOptions{Colored: colored})
	return buf.String()
}

func mustAnalyze(t *testing.T, doc string) *bucketpolicy.Analysis {
	t.Helper()
	a, err := bucketpolicy.Analyze(doc)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	return a
}

// fullReport returns a report with every slot populated.
func fullReport(t *testing.T) *models.Report {
	r := models.NewReport("assets")
	r.Set(audit.Acl, findings.ACLPublic)
	r.Set(audit.ServerSideEncryption, findings.Encryption{Kind: findings.EncryptionDefault})
	v := findings.Versioning{Status: findings.VersioningEnabled, MFADelete: findings.MFADeleteDisabled}
	r.Set(audit.Versioning, v)
	r.Set(audit.MfaDelete, v)
	r.Set(audit.Website, findings.WebsiteEnabled)
	r.Set(audit.Logging, findings.Logging{Enabled: true, TargetBucket: "access-logs"})
	r.Set(audit.PublicAccessBlocks, findings.PublicAccessBlock{BlockPublicAcls: true})
	pol := findings.Policy{Analysis: mustAnalyze(t, `{"Statement":[
		{"Effect":"Allow","Principal":"*","Action":"s3:GetObject"},
		{"Effect":"Allow","Principal":{"AWS":"`+bucketpolicy.CloudFrontOAIPrefix+`E1"},"Action":"s3:*"}
	]}`)}
	r.Set(audit.Policy, pol)
	r.Set(audit.Cloudfront, pol)
	return r
}

// ── layout ────────────────────────────────────────────────────────────────────

func TestRenderText_FullReportOrder(t *testing.T) {
	out := renderText(fullReport(t), false)
	want := strings.Join([]string{
		"  ❯ assets",
		"    ❯ Bucket public access configuration",
		"      ✔ BlockPublicAcls is set to true",
		"      ✖ BlockPublicPolicy is set to false",
		"      ✖ IgnorePublicAcls is set to false",
		"      ✖ RestrictPublicBuckets is set to false",
		"    🛈 Server side encryption enabled using the default AES256 algorithm",
		"    ✔ Object Versioning is enabled",
		"    ✖ MFA Delete is not enabled",
		"    ⚠ Static website hosting is enabled",
		"    ✖ Bucket policy allows 2 wildcard entities",
		"    ✖ Bucket is associated with 1 CloudFront distribution",
		"    ⚠ Bucket allows public access via ACL",
		"    ✔ Logging to access-logs",
	}, "\n") + "\n"
	if out != want {
		t.Errorf("unexpected output\ngot:\n%s\nwant:\n%s", out, want)
	}
}

func TestRenderText_SkipsUnpopulatedSlots(t *testing.T) {
	r := models.NewReport("sparse")
	r.Set(audit.Logging, findings.Logging{})

	out := renderText(r, false)
	want := "  ❯ sparse\n    ✖ Logging is not enabled\n"
	if out != want {
		t.Errorf("got:\n%s\nwant:\n%s", out, want)
	}
}

func TestRenderText_EmptyReportIsHeaderOnly(t *testing.T) {
	out := renderText(models.NewReport("nothing"), false)
	if out != "  ❯ nothing\n" {
		t.Errorf("got %q", out)
	}
}

// ── policy tri-state ──────────────────────────────────────────────────────────

func TestRenderText_NoPolicyPrintedOnce(t *testing.T) {
	r := models.NewReport("b")
	r.Set(audit.Policy, findings.Policy{})
	r.Set(audit.Cloudfront, findings.Policy{})

	out := renderText(r, false)
	if n := strings.Count(out, "No bucket policy set"); n != 1 {
		t.Errorf("want exactly one 'No bucket policy set' line, got %d\n%s", n, out)
	}
}

func TestRenderText_CloudfrontOnly(t *testing.T) {
	r := models.NewReport("b")
	r.Set(audit.Cloudfront, findings.Policy{Analysis: mustAnalyze(t, `{"Statement":[{"Effect":"Allow","Principal":"*","Action":"*"}]}`)})

	out := renderText(r, false)
	if strings.Contains(out, "wildcard") {
		t.Errorf("wildcard line must not appear when the policy audit did not run\n%s", out)
	}
	if !strings.Contains(out, "✔ Bucket is not associated with any CloudFront distributions") {
		t.Errorf("missing CloudFront line\n%s", out)
	}
}

func TestRenderText_CleanPolicy(t *testing.T) {
	r := models.NewReport("b")
	r.Set(audit.Policy, findings.Policy{Analysis: mustAnalyze(t, `{"Statement":[{"Effect":"Deny","Principal":"*","Action":"*"}]}`)})

	out := renderText(r, false)
	if !strings.Contains(out, "✔ Bucket policy doesn't allow a wildcard entity") {
		t.Errorf("got:\n%s", out)
	}
}

func TestRenderText_SingleWildcard(t *testing.T) {
	r := models.NewReport("b")
	r.Set(audit.Policy, findings.Policy{Analysis: mustAnalyze(t, `{"Statement":[{"Effect":"Allow","Action":"s3:*"}]}`)})

	out := renderText(r, false)
	if !strings.Contains(out, "✖ Bucket policy allows 1 wildcard entity\n") {
		t.Errorf("got:\n%s", out)
	}
}

// ── encryption lines ──────────────────────────────────────────────────────────

func TestRenderText_EncryptionVariants(t *testing.T) {
	tests := []struct {
		enc  findings.Encryption
		want string
	}{
		{findings.Encryption{Kind: findings.EncryptionKMS}, "✔ Server side encryption enabled using KMS"},
		{findings.Encryption{Kind: findings.EncryptionNone}, "✖ Server side encryption is not enabled"},
		{findings.Encryption{Kind: findings.EncryptionUnknown, Algorithm: "aws:kms:dsse"}, "⚠ Server side encryption using unknown algorithm: aws:kms:dsse"},
	}
	for _, tc := range tests {
		r := models.NewReport("b")
		r.Set(audit.ServerSideEncryption, tc.enc)
		if out := renderText(r, false); !strings.Contains(out, tc.want) {
			t.Errorf("want %q in output\ngot:\n%s", tc.want, out)
		}
	}
}

// ── colour ────────────────────────────────────────────────────────────────────

func TestRenderText_ColoredAddsANSI(t *testing.T) {
	out := renderText(fullReport(t), true)
	if !strings.Contains(out, "\x1b[") {
		t.Errorf("expected ANSI escape codes when Colored=true\ngot:\n%s", out)
	}
}

func TestRenderText_PlainHasNoANSI(t *testing.T) {
	out := renderText(fullReport(t), false)
	if strings.Contains(out, "\x1b[") {
		t.Errorf("unexpected ANSI escape codes when Colored=false\ngot:\n%s", out)
	}
}

func TestRenderTextAll_KeepsBucketsContiguous(t *testing.T) {
	a := models.NewReport("a")
	a.Set(audit.Acl, findings.ACLPrivate)
	b := models.NewReport("b")
	b.Set(audit.Acl, findings.ACLPrivate)

	var buf bytes.Buffer
	output.RenderTextAll(&buf, []*models.Report{a, b}, output.TextOptions{})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 || lines[0] != "  ❯ a" || lines[2] != "  ❯ b" {
		t.Errorf("unexpected layout:\n%s", buf.String())
	}
}
