package output

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/pankaj-dahiya-devops/s3audit/internal/findings"
	"github.com/pankaj-dahiya-devops/s3audit/internal/models"
)

// Line marks.
const (
	markArrow = "❯"
	markCross = "✖"
	markInfo  = "🛈"
	markTick  = "✔"
	markWarn  = "⚠"
)

// TextOptions controls text rendering.
type TextOptions struct {
	// Colored wraps marks and the bucket name with ANSI codes. Default false
	// (CI-safe).
	Colored bool
}

// palette holds one color.Color per mark. Colors are forced on or off per
// palette so the global color.NoColor setting never leaks into the output.
type palette struct {
	arrow, cross, info, tick, warn, name *color.Color
}

func newPalette(colored bool) palette {
	p := palette{
		arrow: color.New(color.FgYellow),
		cross: color.New(color.FgRed),
		info:  color.New(color.FgCyan),
		tick:  color.New(color.FgGreen),
		warn:  color.New(color.FgCyan),
		name:  color.New(color.Bold, color.FgBlue),
	}
	for _, c := range []*color.Color{p.arrow, p.cross, p.info, p.tick, p.warn, p.name} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) mark(ok bool) string {
	if ok {
		return p.tick.Sprint(markTick)
	}
	return p.cross.Sprint(markCross)
}

// RenderText writes the human-readable report for r to w. Only populated
// slots are printed.
func RenderText(w io.Writer, r *models.Report, opts TextOptions) {
	p := newPalette(opts.Colored)
	a := p.arrow.Sprint(markArrow)

	fmt.Fprintf(w, "  %s %s\n", a, p.name.Sprint(r.Name))

	if pab, ok := r.PublicAccessBlock(); ok {
		fmt.Fprintf(w, "    %s Bucket public access configuration\n", a)
		for _, s := range pab.Settings() {
			fmt.Fprintf(w, "      %s %s is set to %t\n", p.mark(s.Enabled), s.Name, s.Enabled)
		}
	}

	if enc, ok := r.Encryption(); ok {
		fmt.Fprintf(w, "    %s\n", encryptionLine(p, enc))
	}

	if v, ok := r.Versioning(); ok {
		if v.Status == findings.VersioningEnabled {
			fmt.Fprintf(w, "    %s Object Versioning is enabled\n", p.mark(true))
		} else {
			fmt.Fprintf(w, "    %s Object Versioning is not enabled\n", p.mark(false))
		}
	}
	if v, ok := r.MFADelete(); ok {
		if v.MFADelete == findings.MFADeleteEnabled {
			fmt.Fprintf(w, "    %s MFA Delete is enabled\n", p.mark(true))
		} else {
			fmt.Fprintf(w, "    %s MFA Delete is not enabled\n", p.mark(false))
		}
	}

	if web, ok := r.Website(); ok {
		if web == findings.WebsiteEnabled {
			fmt.Fprintf(w, "    %s Static website hosting is enabled\n", p.warn.Sprint(markWarn))
		} else {
			fmt.Fprintf(w, "    %s Static website hosting is disabled\n", p.mark(true))
		}
	}

	renderPolicy(w, p, r)

	if acl, ok := r.ACL(); ok {
		if acl == findings.ACLPublic {
			fmt.Fprintf(w, "    %s Bucket allows public access via ACL\n", p.warn.Sprint(markWarn))
		} else {
			fmt.Fprintf(w, "    %s Bucket ACL doesn't allow access to 'Everyone' or 'Any authenticated AWS user'\n", p.mark(true))
		}
	}

	if l, ok := r.Logging(); ok {
		if l.Enabled {
			fmt.Fprintf(w, "    %s Logging to %s\n", p.mark(true), l.TargetBucket)
		} else {
			fmt.Fprintf(w, "    %s Logging is not enabled\n", p.mark(false))
		}
	}
}

// RenderTextAll renders every report in order.
func RenderTextAll(w io.Writer, reports []*models.Report, opts TextOptions) {
	for _, r := range reports {
		RenderText(w, r, opts)
	}
}

// renderPolicy prints the wildcard line for the Policy audit and the
// CloudFront line for the Cloudfront audit. "No bucket policy set" is
// printed once when either audit ran against a bucket without a policy.
func renderPolicy(w io.Writer, p palette, r *models.Report) {
	pol, polOK := r.Policy()
	cf, cfOK := r.CloudFront()
	if !polOK && !cfOK {
		return
	}
	if (polOK && !pol.Present()) || (!polOK && !cf.Present()) {
		fmt.Fprintf(w, "    %s No bucket policy set\n", p.info.Sprint(markInfo))
		return
	}

	if polOK {
		n := pol.Wildcards()
		switch n {
		case 0:
			fmt.Fprintf(w, "    %s Bucket policy doesn't allow a wildcard entity\n", p.mark(true))
		case 1:
			fmt.Fprintf(w, "    %s Bucket policy allows 1 wildcard entity\n", p.mark(false))
		default:
			fmt.Fprintf(w, "    %s Bucket policy allows %d wildcard entities\n", p.mark(false), n)
		}
	}
	if cfOK {
		n := cf.CloudFrontDistributions()
		switch n {
		case 0:
			fmt.Fprintf(w, "    %s Bucket is not associated with any CloudFront distributions\n", p.mark(true))
		case 1:
			fmt.Fprintf(w, "    %s Bucket is associated with 1 CloudFront distribution\n", p.mark(false))
		default:
			fmt.Fprintf(w, "    %s Bucket is associated with %d CloudFront distributions\n", p.mark(false), n)
		}
	}
}

func encryptionLine(p palette, enc findings.Encryption) string {
	switch enc.Kind {
	case findings.EncryptionDefault:
		return p.info.Sprint(markInfo) + " Server side encryption enabled using the default AES256 algorithm"
	case findings.EncryptionKMS:
		return p.mark(true) + " Server side encryption enabled using KMS"
	case findings.EncryptionUnknown:
		return p.warn.Sprint(markWarn) + " Server side encryption using unknown algorithm: " + enc.Algorithm
	default:
		return p.mark(false) + " Server side encryption is not enabled"
	}
}
