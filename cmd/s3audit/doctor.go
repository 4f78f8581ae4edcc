package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/s3audit/internal/config"
	"github.com/pankaj-dahiya-devops/s3audit/internal/providers/aws/common"
)

// errUnhealthy is returned by doctor after the report has been rendered, so
// main exits non-zero without printing anything further of interest.
var errUnhealthy = errors.New("environment is not healthy")

// DoctorResult is the structured output of s3audit doctor. It can be
// serialised to JSON via --format=json or rendered as a table (default).
type DoctorResult struct {
	AWS struct {
		Profile     string   `json:"profile,omitempty"`
		Profiles    []string `json:"known_profiles,omitempty"`
		Credentials bool     `json:"credentials_ok"`
		AccountID   string   `json:"account_id,omitempty"`
		CallerARN   string   `json:"caller_arn,omitempty"`
		S3OK        bool     `json:"s3_ok"`
		Buckets     int      `json:"buckets"`
		Error       string   `json:"error,omitempty"`
	} `json:"aws"`

	Config struct {
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors,omitempty"`
	} `json:"config"`

	OverallHealthy bool `json:"overall_healthy"`
}

func (c *cli) doctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "doctor",
		Short:         "Check credentials, S3 access and configuration",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, _ := cmd.Flags().GetString("format")
			result, err := c.runDoctor(cmd.Context(), cmd.OutOrStdout(), format)
			if err != nil {
				return err
			}
			if !result.OverallHealthy {
				return errUnhealthy
			}
			return nil
		},
	}
	cmd.Flags().String("format", "table", `output format: "table" or "json"`)
	return cmd
}

// runDoctor collects all diagnostic results and renders them to w. The
// returned error covers rendering only; callers inspect OverallHealthy.
func (c *cli) runDoctor(ctx context.Context, w io.Writer, format string) (DoctorResult, error) {
	result := c.collectDoctorResult(ctx)

	switch format {
	case "json":
		if err := json.NewEncoder(w).Encode(result); err != nil {
			return result, fmt.Errorf("encode doctor result: %w", err)
		}
	default:
		renderDoctorTable(result, w)
	}
	return result, nil
}

// collectDoctorResult runs every check without rendering.
func (c *cli) collectDoctorResult(ctx context.Context) DoctorResult {
	var result DoctorResult

	// Config: load → validate. Invalid settings do not stop the AWS checks;
	// the profile and region fall back to whatever viper resolved.
	cfg, err := config.Load(c.v, c.cfgFile)
	if err != nil {
		result.Config.Errors = []string{err.Error()}
		d := config.Defaults()
		cfg = &d
	} else if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			result.Config.Errors = append(result.Config.Errors, e.Error())
		}
	} else {
		result.Config.Valid = true
	}

	if profiles, err := common.ListProfiles(); err == nil {
		result.AWS.Profiles = profiles
	}

	// AWS: credentials + STS identity → S3 ListBuckets.
	result.AWS.Profile = cfg.Profile
	profile, err := c.provider.LoadProfile(ctx, cfg.Profile, cfg.Region)
	if err != nil {
		result.AWS.Error = err.Error()
	} else {
		result.AWS.Credentials = true
		result.AWS.AccountID = profile.AccountID
		result.AWS.CallerARN = profile.CallerARN
		buckets, err := c.newProber(profile, zap.NewNop()).ListBuckets(ctx)
		if err != nil {
			result.AWS.Error = err.Error()
		} else {
			result.AWS.S3OK = true
			result.AWS.Buckets = len(buckets)
		}
	}

	result.OverallHealthy = result.AWS.Credentials &&
		result.AWS.S3OK &&
		result.Config.Valid
	return result
}

// renderDoctorTable writes the human-readable diagnostic output to w.
func renderDoctorTable(result DoctorResult, w io.Writer) {
	fmt.Fprintln(w, "Environment Diagnostics")

	if result.AWS.Profile != "" {
		fmt.Fprintf(w, "\nAWS (profile: %s):\n", result.AWS.Profile)
	} else {
		fmt.Fprintln(w, "\nAWS:")
	}
	doctorPrint(w, "Known Profiles", fmt.Sprintf("%d", len(result.AWS.Profiles)), "")
	if !result.AWS.Credentials {
		doctorPrint(w, "Credentials", "FAIL", result.AWS.Error)
		doctorPrint(w, "STS Identity", "FAIL", "skipped")
		doctorPrint(w, "S3 ListBuckets", "FAIL", "skipped")
	} else {
		doctorPrint(w, "Credentials", "OK", "")
		doctorPrint(w, "STS Identity", "OK", "Account: "+result.AWS.AccountID)
		if result.AWS.S3OK {
			doctorPrint(w, "S3 ListBuckets", "OK", fmt.Sprintf("%d buckets", result.AWS.Buckets))
		} else {
			doctorPrint(w, "S3 ListBuckets", "FAIL", result.AWS.Error)
		}
	}

	fmt.Fprintln(w, "\nConfiguration:")
	if result.Config.Valid {
		doctorPrint(w, "Config valid", "OK", "")
	} else {
		for _, e := range result.Config.Errors {
			doctorPrint(w, "Config valid", "FAIL", e)
		}
	}
}

// doctorPrint writes a single check line to w. A non-empty detail is
// appended in parentheses.
func doctorPrint(w io.Writer, label, status, detail string) {
	if detail != "" {
		fmt.Fprintf(w, "  %s: %s (%s)\n", label, status, detail)
	} else {
		fmt.Fprintf(w, "  %s: %s\n", label, status)
	}
}
