package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pankaj-dahiya-devops/s3audit/internal/audit"
	"github.com/pankaj-dahiya-devops/s3audit/internal/bucketpolicy"
	"github.com/pankaj-dahiya-devops/s3audit/internal/findings"
	awss3 "github.com/pankaj-dahiya-devops/s3audit/internal/providers/aws/s3"
)

// ── fake prober ───────────────────────────────────────────────────────────────

// bucketState is the canned configuration of one fake bucket.
type bucketState struct {
	grants     []types.Grant
	encryption *types.ServerSideEncryptionConfiguration // nil = not configured
	versioning *s3svc.GetBucketVersioningOutput
	website    bool
	logging    *types.LoggingEnabled
	pab        *types.PublicAccessBlockConfiguration
	policy     *string
	failOn     string // operation name that fails
}

type fakeProber struct {
	buckets map[string]bucketState
	listed  []string
	listErr error

	mu    sync.Mutex
	calls map[string]int

	// block, when set, is waited on by FetchACL.
	block chan struct{}
	// onACL runs at the start of FetchACL.
	onACL func(bucket string)
}

func (f *fakeProber) record(op, bucket string) (bucketState, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
	f.mu.Unlock()

	st, ok := f.buckets[bucket]
	if !ok {
		return st, errors.New("NoSuchBucket")
	}
	if st.failOn == op {
		return st, errors.New(op + " failed")
	}
	return st, nil
}

func (f *fakeProber) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeProber) ListBuckets(context.Context) ([]string, error) {
	return f.listed, f.listErr
}

func (f *fakeProber) BucketRegion(_ context.Context, bucket string) (string, error) {
	if _, err := f.record("BucketRegion", bucket); err != nil {
		return "", err
	}
	return "eu-west-1", nil
}

func (f *fakeProber) FetchACL(ctx context.Context, bucket string) ([]types.Grant, error) {
	if f.onACL != nil {
		f.onACL(bucket)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	st, err := f.record("FetchACL", bucket)
	return st.grants, err
}

func (f *fakeProber) FetchEncryption(_ context.Context, bucket string) (*types.ServerSideEncryptionConfiguration, error) {
	st, err := f.record("FetchEncryption", bucket)
	if err != nil {
		return nil, err
	}
	if st.encryption == nil {
		return nil, awss3.ErrNotConfigured
	}
	return st.encryption, nil
}

func (f *fakeProber) FetchVersioning(_ context.Context, bucket string) (*s3svc.GetBucketVersioningOutput, error) {
	st, err := f.record("FetchVersioning", bucket)
	return st.versioning, err
}

func (f *fakeProber) FetchWebsite(_ context.Context, bucket string) (*s3svc.GetBucketWebsiteOutput, error) {
	st, err := f.record("FetchWebsite", bucket)
	if err != nil {
		return nil, err
	}
	if !st.website {
		return nil, awss3.ErrNotConfigured
	}
	return &s3svc.GetBucketWebsiteOutput{}, nil
}

func (f *fakeProber) FetchLogging(_ context.Context, bucket string) (*types.LoggingEnabled, error) {
	st, err := f.record("FetchLogging", bucket)
	return st.logging, err
}

func (f *fakeProber) FetchPublicAccessBlock(_ context.Context, bucket string) (*types.PublicAccessBlockConfiguration, error) {
	st, err := f.record("FetchPublicAccessBlock", bucket)
	return st.pab, err
}

func (f *fakeProber) FetchPolicy(_ context.Context, bucket string) (*string, error) {
	st, err := f.record("FetchPolicy", bucket)
	return st.policy, err
}

// ── helpers ───────────────────────────────────────────────────────────────────

const oaiPolicy = `{"Statement":[{"Effect":"Allow","Principal":{"AWS":"` +
	bucketpolicy.CloudFrontOAIPrefix + `E2ABC"},"Action":"s3:GetObject"}]}`

func hardenedBucket() bucketState {
	return bucketState{
		encryption: &types.ServerSideEncryptionConfiguration{Rules: []types.ServerSideEncryptionRule{{
			ApplyServerSideEncryptionByDefault: &types.ServerSideEncryptionByDefault{SSEAlgorithm: types.ServerSideEncryptionAwsKms},
		}}},
		versioning: &s3svc.GetBucketVersioningOutput{
			Status:    types.BucketVersioningStatusEnabled,
			MFADelete: types.MFADeleteStatusEnabled,
		},
		logging: &types.LoggingEnabled{TargetBucket: aws.String("logs")},
		pab: &types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       aws.Bool(true),
			BlockPublicPolicy:     aws.Bool(true),
			IgnorePublicAcls:      aws.Bool(true),
			RestrictPublicBuckets: aws.Bool(true),
		},
		policy: aws.String(oaiPolicy),
	}
}

func only(audits ...audit.Audit) audit.Set {
	return audit.NewSet().Disable([]audit.Audit{audit.All}).Enable(audits)
}

// ── RunReport ─────────────────────────────────────────────────────────────────

func TestRunReport_AllAudits(t *testing.T) {
	p := &fakeProber{buckets: map[string]bucketState{"secure": hardenedBucket()}}
	a := NewAuditor(p, Options{}, nil)

	r, err := a.RunReport(context.Background(), "secure", audit.NewSet())
	require.NoError(t, err)

	assert.Equal(t, "secure", r.Name)
	assert.Equal(t, "eu-west-1", r.Region)
	assert.Len(t, r.Audits(), len(audit.Concrete()))

	acl, _ := r.ACL()
	assert.Equal(t, findings.ACLPrivate, acl)
	enc, _ := r.Encryption()
	assert.Equal(t, findings.EncryptionKMS, enc.Kind)
	mfa, _ := r.MFADelete()
	assert.Equal(t, findings.MFADeleteEnabled, mfa.MFADelete)
	web, _ := r.Website()
	assert.Equal(t, findings.WebsiteDisabled, web)
	logging, _ := r.Logging()
	assert.Equal(t, "logs", logging.TargetBucket)
	cf, ok := r.CloudFront()
	require.True(t, ok)
	assert.Equal(t, 1, cf.CloudFrontDistributions())
}

func TestRunReport_EmptySetDoesNoIO(t *testing.T) {
	p := &fakeProber{buckets: map[string]bucketState{"b": {}}}
	a := NewAuditor(p, Options{}, nil)

	r, err := a.RunReport(context.Background(), "b", only())
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, p.count("BucketRegion"))
}

func TestRunReport_VersioningFetchedOnce(t *testing.T) {
	p := &fakeProber{buckets: map[string]bucketState{"b": hardenedBucket()}}
	a := NewAuditor(p, Options{}, nil)

	r, err := a.RunReport(context.Background(), "b", only(audit.Versioning, audit.MfaDelete))
	require.NoError(t, err)
	assert.Equal(t, 1, p.count("FetchVersioning"))

	v, ok1 := r.Versioning()
	m, ok2 := r.MFADelete()
	assert.True(t, ok1 && ok2)
	assert.Equal(t, v, m)
	assert.Equal(t, []audit.Audit{audit.MfaDelete, audit.Versioning}, r.Audits())
}

func TestRunReport_MfaDeleteOnly(t *testing.T) {
	p := &fakeProber{buckets: map[string]bucketState{"b": hardenedBucket()}}
	a := NewAuditor(p, Options{}, nil)

	r, err := a.RunReport(context.Background(), "b", only(audit.MfaDelete))
	require.NoError(t, err)
	_, ok := r.Versioning()
	assert.False(t, ok, "Versioning slot must stay empty")
	_, ok = r.MFADelete()
	assert.True(t, ok)
	assert.Equal(t, 1, p.count("FetchVersioning"))
}

func TestRunReport_PolicyFetchedOnceForPolicyAndCloudfront(t *testing.T) {
	p := &fakeProber{buckets: map[string]bucketState{"b": hardenedBucket()}}
	a := NewAuditor(p, Options{}, nil)

	r, err := a.RunReport(context.Background(), "b", only(audit.Policy, audit.Cloudfront))
	require.NoError(t, err)
	assert.Equal(t, 1, p.count("FetchPolicy"))

	pol, _ := r.Policy()
	cf, _ := r.CloudFront()
	assert.Same(t, pol.Analysis, cf.Analysis)
}

func TestRunReport_PolicyTriState(t *testing.T) {
	p := &fakeProber{buckets: map[string]bucketState{
		"none": {},
		"some": {policy: aws.String(`{"Statement":[{"Effect":"Allow","Principal":"*","Action":"s3:GetObject"}]}`)},
	}}
	a := NewAuditor(p, Options{}, nil)

	r, err := a.RunReport(context.Background(), "none", only(audit.Acl))
	require.NoError(t, err)
	_, ok := r.Policy()
	assert.False(t, ok, "policy audit not run")

	r, err = a.RunReport(context.Background(), "none", only(audit.Policy))
	require.NoError(t, err)
	pol, ok := r.Policy()
	assert.True(t, ok)
	assert.False(t, pol.Present())

	r, err = a.RunReport(context.Background(), "some", only(audit.Policy))
	require.NoError(t, err)
	pol, _ = r.Policy()
	assert.True(t, pol.Present())
	assert.Equal(t, 1, pol.Wildcards())
}

func TestRunReport_TypedAbsence(t *testing.T) {
	p := &fakeProber{buckets: map[string]bucketState{"bare": {}}}
	a := NewAuditor(p, Options{}, nil)

	r, err := a.RunReport(context.Background(), "bare", audit.NewSet())
	require.NoError(t, err)

	enc, _ := r.Encryption()
	assert.Equal(t, findings.EncryptionNone, enc.Kind)
	web, _ := r.Website()
	assert.Equal(t, findings.WebsiteDisabled, web)
	pab, _ := r.PublicAccessBlock()
	assert.Equal(t, findings.PublicAccessBlock{}, pab)
	v, _ := r.Versioning()
	assert.Equal(t, findings.VersioningSuspended, v.Status)
}

func TestRunReport_FetchFailureAbortsBucket(t *testing.T) {
	st := hardenedBucket()
	st.failOn = "FetchLogging"
	p := &fakeProber{buckets: map[string]bucketState{"b": st}}
	a := NewAuditor(p, Options{}, nil)

	r, err := a.RunReport(context.Background(), "b", audit.NewSet())
	assert.Nil(t, r)
	var be *BucketError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "b", be.Bucket)
	assert.Equal(t, audit.Logging, be.Audit)
}

func TestRunReport_MalformedPolicyIsFatal(t *testing.T) {
	p := &fakeProber{buckets: map[string]bucketState{"b": {policy: aws.String(`{"Version":"2012-10-17"}`)}}}
	a := NewAuditor(p, Options{}, nil)

	_, err := a.RunReport(context.Background(), "b", only(audit.Cloudfront))
	var be *BucketError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, audit.Cloudfront, be.Audit)
	assert.ErrorIs(t, err, bucketpolicy.ErrMalformedPolicy)
}

// ── RunAll ────────────────────────────────────────────────────────────────────

func TestRunAll_IsolatesFailuresAndKeepsOrder(t *testing.T) {
	bad := hardenedBucket()
	bad.failOn = "FetchACL"
	p := &fakeProber{buckets: map[string]bucketState{
		"a": hardenedBucket(), "b": bad, "c": {}, "d": hardenedBucket(),
	}}
	core, logs := observer.New(zapcore.WarnLevel)
	a := NewAuditor(p, Options{BucketConcurrency: 3}, zap.New(core))

	res, err := a.RunAll(context.Background(), []string{"a", "b", "c", "d"}, audit.NewSet())
	require.NoError(t, err)

	var names []string
	for _, r := range res.Reports {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"a", "c", "d"}, names)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "b", res.Failures[0].Bucket)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, 1, logs.FilterMessage("bucket audit failed").Len())
}

func TestRunAll_RespectsBucketConcurrency(t *testing.T) {
	buckets := map[string]bucketState{}
	var order []string
	for _, n := range []string{"a", "b", "c", "d", "e", "f"} {
		buckets[n] = bucketState{}
		order = append(order, n)
	}

	var inFlight, peak int32
	p := &fakeProber{buckets: buckets}
	p.onACL = func(string) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
	}
	a := NewAuditor(p, Options{BucketConcurrency: 2}, nil)

	res, err := a.RunAll(context.Background(), order, only(audit.Acl))
	require.NoError(t, err)
	assert.Len(t, res.Reports, len(order))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestRunAll_CancellationStopsNewWork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var once sync.Once
	p := &fakeProber{
		buckets: map[string]bucketState{"a": {}, "b": {}, "c": {}, "d": {}},
		block:   make(chan struct{}),
	}
	p.onACL = func(string) { once.Do(cancel) }
	a := NewAuditor(p, Options{BucketConcurrency: 1}, nil)

	res, err := a.RunAll(ctx, []string{"a", "b", "c", "d"}, only(audit.Acl))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Reports)
	// "a" was in flight and drained with a cancellation failure; the rest
	// were never started.
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "a", res.Failures[0].Bucket)
	assert.Equal(t, []string{"b", "c", "d"}, res.Skipped)
}

// ── Discover ──────────────────────────────────────────────────────────────────

func TestDiscover(t *testing.T) {
	p := &fakeProber{listed: []string{"x", "y"}}
	a := NewAuditor(p, Options{}, nil)

	got, err := a.Discover(context.Background(), []string{"only-this"})
	require.NoError(t, err)
	assert.Equal(t, []string{"only-this"}, got)

	got, err = a.Discover(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, got)

	p.listErr = errors.New("AccessDenied")
	_, err = a.Discover(context.Background(), nil)
	assert.Error(t, err)
}

func TestBucketError_Message(t *testing.T) {
	err := &BucketError{Bucket: "b", Audit: audit.Website, Err: errors.New("boom")}
	assert.Equal(t, "bucket b: website audit: boom", err.Error())

	err = &BucketError{Bucket: "b", Audit: audit.All, Err: errors.New("boom")}
	assert.Equal(t, "bucket b: boom", err.Error())
}
