package ai_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kiranshivaraju/medinventory/internal/ai"
	"github.com/kiranshivaraju/medinventory/internal/ai/mock"
	"github.com/kiranshivaraju/medinventory/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOptions() ai.DescriberOptions {
	return ai.DescriberOptions{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestDescribe_Success(t *testing.T) {
	p := mock.NewStaticProvider(`"Sterile gauze pad, 4x4 in, pkg of 10"`)
	d := ai.NewDescriber(p, nil, fastOptions())

	got, err := d.Describe(context.Background(), ai.DescribeRequest{
		Description: "GAUZE SPONGE 4X4 STERILE",
		Vendor:      "Medline",
		Category:    "Supplies",
	})
	require.NoError(t, err)
	assert.Equal(t, "Sterile gauze pad, 4x4 in, pkg of 10", got)

	calls := p.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, ai.DescriptionSystem, calls[0].System)
	assert.Contains(t, calls[0].User, "Item: GAUZE SPONGE 4X4 STERILE")
	assert.Contains(t, calls[0].User, "Vendor: Medline")
	assert.NotContains(t, calls[0].User, "Subcategory:")
	assert.InDelta(t, 0.3, calls[0].Temperature, 0.0001)
	assert.Equal(t, int64(1), d.Usage().Requests())
}

func TestDescribe_RetriesThenSucceeds(t *testing.T) {
	var n atomic.Int32
	p := &mock.MockProvider{
		Name_: "flaky",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (models.Completion, error) {
			if n.Add(1) < 3 {
				return models.Completion{}, ai.ErrProviderUnavailable
			}
			return models.Completion{Text: "Blood pressure cuff, adult"}, nil
		},
	}
	d := ai.NewDescriber(p, nil, fastOptions())

	got, err := d.Describe(context.Background(), ai.DescribeRequest{Description: "BP CUFF ADULT"})
	require.NoError(t, err)
	assert.Equal(t, "Blood pressure cuff, adult", got)
	assert.Equal(t, 3, p.CallCount())
}

func TestDescribe_ExhaustsAttempts(t *testing.T) {
	p := mock.NewFailingProvider(ai.ErrProviderUnavailable)
	d := ai.NewDescriber(p, nil, fastOptions())

	_, err := d.Describe(context.Background(), ai.DescribeRequest{Description: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrProviderUnavailable)
	assert.Equal(t, 3, p.CallCount())

	placeholder := ai.FailedDescription(err)
	assert.True(t, strings.HasPrefix(placeholder, ai.DescriptionFailedPrefix))
	assert.Contains(t, placeholder, "unavailable")
}

func TestDescribe_EmptyResponseNotRetried(t *testing.T) {
	p := mock.NewStaticProvider(`  ""  `)
	d := ai.NewDescriber(p, nil, fastOptions())

	_, err := d.Describe(context.Background(), ai.DescribeRequest{Description: "x"})
	assert.ErrorIs(t, err, ai.ErrInvalidResponse)
	assert.Equal(t, 1, p.CallCount())
}

func TestDescribe_CancelledContext(t *testing.T) {
	p := mock.NewTimeoutProvider()
	d := ai.NewDescriber(p, nil, fastOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := d.Describe(ctx, ai.DescribeRequest{Description: "x"})
	require.Error(t, err)
	assert.Equal(t, 1, p.CallCount())
}

func TestDescribe_SpacesRequests(t *testing.T) {
	opts := fastOptions()
	opts.MinInterval = 40 * time.Millisecond
	p := mock.NewStaticProvider("ok")
	d := ai.NewDescriber(p, nil, opts)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := d.Describe(context.Background(), ai.DescribeRequest{Description: "x"})
		require.NoError(t, err)
	}

	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond, "two waits of one interval each")
	assert.Equal(t, 3, p.CallCount())
}

func TestDescribe_SpacingRespectsCancellation(t *testing.T) {
	opts := fastOptions()
	opts.MinInterval = time.Hour
	p := mock.NewStaticProvider("ok")
	d := ai.NewDescriber(p, nil, opts)

	_, err := d.Describe(context.Background(), ai.DescribeRequest{Description: "x"})
	require.NoError(t, err, "the first request is not delayed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Describe(ctx, ai.DescribeRequest{Description: "x"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, p.CallCount())
}

func TestCleanDescription(t *testing.T) {
	assert.Equal(t, "Exam gloves, nitrile, M", ai.CleanDescription(" 'Exam gloves, nitrile, M'\n"))
	assert.Equal(t, "", ai.CleanDescription(`""`))
}

func TestBuildUserMessage(t *testing.T) {
	got := ai.BuildUserMessage("SUCTION CATHETER", []ai.Field{
		{Name: "Vendor", Value: "Cardinal"},
		{Name: "Category", Value: "  "},
		{Name: "Subcategory", Value: "Airway"},
	})
	assert.Equal(t, "Description: SUCTION CATHETER, Vendor: Cardinal, Subcategory: Airway", got)
}

func TestUsageSnapshot(t *testing.T) {
	u := ai.NewUsage()
	u.Record(models.TokenUsage{InputTokens: 1500, OutputTokens: 500})
	u.Record(models.TokenUsage{InputTokens: 100})

	s := u.Snapshot(0.002)
	assert.Equal(t, int64(2), s.Requests)
	assert.Equal(t, int64(2100), s.Tokens)
	assert.InDelta(t, 0.0042, s.EstimatedCost, 1e-9)
}
