package mock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kiranshivaraju/medinventory/internal/ai/aierr"
	"github.com/kiranshivaraju/medinventory/internal/ai/mock"
	"github.com/kiranshivaraju/medinventory/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticProvider(t *testing.T) {
	p := mock.NewStaticProvider("Supplies")
	assert.Equal(t, "mock", p.Name())

	got, err := p.Complete(context.Background(), models.CompletionRequest{User: "gauze"})
	require.NoError(t, err)
	assert.Equal(t, "Supplies", got.Text)
	assert.Equal(t, int64(15), got.Usage.Total())
	assert.Equal(t, 1, p.CallCount())
	assert.Equal(t, "gauze", p.Calls()[0].User)
}

func TestFailingProvider(t *testing.T) {
	want := errors.New("boom")
	p := mock.NewFailingProvider(want)

	_, err := p.Complete(context.Background(), models.CompletionRequest{})
	assert.ErrorIs(t, err, want)
}

func TestTimeoutProvider(t *testing.T) {
	p := mock.NewTimeoutProvider()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Complete(ctx, models.CompletionRequest{})
	assert.ErrorIs(t, err, aierr.ErrInferenceTimeout)
}

func TestZeroValueProvider(t *testing.T) {
	p := &mock.MockProvider{Name_: "bare"}
	got, err := p.Complete(context.Background(), models.CompletionRequest{})
	require.NoError(t, err)
	assert.Empty(t, got.Text)
	assert.Equal(t, "bare", p.Name())
}
