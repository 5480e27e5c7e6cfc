package ai_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kiranshivaraju/medinventory/internal/ai"
	"github.com/kiranshivaraju/medinventory/internal/ai/mock"
	"github.com/kiranshivaraju/medinventory/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_ReturnsAllowedLabel(t *testing.T) {
	p := mock.NewStaticProvider("Category: Medical & Surgical Supplies")
	c := ai.NewClassifier(p, nil)

	label, err := c.Classify(context.Background(), ai.ClassifyRequest{
		Text:    "GAUZE SPONGE 4X4",
		Context: []ai.Field{{Name: "Vendor", Value: "Medline"}, {Name: "Category", Value: ""}},
		Labels:  models.ProductCategories,
		Prompt:  ai.CategoryPrompt,
	})
	require.NoError(t, err)
	assert.Equal(t, models.CategorySupplies, label)

	calls := p.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Description: GAUZE SPONGE 4X4, Vendor: Medline", calls[0].User)
	assert.Equal(t, ai.CategoryPrompt.System, calls[0].System)
	assert.Equal(t, 30, calls[0].MaxTokens)

	assert.Equal(t, int64(1), c.Usage().Requests())
	assert.Equal(t, int64(15), c.Usage().Tokens())
}

func TestClassify_UnrecognizedLabel(t *testing.T) {
	c := ai.NewClassifier(mock.NewStaticProvider("Furniture"), nil)

	_, err := c.Classify(context.Background(), ai.ClassifyRequest{
		Text:   "chair",
		Labels: models.ProductCategories,
		Prompt: ai.CategoryPrompt,
	})
	assert.ErrorIs(t, err, ai.ErrUnrecognizedLabel)
	assert.Equal(t, int64(1), c.Usage().Requests())
}

func TestClassify_ProviderError(t *testing.T) {
	c := ai.NewClassifier(mock.NewFailingProvider(ai.ErrProviderUnavailable), nil)

	_, err := c.Classify(context.Background(), ai.ClassifyRequest{Labels: models.FacilityTiers})
	assert.ErrorIs(t, err, ai.ErrProviderUnavailable)
	assert.Zero(t, c.Usage().Requests())
}

func TestClassify_SharedUsage(t *testing.T) {
	usage := ai.NewUsage()
	c1 := ai.NewClassifier(mock.NewStaticProvider(models.CategoryPPE), usage)
	c2 := ai.NewClassifier(mock.NewStaticProvider("Both"), usage)

	_, err := c1.Classify(context.Background(), ai.ClassifyRequest{Labels: models.ProductCategories})
	require.NoError(t, err)
	_, err = c2.Classify(context.Background(), ai.ClassifyRequest{Labels: models.FacilityTiers})
	require.NoError(t, err)

	assert.Equal(t, int64(2), usage.Requests())
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		name     string
		response string
		allowed  []string
		want     string
	}{
		{"exact", "Medical Equipment & Furniture", models.ProductCategories, models.CategoryEquipment},
		{"surrounding whitespace", "  Diagnostics & Lab Use\n", models.ProductCategories, models.CategoryDiagnostics},
		{"prefixed", "Category: Cleaning & Facility Maintenance", models.ProductCategories, models.CategoryCleaning},
		{"lower case", "ppe & infection control", models.ProductCategories, models.CategoryPPE},
		{"sentence", "This belongs in Medical & Surgical Supplies.", models.ProductCategories, models.CategorySupplies},
		{"numbered", "2. District Hospitals - requires surgery", models.FacilityTiers, "District Hospitals"},
		{"needs review", "Needs Review", models.FacilityTiers, "Needs Review"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ai.ParseLabel(tt.response, tt.allowed)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLabel_NoMatch(t *testing.T) {
	for _, resp := range []string{"", "Rural Clinic", "I cannot determine this"} {
		_, err := ai.ParseLabel(resp, models.FacilityTiers)
		assert.True(t, errors.Is(err, ai.ErrUnrecognizedLabel), "response %q", resp)
	}
}
