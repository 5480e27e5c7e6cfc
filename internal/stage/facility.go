package stage

import (
	"context"
	"log/slog"

	"github.com/kiranshivaraju/medinventory/internal/ai"
	"github.com/kiranshivaraju/medinventory/internal/dataset"
	"github.com/kiranshivaraju/medinventory/internal/keywords"
	"github.com/kiranshivaraju/medinventory/pkg/models"
)

// NewFacilityRunner fills the facility suitability column.
func NewFacilityRunner(tables keywords.Tables, classifier *ai.Classifier, opts Options, extra ...Option) *Runner {
	return newRunner(models.StepFacility, models.ColumnFacility, "Classifying facility suitability",
		facilityResolver{tables: tables, classifier: classifier}, opts, extra)
}

type facilityResolver struct {
	tables     keywords.Tables
	classifier *ai.Classifier
}

func (f facilityResolver) Resolve(ctx context.Context, ds *dataset.Dataset, row int) (Resolution, error) {
	text := ds.Get(row, models.ColumnDescription)
	if text == "" {
		return Resolution{Value: models.LabelNeedsReview, Source: SourceSentinel}, nil
	}
	if label, ok := f.tables.Facility(text); ok {
		return Resolution{Value: label, Source: SourceKeyword}, nil
	}
	if sub := ds.Get(row, models.ColumnSubcategory); sub != "" {
		if label, ok := f.tables.Facility(sub); ok {
			return Resolution{Value: label, Source: SourceKeyword}, nil
		}
	}

	label, err := f.classifier.Classify(ctx, ai.ClassifyRequest{
		Text: text,
		Context: []ai.Field{
			{Name: "Category", Value: ds.Get(row, models.ColumnProductCategory)},
			{Name: "Vendor", Value: ds.Get(row, models.ColumnVendorName)},
		},
		Labels: models.FacilityTiers,
		Prompt: ai.FacilityPrompt,
	})
	if err != nil {
		if ctx.Err() != nil {
			return Resolution{}, ctx.Err()
		}
		slog.Warn("facility classification failed, marking for review", "row", row, "error", err)
		return Resolution{Value: models.LabelNeedsReview, Source: SourceSentinel, ModelCalled: true}, nil
	}
	if label == models.LabelNeedsReview {
		return Resolution{Value: label, Source: SourceSentinel, ModelCalled: true}, nil
	}
	return Resolution{Value: label, Source: SourceModel, ModelCalled: true}, nil
}
