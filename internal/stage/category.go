package stage

import (
	"context"
	"log/slog"

	"github.com/kiranshivaraju/medinventory/internal/ai"
	"github.com/kiranshivaraju/medinventory/internal/dataset"
	"github.com/kiranshivaraju/medinventory/internal/keywords"
	"github.com/kiranshivaraju/medinventory/pkg/models"
)

// NewCategoryRunner fills the product category column.
func NewCategoryRunner(table keywords.Table, classifier *ai.Classifier, opts Options, extra ...Option) *Runner {
	return newRunner(models.StepCategory, models.ColumnProductCategory, "Categorizing items",
		categoryResolver{table: table, classifier: classifier}, opts, extra)
}

type categoryResolver struct {
	table      keywords.Table
	classifier *ai.Classifier
}

func (c categoryResolver) Resolve(ctx context.Context, ds *dataset.Dataset, row int) (Resolution, error) {
	text := ds.Get(row, models.ColumnDescription)
	if text == "" {
		return Resolution{Value: models.LabelUncategorized, Source: SourceSentinel}, nil
	}
	if label, ok := c.table.Match(text); ok {
		return Resolution{Value: label, Source: SourceKeyword}, nil
	}
	sub := ds.Get(row, models.ColumnSubcategory)
	if sub != "" {
		if label, ok := c.table.Match(sub); ok {
			return Resolution{Value: label, Source: SourceKeyword}, nil
		}
	}

	label, err := c.classifier.Classify(ctx, ai.ClassifyRequest{
		Text: text,
		Context: []ai.Field{
			{Name: "Vendor", Value: ds.Get(row, models.ColumnVendorName)},
			{Name: "Subcategory", Value: sub},
		},
		Labels: models.ProductCategories,
		Prompt: ai.CategoryPrompt,
	})
	if err != nil {
		if ctx.Err() != nil {
			return Resolution{}, ctx.Err()
		}
		slog.Warn("category classification failed, marking for review", "row", row, "error", err)
		return Resolution{Value: models.LabelNeedsReview, Source: SourceSentinel, ModelCalled: true}, nil
	}
	return Resolution{Value: label, Source: SourceModel, ModelCalled: true}, nil
}
