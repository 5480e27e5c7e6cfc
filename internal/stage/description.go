package stage

import (
	"context"
	"log/slog"

	"github.com/kiranshivaraju/medinventory/internal/ai"
	"github.com/kiranshivaraju/medinventory/internal/dataset"
	"github.com/kiranshivaraju/medinventory/pkg/models"
)

// NoDescription is written for rows without a DESCRIPTION.
const NoDescription = "No description available"

// NewDescriptionRunner fills the plain-language description column.
// opts.Limit restricts generation to the first rows for trial runs.
func NewDescriptionRunner(describer *ai.Describer, opts Options, extra ...Option) *Runner {
	return newRunner(models.StepDescription, models.ColumnSimpleDescription, "Generating descriptions",
		descriptionResolver{describer: describer}, opts, extra)
}

type descriptionResolver struct {
	describer *ai.Describer
}

func (d descriptionResolver) Resolve(ctx context.Context, ds *dataset.Dataset, row int) (Resolution, error) {
	text := ds.Get(row, models.ColumnDescription)
	if text == "" {
		return Resolution{Value: NoDescription, Source: SourceSentinel}, nil
	}

	category := ds.Get(row, models.ColumnCategory)
	if category == "" {
		category = ds.Get(row, models.ColumnProductCategory)
	}

	desc, err := d.describer.Describe(ctx, ai.DescribeRequest{
		Description: text,
		Vendor:      ds.Get(row, models.ColumnVendorName),
		Category:    category,
		Subcategory: ds.Get(row, models.ColumnSubcategory),
	})
	if err != nil {
		if ctx.Err() != nil {
			return Resolution{}, ctx.Err()
		}
		slog.Warn("description generation failed", "row", row, "error", err)
		return Resolution{Value: ai.FailedDescription(err), Source: SourceSentinel, ModelCalled: true}, nil
	}
	return Resolution{Value: desc, Source: SourceModel, ModelCalled: true}, nil
}
