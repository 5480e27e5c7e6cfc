package models

// Dataset column names read or written by the pipeline.
const (
	ColumnItemNo            = "ITEM_NO"
	ColumnDescription       = "DESCRIPTION"
	ColumnVendorName        = "VENDOR_NAME"
	ColumnCategory          = "CATEGORY"
	ColumnSubcategory       = "SUBCATEGORY"
	ColumnProductCategory   = "Product Category"
	ColumnFacility          = "Facility Suitability"
	ColumnSimpleDescription = "SIMPLE_DESCRIPTION"
)

// RequiredColumns must be present in every input dataset.
var RequiredColumns = []string{ColumnItemNo, ColumnDescription, ColumnVendorName}

// Sentinel labels.
const (
	LabelNeedsReview   = "Needs Review"
	LabelUncategorized = "Uncategorized"
)

// Product categories.
const (
	CategoryEquipment   = "Medical Equipment & Furniture"
	CategorySupplies    = "Medical & Surgical Supplies"
	CategoryPPE         = "PPE & Infection Control"
	CategoryCleaning    = "Cleaning & Facility Maintenance"
	CategoryDiagnostics = "Diagnostics & Lab Use"
)

// Facility suitability tiers.
const (
	FacilityRural    = "Rural Clinics"
	FacilityDistrict = "District Hospitals"
	FacilityBoth     = "Both"
)

// ProductCategories are the labels the model may choose for the category stage.
var ProductCategories = []string{
	CategoryEquipment,
	CategorySupplies,
	CategoryPPE,
	CategoryCleaning,
	CategoryDiagnostics,
}

// FacilityTiers are the labels the model may choose for the facility stage.
var FacilityTiers = []string{
	FacilityRural,
	FacilityDistrict,
	FacilityBoth,
	LabelNeedsReview,
}

// CategoryLabelSet is every value the category stage may write.
func CategoryLabelSet() []string {
	return append(append([]string{}, ProductCategories...), LabelNeedsReview, LabelUncategorized)
}

// FacilityLabelSet is every value the facility stage may write.
func FacilityLabelSet() []string {
	return append([]string{}, FacilityTiers...)
}

// Contains reports whether label is one of labels.
func Contains(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
