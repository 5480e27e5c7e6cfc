package keywords

import "github.com/kiranshivaraju/medinventory/pkg/models"

// categoryEntries is scanned top to bottom. Short keywords such as "face" and
// "test" deliberately sit late so more specific equipment terms win first.
var categoryEntries = []Entry{
	{"table", models.CategoryEquipment},
	{"chair", models.CategoryEquipment},
	{"bed", models.CategoryEquipment},
	{"cart", models.CategoryEquipment},
	{"light", models.CategoryEquipment},
	{"stool", models.CategoryEquipment},
	{"cabinet", models.CategoryEquipment},
	{"monitor", models.CategoryEquipment},
	{"scale", models.CategoryEquipment},

	{"syringe", models.CategorySupplies},
	{"needle", models.CategorySupplies},
	{"bandage", models.CategorySupplies},
	{"gauze", models.CategorySupplies},
	{"tape", models.CategorySupplies},
	{"glove", models.CategorySupplies},
	{"tubing", models.CategorySupplies},
	{"catheter", models.CategorySupplies},
	{"dressing", models.CategorySupplies},
	{"suture", models.CategorySupplies},
	{"scalpel", models.CategorySupplies},
	{"blade", models.CategorySupplies},

	{"mask", models.CategoryPPE},
	{"gown", models.CategoryPPE},
	{"shield", models.CategoryPPE},
	{"goggle", models.CategoryPPE},
	{"sanitizer", models.CategoryPPE},
	{"ppe", models.CategoryPPE},
	{"protection", models.CategoryPPE},
	{"face", models.CategoryPPE},

	{"disinfectant", models.CategoryCleaning},
	{"wipe", models.CategoryCleaning},
	{"cleaner", models.CategoryCleaning},
	{"detergent", models.CategoryCleaning},
	{"soap", models.CategoryCleaning},
	{"sanitizing", models.CategoryCleaning},
	{"bleach", models.CategoryCleaning},
	{"mop", models.CategoryCleaning},

	{"test", models.CategoryDiagnostics},
	{"lab", models.CategoryDiagnostics},
	{"specimen", models.CategoryDiagnostics},
	{"culture", models.CategoryDiagnostics},
	{"slide", models.CategoryDiagnostics},
	{"microscope", models.CategoryDiagnostics},
	{"analyzer", models.CategoryDiagnostics},
	{"reagent", models.CategoryDiagnostics},
	{"diagnostic", models.CategoryDiagnostics},
}

var ruralKeywords = []string{
	"blood pressure monitor", "thermometer", "stethoscope", "weight scale",
	"glucometer", "hemoglobinometer", "nebulizer", "oxygen concentrator",
	"fetoscope", "delivery kit", "wound care", "dressing", "bandage",
	"sterilization", "autoclave", "pressure cooker", "rapid test",
	"hiv test", "malaria test", "pregnancy test", "urinalysis", "dipstick",
	"first aid", "oral medication", "injection", "immunization", "vaccine",
	"iv fluid", "cannula", "catheter", "splint", "crutch",
}

var districtKeywords = []string{
	"ventilator", "ecg", "electrocardiograph", "chemistry analyzer",
	"hematology analyzer", "operating table", "surgical", "anesthesia",
	"electrosurgical", "ceiling light", "operating light", "slit lamp",
	"ophthalmology", "x-ray", "radiography", "ultrasound", "imaging",
	"incubator", "blood bank", "refrigerator", "cpap", "icu", "intensive care",
	"cesarean", "theatre", "surgery", "fracture", "biopsy", "endoscopy",
	"laparoscopy", "microscope", "centrifuge", "culture", "microbiology",
	"monitor", "patient monitor", "fetal monitor", "cross matching", "transfusion",
}

var needsReviewKeywords = []string{
	"expired", "damaged", "recalled", "obsolete", "discontinued",
	"complex", "specialized", "calibration required", "maintenance intensive",
	"proprietary", "requires training", "missing components", "advanced",
	"high power", "continuous electricity", "climate controlled", "mri", "ct scan",
	"radiation", "radioactive", "nuclear", "restricted", "controlled substance",
}

// Default returns the built-in keyword tables.
func Default() Tables {
	return Tables{
		Category:            NewTable(categoryEntries),
		FacilityNeedsReview: NewList(models.LabelNeedsReview, needsReviewKeywords...),
		FacilityRural:       NewList(models.FacilityRural, ruralKeywords...),
		FacilityDistrict:    NewList(models.FacilityDistrict, districtKeywords...),
	}
}
