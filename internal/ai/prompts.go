package ai

import (
	"strings"

	"github.com/kiranshivaraju/medinventory/pkg/models"
)

// Field is one optional "Name: value" context pair in a user message.
type Field struct {
	Name  string
	Value string
}

// PromptSpec fixes the system instruction and decoding parameters of one stage.
type PromptSpec struct {
	System      string
	Temperature float64
	MaxTokens   int
	Model       string
}

// CategoryPrompt classifies an item into a product category.
var CategoryPrompt = PromptSpec{
	System: `You are a helpful assistant that categorizes medical inventory items.
Respond with a single category name that best fits the item.
Choose ONLY from these categories:
1. ` + models.CategoryEquipment + ` - Durable items such as exam tables, surgical lights, and patient chairs.
2. ` + models.CategorySupplies + ` - Consumables including gloves, bandages, tubing, and instruments.
3. ` + models.CategoryPPE + ` - Personal protective equipment like masks, gowns, and sanitizing products.
4. ` + models.CategoryCleaning + ` - Disinfectants, wipes, and related sanitation materials.
5. ` + models.CategoryDiagnostics + ` - Items used for monitoring, testing, or sample handling.

Respond ONLY with the category name, nothing else.`,
	Temperature: 0,
	MaxTokens:   30,
}

// FacilityPrompt classifies an item by the facility tier able to use it.
var FacilityPrompt = PromptSpec{
	System: `You are a healthcare facility equipment specialist.
Rural clinics typically have:
- Basic equipment limited to essential primary care
- Basic wound care supplies and dressing materials
- IV cannulation capabilities for fluid administration
- Equipment for uncomplicated deliveries
- Simple diagnostic tools (glucometers, thermometers, blood pressure monitors)
- Limited electricity and often unreliable power
- Basic sterilization (pressure cookers, table-top autoclaves)
- Very limited laboratory capabilities (rapid tests only)
- No advanced imaging

District hospitals have more advanced capabilities including:
- Surgery facilities and operating rooms
- ECG machines and patient monitors
- Imaging equipment (X-ray, ultrasound)
- Laboratory with chemistry analyzers and hematology analyzers
- Blood banking capabilities
- Anesthesia equipment
- More reliable electricity (often with backup generators)
- Oxygen supply systems
- Capacity for more complex procedures

Based ONLY on this information, classify the medical item into ONE of these categories:
1. ` + models.FacilityRural + ` - Suitable for use in basic rural clinics
2. ` + models.FacilityDistrict + ` - Requires district hospital capabilities
3. ` + models.FacilityBoth + ` - Can be effectively used in either setting
4. ` + models.LabelNeedsReview + ` - May not be usable or requires additional assessment

Respond with ONLY the category name.`,
	Temperature: 0,
	MaxTokens:   30,
}

// DescriptionSystem is the system instruction for plain-language descriptions.
const DescriptionSystem = "You are a helpful assistant that creates simple, clear descriptions of medical items that non-medical people can understand."

// BuildUserMessage renders "Description: text" followed by every non-empty
// context field, joined by ", ".
func BuildUserMessage(text string, fields []Field) string {
	parts := make([]string, 0, len(fields)+1)
	parts = append(parts, "Description: "+text)
	for _, f := range fields {
		if v := strings.TrimSpace(f.Value); v != "" {
			parts = append(parts, f.Name+": "+v)
		}
	}
	return strings.Join(parts, ", ")
}

// BuildDescriptionPrompt renders the user message for the description stage.
func BuildDescriptionPrompt(req DescribeRequest) string {
	var b strings.Builder
	b.WriteString("Create a clear, one-line description of this medical item that would be understandable to someone without medical training.\n")
	b.WriteString("Use common abbreviations where appropriate, but ensure the meaning remains clear to a general audience.\n\n")
	b.WriteString("Item: ")
	b.WriteString(req.Description)

	for _, f := range []Field{
		{"Vendor", req.Vendor},
		{"Category", req.Category},
		{"Subcategory", req.Subcategory},
	} {
		if v := strings.TrimSpace(f.Value); v != "" {
			b.WriteString("\n" + f.Name + ": " + v)
		}
	}

	b.WriteString(`

The description should be concise (under 15 words if possible) and focus on what the item is and its basic purpose.
Use common abbreviations (like 'pkg' for package, 'qty' for quantity, etc.) to keep it short.
If measurements are present, include them using standard abbreviations (cm, ml, etc.)
Do NOT include any brand names unless they are necessary for identification.
Make sure your response is ONLY the one-line description and nothing else.`)
	return b.String()
}
