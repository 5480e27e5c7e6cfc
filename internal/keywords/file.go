package keywords

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kiranshivaraju/medinventory/pkg/models"
)

// File is the YAML layout of a keyword tables file:
//
//	category:
//	  - keyword: gauze
//	    label: Medical & Surgical Supplies
//	facility:
//	  needs_review: [expired, damaged]
//	  rural: [thermometer]
//	  district: [x-ray]
//
// Sections left out of the file keep their built-in defaults.
type File struct {
	Category []Entry `yaml:"category"`
	Facility struct {
		NeedsReview []string `yaml:"needs_review"`
		Rural       []string `yaml:"rural"`
		District    []string `yaml:"district"`
	} `yaml:"facility"`
}

// LoadFile reads keyword tables from a YAML file, falling back to the built-in
// table for every section the file leaves empty.
func LoadFile(path string) (Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read keywords file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML keyword tables. See File for the layout.
func Parse(data []byte) (Tables, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Tables{}, fmt.Errorf("parse keywords: %w", err)
	}

	allowed := models.ProductCategories
	for i, e := range f.Category {
		if !models.Contains(allowed, e.Label) {
			return Tables{}, fmt.Errorf("category entry %d (%q): unknown label %q", i, e.Keyword, e.Label)
		}
	}

	ts := Default()
	if len(f.Category) > 0 {
		ts.Category = NewTable(f.Category)
	}
	if len(f.Facility.NeedsReview) > 0 {
		ts.FacilityNeedsReview = NewList(models.LabelNeedsReview, f.Facility.NeedsReview...)
	}
	if len(f.Facility.Rural) > 0 {
		ts.FacilityRural = NewList(models.FacilityRural, f.Facility.Rural...)
	}
	if len(f.Facility.District) > 0 {
		ts.FacilityDistrict = NewList(models.FacilityDistrict, f.Facility.District...)
	}
	return ts, nil
}
