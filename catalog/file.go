package catalog

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// File is the on-disk representation of a catalog.
//
//	image_base: https://mykonosbusmap.com/images/
//	routes:
//	  - name: fabrika (mykonos town) - airport
//	    external_id: 1559047590770-061945df-35ac
//	    image: stops_fabrika-airport_01.svg
type File struct {
	ImageBase string  `yaml:"image_base" validate:"omitempty,url"`
	Routes    []Route `yaml:"routes" validate:"required,min=1,dive"`
}

// LoadFile reads and validates a YAML catalog.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if err := validator.New().Struct(f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return New(f.ImageBase, f.Routes...)
}
