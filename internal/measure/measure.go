// Package measure provides the user's body measurements and the mesh asset
// they should be fitted onto.
package measure

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Record is a body measurement set in centimeters. It is immutable for the
// lifetime of a session.
type Record struct {
	Height float32 `json:"height" yaml:"height" validate:"gt=0"`
	Chest  float32 `json:"chest" yaml:"chest" validate:"gt=0"`
	Waist  float32 `json:"waist" yaml:"waist" validate:"gt=0"`
	Hips   float32 `json:"hips" yaml:"hips" validate:"gt=0"`
}

// Profile couples a measurement record with the mesh asset to fit.
type Profile struct {
	Record       Record
	MeshURL      string
	ClothingLink string
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate reports whether every field is present and positive.
// NaN fails the gt=0 comparison and is rejected too.
func (r Record) Validate() error {
	if err := recordValidator().Struct(r); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("measurement %s must be > 0, got %v", fe.Field(), fe.Value())
		}
		return err
	}
	return nil
}

func (r Record) String() string {
	return fmt.Sprintf("height=%.1f chest=%.1f waist=%.1f hips=%.1f", r.Height, r.Chest, r.Waist, r.Hips)
}
