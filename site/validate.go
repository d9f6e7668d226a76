package site

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the struct tags of an item before it is written.
func Validate(item Item) error {
	if item == nil {
		return fmt.Errorf("site: nil item")
	}
	if err := validatorInstance().Struct(item); err != nil {
		return fmt.Errorf("site: invalid %s item: %w", item.Collection(), err)
	}
	return nil
}
