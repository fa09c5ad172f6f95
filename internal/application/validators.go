package application

import (
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-reelscout/infrastructure/llm"
)

// configValidator returns the shared validator with the configuration
// tags registered. Registration happens once; validator.Validate is safe
// for concurrent use afterwards.
var configValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New()
	if err := RegisterConfigValidators(v); err != nil {
		panic(err)
	}
	return v
})

// RegisterConfigValidators adds the custom tags used by Config:
//
//	llmprovider  the value names a registered llm provider
func RegisterConfigValidators(v *validator.Validate) error {
	return v.RegisterValidation("llmprovider", validateLLMProvider)
}

// validateLLMProvider accepts any provider registered with the llm package.
func validateLLMProvider(fl validator.FieldLevel) bool {
	return slices.Contains(llm.Providers(), fl.Field().String())
}
