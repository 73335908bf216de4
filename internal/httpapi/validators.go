package httpapi

import (
	"fmt"
	"sync"

	"github.com/MarkoPoloResearchLab/internboard/internal/board"
	"github.com/MarkoPoloResearchLab/internboard/pkg/credits"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	validatorsOnce sync.Once
	validatorsErr  error
)

// registerValidators adds the appstatus and role tags to gin's binding engine.
func registerValidators() error {
	validatorsOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			validatorsErr = fmt.Errorf("%w: unexpected binding engine %T", ErrInvalidServerConfig, binding.Validator.Engine())
			return
		}
		if err := engine.RegisterValidation("appstatus", validateApplicationStatus); err != nil {
			validatorsErr = err
			return
		}
		validatorsErr = engine.RegisterValidation("role", validateRole)
	})
	return validatorsErr
}

func validateApplicationStatus(field validator.FieldLevel) bool {
	_, err := board.ParseApplicationStatus(field.Field().String())
	return err == nil
}

func validateRole(field validator.FieldLevel) bool {
	_, err := credits.ParseRole(field.Field().String())
	return err == nil
}
