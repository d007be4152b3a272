package model

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// validRate accepts a decimal string in [0,1], the service charge fraction.
func validRate(fl validator.FieldLevel) bool {
	value, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return !value.IsNegative() && value.LessThanOrEqual(decimal.NewFromInt(1))
}

// RegisterValidations installs custom binding validators on gin's validator
// engine. Must be called before the router starts binding requests.
func RegisterValidations() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("rate", validRate)
}
