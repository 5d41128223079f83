package dto

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// bytecodeRegexp matches hex bytecode with an optional 0x prefix and whole bytes only
var bytecodeRegexp = regexp.MustCompile(`^(0x)?([0-9a-fA-F]{2})+$`)

var registerOnce sync.Once

// IsBytecode reports whether s is a well-formed contract bytecode
func IsBytecode(s string) bool {
	return bytecodeRegexp.MatchString(s)
}

func validateBytecode(fl validator.FieldLevel) bool {
	return IsBytecode(fl.Field().String())
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

// RegisterValidators adds the custom tags to gin's validator. Safe to call more than once.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		err = v.RegisterValidation("bytecode", validateBytecode)
	})
	return err
}

// DescribeValidationError turns binding errors into a short client-facing message
func DescribeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "bytecode":
		return fmt.Sprintf("%s must be hex encoded bytecode", fe.Field())
	case "min":
		return fmt.Sprintf("%s must not be empty", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
