package file

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	mustRegister(v, "regexp", func(fl validator.FieldLevel) bool {
		_, err := regexp.Compile(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "sourcename", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		return name != "" && !strings.HasPrefix(name, ".") && !strings.ContainsAny(name, `/\`)
	})
	v.RegisterStructValidation(validateChunking, ChunkingConfig{})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

// validateChunking requires the overlap to stay below the chunk size.
func validateChunking(sl validator.StructLevel) {
	c := sl.Current().Interface().(ChunkingConfig)
	if c.MaxChars > 0 && c.OverlapChars >= c.MaxChars {
		sl.ReportError(c.OverlapChars, "overlap_chars", "OverlapChars", "ltmaxchars", "")
	}
}

// Validate checks the configuration. All violations are reported together.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fmt.Errorf("%s: %s", fieldPath(fe), describe(fe)))
	}
	return fmt.Errorf("invalid config: %w: %w", domain.ErrInvalidInput, errors.Join(errs...))
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "regexp":
		return fmt.Sprintf("%q is not a valid regular expression", fe.Value())
	case "sourcename":
		return fmt.Sprintf("%q is not a valid source name", fe.Value())
	case "ltmaxchars":
		return "must be smaller than max_chars"
	case "nefield":
		return "must differ from raw_root"
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
