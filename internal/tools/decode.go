package tools

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/liliang-cn/askdesk/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their wire names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("calendar_date", func(fl validator.FieldLevel) bool {
		s := strings.ToLower(strings.TrimSpace(fl.Field().String()))
		if s == "today" || s == "tomorrow" {
			return true
		}
		_, err := time.Parse(time.DateOnly, s)
		return err == nil
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, _, err := parseClock(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("iso_datetime", func(fl validator.FieldLevel) bool {
		_, err := parseDateTime(fl.Field().String(), time.UTC)
		return err == nil
	})

	return v
}

// Decode checks raw model arguments against a tool's schema and converts
// them into the tool's typed argument set. Any failure is a
// *domain.ValidationError and nothing has been called yet.
func Decode(def domain.ToolDefinition, raw map[string]any) (Args, error) {
	factory, ok := newArgs[def.Name]
	if !ok {
		return nil, &domain.ValidationError{Field: "name", Message: fmt.Sprintf("unknown tool %q", def.Name), Err: domain.ErrInvalidRequest}
	}

	if err := checkSchema(def, raw); err != nil {
		return nil, err
	}

	args := factory()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  args,
		TagName: "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, &domain.ValidationError{Message: err.Error(), Err: domain.ErrInvalidRequest}
	}

	if err := validate.Struct(args); err != nil {
		return nil, fromValidator(err)
	}
	return args, nil
}

func checkSchema(def domain.ToolDefinition, raw map[string]any) error {
	for _, p := range def.Params {
		v, present := raw[p.Name]
		if !present || v == nil {
			if p.Required {
				return &domain.ValidationError{Field: p.Name, Message: "is required", Err: domain.ErrInvalidRequest}
			}
			continue
		}

		if !hasType(v, p.Type) {
			return &domain.ValidationError{Field: p.Name, Message: fmt.Sprintf("must be a %s", p.Type), Err: domain.ErrInvalidRequest}
		}

		if len(p.Enum) > 0 {
			s, _ := v.(string)
			if !slices.Contains(p.Enum, s) {
				return &domain.ValidationError{
					Field:   p.Name,
					Message: fmt.Sprintf("must be one of %s", strings.Join(p.Enum, ", ")),
					Err:     domain.ErrInvalidRequest,
				}
			}
		}
	}
	return nil
}

func hasType(v any, t domain.ParamType) bool {
	switch t {
	case domain.ParamString:
		_, ok := v.(string)
		return ok
	case domain.ParamBoolean:
		_, ok := v.(bool)
		return ok
	case domain.ParamNumber:
		switch v.(type) {
		case float64, float32, int, int64, int32:
			return true
		}
		return false
	case domain.ParamInteger:
		switch n := v.(type) {
		case int, int64, int32:
			return true
		case float64:
			return n == math.Trunc(n)
		}
		return false
	}
	return false
}

func fromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &domain.ValidationError{Message: err.Error(), Err: domain.ErrInvalidRequest}
	}

	fe := verrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "email":
		msg = "must be a valid email address"
	case "oneof":
		msg = "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "calendar_date":
		msg = "must be YYYY-MM-DD, today or tomorrow"
	case "clock":
		msg = "must be a 24-hour time like 13:00"
	case "iso_datetime":
		msg = "must be an ISO 8601 date-time like 2025-01-31T14:00:00"
	default:
		msg = "failed " + fe.Tag() + " check"
	}
	return &domain.ValidationError{Field: fe.Field(), Message: msg, Err: domain.ErrInvalidRequest}
}
