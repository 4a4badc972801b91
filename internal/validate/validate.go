// Package validate checks path parameters, query strings and JSON bodies
// before any handler logic runs. Every failure is an *apierr.Error with
// code VALIDATION_ERROR and a field -> message map.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"time"

	"cost-control-api/internal/apierr"
	"cost-control-api/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	jobNumberRE = regexp.MustCompile(`^\d{2}[A-Z]{3}\d{4}$`)
	monthRE     = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

	validate = newValidator()
)

const maxBodyBytes = 1 << 20

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	mustRegister(v, "jobnumber", func(fl validator.FieldLevel) bool {
		return jobNumberRE.MatchString(fl.Field().String())
	})
	mustRegister(v, "yearmonth", func(fl validator.FieldLevel) bool {
		return IsMonth(fl.Field().String())
	})
	mustRegister(v, "isodatetime", func(fl validator.FieldLevel) bool {
		_, err := ParseDateTime(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "isodate", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	})
	// decimals reach rules as float64 through the custom type func above
	mustRegister(v, "cents", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.Float64 {
			return false
		}
		d := decimal.NewFromFloat(fl.Field().Float())
		return d.Equal(d.Round(2))
	})

	v.RegisterStructValidation(projectDates, models.CreateProjectRequest{}, models.UpdateProjectRequest{})
	v.RegisterStructValidation(employeeDates, models.CreateEmployeeRequest{}, models.UpdateEmployeeRequest{})
	v.RegisterStructValidation(timeEntryHours, models.CreateTimeEntryRequest{}, models.UpdateTimeEntryRequest{})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s: %v", tag, err))
	}
}

// IsMonth reports whether s is a YYYY-MM month.
func IsMonth(s string) bool {
	return monthRE.MatchString(s)
}

// ParseDateTime accepts RFC 3339 timestamps.
func ParseDateTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// ParseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// Struct runs tag and struct-level rules against s.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		path := fieldPath(fe.Namespace())
		if _, seen := details[path]; !seen {
			details[path] = message(fe)
		}
	}
	return apierr.Validation("Invalid request data", details)
}

// Body decodes the JSON request body into dst and validates it. An empty
// body decodes as {}.
func Body(r *http.Request, dst any) error {
	if err := Decode(r, dst); err != nil {
		return err
	}
	return Struct(dst)
}

// Decode reads the JSON request body into dst without validating it.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apierr.Validation("Invalid JSON body", map[string]string{"body": decodeMessage(err)})
	}
	return nil
}

func decodeMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s: expected %s", typeErr.Field, typeErr.Type.String())
	}
	return err.Error()
}

// fieldPath strips the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "Required"
	case "min":
		if isString {
			return fmt.Sprintf("Must be at least %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("Must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("Must be greater than or equal to %s", fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("Must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("Must be less than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("Must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("Must be less than or equal to %s", fe.Param())
	case "oneof":
		return "Must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "uuid":
		return "Invalid UUID format"
	case "jobnumber":
		return "Invalid job number format (e.g., 23CON0002)"
	case "yearmonth":
		return "Month must be in YYYY-MM format"
	case "isodatetime":
		return "Invalid datetime"
	case "isodate":
		return "Invalid date"
	case "cents":
		return "Must have at most 2 decimal places"
	case "enddate":
		return "End date must be after start date"
	case "totalhours":
		return "Total hours cannot exceed 24"
	}
	return "Invalid value"
}
