package service

import (
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"retailpos/internal/pricing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Request DTOs are checked against their `binding` tags, the same tags gin
// evaluates in ShouldBindJSON, so direct callers get identical rules.
var validate = newValidator()

var itemNamespace = regexp.MustCompile(`\.items\[(\d+)\]\.`)

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	v.RegisterTagNameFunc(JSONFieldName)
	return v
}

// JSONFieldName names a struct field by its json key, so failures read like the request body
func JSONFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

func validateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		return FromValidator(err)
	}
	return nil
}

// FromValidator turns the first validator failure into a ValidationError carrying
// the json field name and, for order lines, the line index. Other errors pass through.
func FromValidator(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}
	fe := errs[0]
	ve := &ValidationError{Field: fe.Field(), Reason: failureText(fe)}
	if m := itemNamespace.FindStringSubmatch(fe.Namespace()); m != nil {
		if i, convErr := strconv.Atoi(m[1]); convErr == nil {
			ve.Item = itemIndex(i)
		}
	}
	return ve
}

func failureText(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "is not a valid id"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must contain at least " + fe.Param() + " item(s)"
		}
		if fe.Param() == "0" {
			return "must not be negative"
		}
		return "must be at least " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "ne":
		if fe.Param() == "0" {
			return "must not be zero"
		}
		return "must not be " + fe.Param()
	}
	return "failed the " + fe.Tag() + " check"
}

// checkAmount enforces what validator cannot express on decimal.Decimal:
// non-negative and no finer than the stored scale.
func checkAmount(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return &ValidationError{Field: field, Reason: "must not be negative"}
	}
	if !pricing.FitsScale(d) {
		return &ValidationError{Field: field, Reason: "must have at most " + strconv.Itoa(pricing.Scale) + " decimal places"}
	}
	return nil
}
