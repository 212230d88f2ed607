// Package validate turns untyped request input (path parameters, query
// strings and JSON bodies) into typed shape structs.
//
// A shape is a flat struct. Each exported field names its input key with a
// json tag, its rules with a validate tag (go-playground syntax) and an
// optional default tag. Fields tagged schema:"absent" must not appear in the
// input at all. Keys that no field declares are dropped.
package validate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Source names the part of a request a shape is applied to.
type Source string

const (
	SourceParams Source = "params"
	SourceQuery  Source = "query"
	SourceBody   Source = "body"
)

const (
	CodeInvalidType   = "invalid_type"
	CodeInvalidString = "invalid_string"
	CodeTooSmall      = "too_small"
	CodeTooBig        = "too_big"
	CodeCustom        = "custom"
)

// MaxBodyBytes bounds how much of a request body is read.
const MaxBodyBytes = 1 << 20

// Issue describes one failing field. Path is the field's address inside the
// validated input; it is empty when the input as a whole is unusable.
type Issue struct {
	Code     string   `json:"code"`
	Expected string   `json:"expected,omitempty"`
	Received string   `json:"received,omitempty"`
	Message  string   `json:"message"`
	Path     []string `json:"path"`
}

// Error is returned when an input does not match its shape.
type Error struct {
	Source Source
	Issues []Issue
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.Join(issue.Path, "."), issue.Message))
	}
	return fmt.Sprintf("validate %s: %s", e.Source, strings.Join(parts, "; "))
}

// Validator decodes raw input into shapes and checks their rules. It is safe
// for concurrent use once built.
type Validator struct {
	rules *validator.Validate
}

// New returns a Validator with the extra rules used by the API shapes.
func New() *Validator {
	rules := validator.New(validator.WithRequiredStructEnabled())
	rules.RegisterTagNameFunc(jsonName)
	// bcrypt only looks at the first 72 bytes, rune based max is not enough.
	_ = rules.RegisterValidationCtx("maxbytes", func(_ context.Context, fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})
	return &Validator{rules: rules}
}

// RegisterRule adds a context aware rule usable from validate tags.
func (v *Validator) RegisterRule(tag string, fn validator.FuncCtx) error {
	return v.rules.RegisterValidationCtx(tag, fn)
}

// Params validates path parameters into dst. Values are coerced to the
// field types.
func (v *Validator) Params(ctx context.Context, params map[string]string, dst any) error {
	raw := make(map[string]any, len(params))
	for key, value := range params {
		raw[key] = value
	}
	return v.apply(ctx, SourceParams, raw, true, dst)
}

// Query validates query parameters into dst. Only the first value of a
// repeated key is used. Values are coerced to the field types.
func (v *Validator) Query(ctx context.Context, values url.Values, dst any) error {
	raw := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			raw[key] = vals[0]
		}
	}
	return v.apply(ctx, SourceQuery, raw, true, dst)
}

// Body validates a JSON object body into dst. An empty body is treated as
// an empty object. JSON values must already have the field's type.
func (v *Validator) Body(ctx context.Context, body io.Reader, dst any) error {
	raw, issue := readObject(body)
	if issue != nil {
		return &Error{Source: SourceBody, Issues: []Issue{*issue}}
	}
	return v.apply(ctx, SourceBody, raw, false, dst)
}

func (v *Validator) apply(ctx context.Context, source Source, raw map[string]any, coerce bool, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := reflect.ValueOf(dst)
	if target.Kind() != reflect.Pointer || target.IsNil() || target.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("validate: destination must be a non-nil struct pointer, got %T", dst)
	}
	shape := target.Elem()
	shape.Set(reflect.Zero(shape.Type()))
	typ := shape.Type()

	var issues []Issue
	order := make(map[string]int, typ.NumField())
	failed := make(map[string]bool)
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		name := jsonName(field)
		if !field.IsExported() || name == "" {
			continue
		}
		order[name] = i
		value, present := raw[name]

		if field.Tag.Get("schema") == "absent" {
			if present {
				received := typeOf(value)
				issues = append(issues, Issue{
					Code:     CodeInvalidType,
					Expected: "never",
					Received: received,
					Message:  fmt.Sprintf("Expected never, received %s", received),
					Path:     []string{name},
				})
				failed[name] = true
			}
			continue
		}

		if !present {
			if def, ok := field.Tag.Lookup("default"); ok {
				if issue := assign(shape.Field(i), def, true); issue != nil {
					return fmt.Errorf("validate: invalid default for %s.%s: %s", typ.Name(), field.Name, issue.Message)
				}
				continue
			}
			if hasRule(field, "required") {
				issues = append(issues, Issue{
					Code:     CodeInvalidType,
					Expected: expectedType(field.Type.Kind(), field.Type),
					Received: "undefined",
					Message:  "Required",
					Path:     []string{name},
				})
				failed[name] = true
			}
			continue
		}

		if issue := assign(shape.Field(i), value, coerce); issue != nil {
			issue.Path = []string{name}
			issues = append(issues, *issue)
			failed[name] = true
		}
	}

	if err := v.rules.StructCtx(ctx, dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate %s: %w", source, err)
		}
		for _, fe := range fieldErrs {
			if failed[fe.Field()] {
				continue
			}
			issues = append(issues, ruleIssue(fe))
		}
	}

	if len(issues) == 0 {
		return nil
	}
	slices.SortStableFunc(issues, func(a, b Issue) int {
		return order[pathKey(a)] - order[pathKey(b)]
	})
	return &Error{Source: source, Issues: issues}
}

func readObject(body io.Reader) (map[string]any, *Issue) {
	if body == nil {
		return map[string]any{}, nil
	}
	data, err := io.ReadAll(io.LimitReader(body, MaxBodyBytes+1))
	if err != nil {
		return nil, &Issue{Code: CodeCustom, Message: "Unable to read request body", Path: []string{}}
	}
	if len(data) > MaxBodyBytes {
		return nil, &Issue{Code: CodeTooBig, Message: "Request body is too large", Path: []string{}}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, &Issue{Code: CodeCustom, Message: "Malformed JSON body", Path: []string{}}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &Issue{Code: CodeCustom, Message: "Malformed JSON body", Path: []string{}}
	}
	obj, ok := value.(map[string]any)
	if !ok {
		received := typeOf(value)
		return nil, &Issue{
			Code:     CodeInvalidType,
			Expected: "object",
			Received: received,
			Message:  fmt.Sprintf("Expected object, received %s", received),
			Path:     []string{},
		}
	}
	return obj, nil
}

// assign stores value into fv, coercing strings into numbers and booleans
// when coerce is set.
func assign(fv reflect.Value, value any, coerce bool) *Issue {
	if fv.Kind() == reflect.Pointer {
		elem := reflect.New(fv.Type().Elem())
		if issue := assign(elem.Elem(), value, coerce); issue != nil {
			return issue
		}
		fv.Set(elem)
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		s, ok := value.(string)
		if !ok {
			return typeIssue("string", value)
		}
		fv.SetString(s)
	case reflect.Bool:
		switch b := value.(type) {
		case bool:
			fv.SetBool(b)
		case string:
			if !coerce {
				return typeIssue("boolean", value)
			}
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			if err != nil {
				return typeIssue("boolean", value)
			}
			fv.SetBool(parsed)
		default:
			return typeIssue("boolean", value)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, issue := toNumber(value, coerce)
		if issue != nil {
			return issue
		}
		if n != math.Trunc(n) {
			return &Issue{Code: CodeInvalidType, Expected: "integer", Received: "float", Message: "Expected integer, received float"}
		}
		if n > math.MaxInt64 || n < math.MinInt64 || fv.OverflowInt(int64(n)) {
			return &Issue{Code: CodeTooBig, Message: "Number is out of range"}
		}
		fv.SetInt(int64(n))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, issue := toNumber(value, coerce)
		if issue != nil {
			return issue
		}
		if n != math.Trunc(n) {
			return &Issue{Code: CodeInvalidType, Expected: "integer", Received: "float", Message: "Expected integer, received float"}
		}
		if n < 0 {
			return &Issue{Code: CodeTooSmall, Message: "Number must be greater than or equal to 0"}
		}
		if n > math.MaxUint64 || fv.OverflowUint(uint64(n)) {
			return &Issue{Code: CodeTooBig, Message: "Number is out of range"}
		}
		fv.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		n, issue := toNumber(value, coerce)
		if issue != nil {
			return issue
		}
		fv.SetFloat(n)
	default:
		return &Issue{Code: CodeCustom, Message: fmt.Sprintf("Unsupported field type %s", fv.Type())}
	}
	return nil
}

func toNumber(value any, coerce bool) (float64, *Issue) {
	switch n := value.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, typeIssue("number", value)
		}
		return f, nil
	case float64:
		return n, nil
	case string:
		if !coerce {
			return 0, typeIssue("number", value)
		}
		trimmed := strings.TrimSpace(n)
		if trimmed == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, &Issue{Code: CodeInvalidType, Expected: "number", Received: "nan", Message: "Expected number, received nan"}
		}
		return f, nil
	}
	return 0, typeIssue("number", value)
}

func typeIssue(expected string, value any) *Issue {
	received := typeOf(value)
	return &Issue{
		Code:     CodeInvalidType,
		Expected: expected,
		Received: received,
		Message:  fmt.Sprintf("Expected %s, received %s", expected, received),
	}
}

func ruleIssue(fe validator.FieldError) Issue {
	path := []string{fe.Field()}
	numeric := isNumeric(fe.Kind())
	param := fe.Param()
	switch fe.Tag() {
	case "required":
		return Issue{Code: CodeInvalidType, Expected: expectedType(fe.Kind(), fe.Type()), Received: "undefined", Message: "Required", Path: path}
	case "email":
		return Issue{Code: CodeInvalidString, Message: "Invalid email", Path: path}
	case "uuid", "uuid4":
		return Issue{Code: CodeInvalidString, Message: "Invalid uuid", Path: path}
	case "url":
		return Issue{Code: CodeInvalidString, Message: "Invalid url", Path: path}
	case "min", "gte":
		if numeric {
			return Issue{Code: CodeTooSmall, Message: "Number must be greater than or equal to " + param, Path: path}
		}
		return Issue{Code: CodeTooSmall, Message: fmt.Sprintf("String must contain at least %s character(s)", param), Path: path}
	case "gt":
		if numeric {
			return Issue{Code: CodeTooSmall, Message: "Number must be greater than " + param, Path: path}
		}
		return Issue{Code: CodeTooSmall, Message: fmt.Sprintf("String must contain more than %s character(s)", param), Path: path}
	case "max", "lte":
		if numeric {
			return Issue{Code: CodeTooBig, Message: "Number must be less than or equal to " + param, Path: path}
		}
		return Issue{Code: CodeTooBig, Message: fmt.Sprintf("String must contain at most %s character(s)", param), Path: path}
	case "lt":
		if numeric {
			return Issue{Code: CodeTooBig, Message: "Number must be less than " + param, Path: path}
		}
		return Issue{Code: CodeTooBig, Message: fmt.Sprintf("String must contain fewer than %s character(s)", param), Path: path}
	case "maxbytes":
		return Issue{Code: CodeTooBig, Message: fmt.Sprintf("String must contain at most %s byte(s)", param), Path: path}
	default:
		return Issue{Code: CodeCustom, Message: "Invalid input", Path: path}
	}
}

func jsonName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return field.Name
	}
	return name
}

func hasRule(field reflect.StructField, rule string) bool {
	for _, r := range strings.Split(field.Tag.Get("validate"), ",") {
		if strings.TrimSpace(r) == rule {
			return true
		}
	}
	return false
}

func pathKey(issue Issue) string {
	if len(issue.Path) == 0 {
		return ""
	}
	return issue.Path[0]
}

func typeOf(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return "unknown"
	}
}

func expectedType(kind reflect.Kind, typ reflect.Type) string {
	if kind == reflect.Pointer && typ != nil {
		kind = typ.Elem().Kind()
	}
	switch {
	case kind == reflect.String:
		return "string"
	case kind == reflect.Bool:
		return "boolean"
	case isNumeric(kind):
		return "number"
	default:
		return kind.String()
	}
}

func isNumeric(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
