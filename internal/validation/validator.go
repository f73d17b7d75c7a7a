// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

// Package validation checks API request bodies and query parameters with
// go-playground/validator before they reach the recommendation engine.
//
// Request structs name their fields with `query` or `json` tags and those
// names are what error messages and API details report:
//
//	q := validation.RecommendationQuery{Limit: 500}
//	if verr := validation.ValidateStruct(&q); verr != nil {
//	    apiErr := verr.ToAPIError() // "limit must be less than or equal to 100"
//	}
//
// The algorithm, feedback_type and event_type rules accept exactly the names
// the engine parses.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/newsroom/internal/recommend"
)

// ErrorCode is the API error code for every validation failure.
const ErrorCode = "VALIDATION_ERROR"

const (
	ruleAlgorithm    = "algorithm"
	ruleFeedbackType = "feedback_type"
	ruleEventType    = "event_type"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one failed rule on one field.
type FieldError struct {
	Field   string
	Rule    string
	Param   string
	Value   any
	Message string
}

func (e FieldError) Error() string { return e.Message }

// RequestValidationError collects every failed rule of a request.
type RequestValidationError struct {
	Fields []FieldError
}

func (ve *RequestValidationError) Error() string {
	if len(ve.Fields) == 0 {
		return "validation failed"
	}
	return strings.Join(ve.messages(), "; ")
}

func (ve *RequestValidationError) messages() []string {
	out := make([]string, len(ve.Fields))
	for i := range ve.Fields {
		out[i] = ve.Fields[i].Message
	}
	return out
}

// APIError is the error payload of the API envelope.
// It mirrors api.APIError to avoid an import cycle.
type APIError struct {
	Code    string
	Message string
	Details map[string]any
}

// ToAPIError converts the failures to the VALIDATION_ERROR payload. A single
// failure reports its field, rule and value; several are listed under
// "fields".
func (ve *RequestValidationError) ToAPIError() *APIError {
	switch len(ve.Fields) {
	case 0:
		return &APIError{Code: ErrorCode, Message: "Validation failed"}
	case 1:
		fe := ve.Fields[0]
		return &APIError{
			Code:    ErrorCode,
			Message: fe.Message,
			Details: map[string]any{"field": fe.Field, "tag": fe.Rule, "value": fe.Value},
		}
	}

	fields := make([]map[string]any, len(ve.Fields))
	for i, fe := range ve.Fields {
		fields[i] = map[string]any{"field": fe.Field, "tag": fe.Rule, "message": fe.Message}
	}
	return &APIError{
		Code:    ErrorCode,
		Message: ve.Error(),
		Details: map[string]any{"fields": fields},
	}
}

// GetValidator returns the shared validator with the recommendation rules
// registered. Safe for concurrent use.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(fieldName)

		// Registration only fails for empty tags or nil funcs.
		_ = validate.RegisterValidation(ruleAlgorithm, func(fl validator.FieldLevel) bool {
			_, err := recommend.ParseAlgorithm(fl.Field().String())
			return err == nil
		})
		_ = validate.RegisterValidation(ruleFeedbackType, func(fl validator.FieldLevel) bool {
			return recommend.FeedbackType(fl.Field().String()).Valid()
		})
		_ = validate.RegisterValidation(ruleEventType, func(fl validator.FieldLevel) bool {
			return recommend.EventType(fl.Field().String()).Valid()
		})
	})
	return validate
}

// fieldName reports fields by their query name, then their JSON name.
func fieldName(f reflect.StructField) string {
	for _, key := range []string{"query", "json"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// ValidateStruct returns nil when s passes every rule.
func ValidateStruct(s any) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var failures validator.ValidationErrors
	if !errors.As(err, &failures) {
		return &RequestValidationError{Fields: []FieldError{{Field: "unknown", Rule: "unknown", Message: err.Error()}}}
	}

	out := &RequestValidationError{Fields: make([]FieldError, len(failures))}
	for i, fe := range failures {
		out.Fields[i] = FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Value:   fe.Value(),
			Message: describe(fe),
		}
	}
	return out
}

func describe(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case ruleAlgorithm:
		return field + " must be one of: personal, collaborative, graph, trending, mixed, ai"
	case ruleFeedbackType:
		return field + " must be one of: like, dislike, not_interested, already_read, clicked, shared"
	case ruleEventType:
		return field + " must be one of: view, like, share, comment, readingTime"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", field, param, unitOf(fe.Kind()))
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", field, param, unitOf(fe.Kind()))
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func unitOf(kind reflect.Kind) string {
	switch kind {
	case reflect.String:
		return " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		return " items"
	}
	return ""
}
