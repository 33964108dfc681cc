// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

// Package validation wraps go-playground/validator with a shared instance,
// the sigvoid-specific tags and readable error messages.
//
// Custom tags:
//   - singleline: no carriage return or line feed (values end up on the
//     newline-delimited sensor link)
//   - cmdname: a sensor command name, upper-case letters, digits and '_'
//
// Field names in errors are taken from the json tag when present.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one failed rule.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Message string
}

// Error is returned by ValidateStruct when one or more rules fail.
type Error struct {
	fields []FieldError
}

// Fields returns the individual failures in declaration order.
func (e *Error) Fields() []FieldError {
	return e.fields
}

// Tags maps each failed field to the tag that rejected it.
func (e *Error) Tags() map[string]string {
	out := make(map[string]string, len(e.fields))
	for _, f := range e.fields {
		out[f.Field] = f.Tag
	}
	return out
}

func (e *Error) Error() string {
	if len(e.fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.fields))
	for i, f := range e.fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// Validator returns the shared instance. It is safe for concurrent use.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			switch name {
			case "-":
				return ""
			case "":
				return f.Name
			}
			return name
		})
		// Registration only fails for empty tags or nil funcs.
		_ = v.RegisterValidation("singleline", func(fl validator.FieldLevel) bool {
			return !strings.ContainsAny(fl.Field().String(), "\r\n")
		})
		_ = v.RegisterValidation("cmdname", func(fl validator.FieldLevel) bool {
			return isCommandName(fl.Field().String())
		})
		validate = v
	})
	return validate
}

func isCommandName(s string) bool {
	if s == "" || len(s) > 32 {
		return false
	}
	for _, c := range s {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '_' {
			return false
		}
	}
	return true
}

// ValidateStruct validates s. It returns nil on success.
func ValidateStruct(s any) *Error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{fields: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}
	fields := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: translate(fe),
		}
	}
	return &Error{fields: fields}
}

// Var validates a single value against tag.
func Var(value any, tag string) error {
	return Validator().Var(value, tag)
}

// IsMAC reports whether s parses as a hardware address.
func IsMAC(s string) bool {
	return Var(s, "required,mac") == nil
}

var messages = map[string]string{
	"required":   "%s is required",
	"mac":        "%s must be a hardware address",
	"singleline": "%s must be a single line",
	"cmdname":    "%s must be an upper-case command name",
	"uppercase":  "%s must be upper-case",
}

var messagesWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
}

func translate(fe validator.FieldError) string {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()
	if tmpl, ok := messages[tag]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	if tmpl, ok := messagesWithParam[tag]; ok {
		return fmt.Sprintf(tmpl, field, param)
	}

	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch tag {
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", field, param, unit)
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", field, param, unit)
	}
	return fmt.Sprintf("%s failed %s validation", field, tag)
}
