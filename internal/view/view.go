package view

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Response[T any] struct {
	Data    T            `json:"data"`
	Message string       `json:"message,omitempty"`
	Error   string       `json:"error,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
	Paging  *Pagination  `json:"paging,omitempty"`
}

type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

type Pagination struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// MessageResponse documents a plain success body.
type MessageResponse struct {
	Data    string `json:"data"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse documents a failure body.
type ErrorResponse struct {
	Data    any          `json:"data"`
	Message string       `json:"message"`
	Error   string       `json:"error"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// CreateResponse builds the envelope every endpoint returns. payload is the
// request that failed validation, used to report json field names.
func CreateResponse[T any](data T, err error, payload any, message string) Response[T] {
	resp := Response[T]{
		Data:    data,
		Message: message,
	}
	if err == nil {
		return resp
	}

	resp.Error = err.Error()
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Error = "validation failed"
		for _, fe := range verrs {
			resp.Errors = append(resp.Errors, FieldError{
				Field: jsonFieldName(payload, fe.StructField()),
				Rule:  fe.Tag(),
			})
		}
	}
	return resp
}

func CreatePaginatedResponse[T any](data T, total int64, limit, offset int) Response[T] {
	return Response[T]{
		Data:   data,
		Paging: &Pagination{Total: total, Limit: limit, Offset: offset},
	}
}

func jsonFieldName(payload any, structField string) string {
	t := reflect.TypeOf(payload)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return structField
	}
	f, ok := t.FieldByName(structField)
	if !ok {
		return structField
	}
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return structField
	}
	return name
}
