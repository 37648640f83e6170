// Package bind decodes and validates JSON request bodies
package bind

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	perr "modloader/internal/platform/errors"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entrans "github.com/go-playground/validator/v10/translations/en"
)

// MaxBody caps a request body
const MaxBody = 1 << 20

var (
	once  sync.Once
	valid *validator.Validate
	trans ut.Translator
)

func setup() {
	once.Do(func() {
		loc := en.New()
		trans, _ = ut.New(loc, loc).GetTranslator("en")

		valid = validator.New(validator.WithRequiredStructEnabled())
		valid.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		_ = entrans.RegisterDefaultTranslations(valid, trans)
		translate("min", "{0} must be at least {1}")
		translate("max", "{0} must be at most {1}")
	})
}

// translate overrides the message for tag; {0} is the field and {1} the tag param
func translate(tag, msg string) {
	_ = valid.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, msg, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field(), fe.Param())
			return s
		})
}

// RegisterTag adds a custom validation tag and its message
func RegisterTag(tag, msg string, fn func(string) bool) error {
	setup()
	err := valid.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return fl.Field().Kind() != reflect.String || fn(fl.Field().String())
	})
	if err != nil {
		return err
	}
	translate(tag, msg)
	return nil
}

// ParseJSON decodes a single JSON value into T and validates it
// GET, HEAD, DELETE and OPTIONS may send no body; other methods must
func ParseJSON[T any](r *http.Request) (T, error) {
	var zero, dst T
	if r.Body == nil {
		r.Body = http.NoBody
	}
	defer r.Body.Close()

	lr := &io.LimitedReader{R: r.Body, N: MaxBody + 1}
	br := bufio.NewReader(lr)
	if _, err := br.Peek(1); errors.Is(err, io.EOF) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodDelete, http.MethodOptions:
			return zero, nil
		}
		return zero, perr.JSONErrf("empty body")
	}

	dec := json.NewDecoder(br)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&dst); err != nil {
		if lr.N <= 0 {
			return zero, perr.JSONErrf("body exceeds %d bytes", MaxBody)
		}
		return zero, perr.JSONErrf("invalid JSON: %v", err)
	}
	if dec.More() {
		return zero, perr.JSONErrf("unexpected trailing data")
	}
	if err := Validate(dst); err != nil {
		return zero, err
	}
	return dst, nil
}

// Validate runs struct tags on v and reports the first failing field
func Validate(v any) error {
	setup()
	err := valid.Struct(v)
	if err == nil {
		return nil
	}
	var fes validator.ValidationErrors
	if errors.As(err, &fes) && len(fes) > 0 {
		fe := fes[0]
		return perr.WithField(perr.Validationf("%s", fe.Translate(trans)), fe.Field())
	}
	return perr.Wrap(err, perr.ErrorCodeValidation, "validation")
}
