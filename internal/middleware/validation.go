package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "ecomeda/internal/errors"
	"ecomeda/pkg/contracts/domain"
)

// maxJSONBody caps request bodies read by DecodeJSON
const maxJSONBody = 1 << 20

var (
	spreadsheetIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	// optional sheet name, then an optional A1 or column-only reference
	a1RangePattern = regexp.MustCompile(`(?i)^(?:'[^']+'|[^!']+)(?:![A-Z]*[0-9]*(?::[A-Z]*[0-9]*)?)?$`)
)

// RequestBinder decodes request bodies and query strings into tagged
// structs and runs validator rules over the result. Field names in
// errors come from the query or json tag.
type RequestBinder struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewRequestBinder creates a binder with the analysis-specific rules
// registered: viewname, sheetsid and a1range.
func NewRequestBinder(logger *slog.Logger) *RequestBinder {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New()
	v.RegisterValidation("viewname", func(fl validator.FieldLevel) bool {
		return IsViewName(fl.Field().String())
	})
	v.RegisterValidation("sheetsid", func(fl validator.FieldLevel) bool {
		return spreadsheetIDPattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("a1range", func(fl validator.FieldLevel) bool {
		return a1RangePattern.MatchString(fl.Field().String())
	})
	v.RegisterTagNameFunc(fieldName)

	return &RequestBinder{
		validate: v,
		logger:   logger.With(slog.String("component", "request_binder")),
	}
}

func fieldName(fld reflect.StructField) string {
	if name := fld.Tag.Get("query"); name != "" {
		return name
	}
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// DecodeJSON reads one JSON object into dst and validates it. Unknown
// fields and trailing data are rejected.
func (b *RequestBinder) DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return apperrors.ErrValidation("body", "request body is required")
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err == nil && dec.More() {
		err = errors.New("unexpected data after JSON object")
	}
	if err != nil {
		b.logger.DebugContext(r.Context(), "rejected JSON body",
			slog.String("error", err.Error()),
			slog.String("request_id", GetRequestID(r.Context())))
		if errors.Is(err, io.EOF) {
			return apperrors.ErrValidation("body", "request body is required")
		}
		return apperrors.New(http.StatusBadRequest, "INVALID_JSON", "Request body contains invalid JSON: "+err.Error())
	}

	return b.Validate(dst)
}

// DecodeQuery copies URL query values into the query-tagged fields of dst,
// which must be a pointer to a struct, and validates it. Absent parameters
// leave the field untouched so callers can preset defaults.
func (b *RequestBinder) DecodeQuery(r *http.Request, dst interface{}) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("DecodeQuery: want pointer to struct, got %T", dst)
	}

	values := r.URL.Query()
	target := rv.Elem()
	var bad []apperrors.ValidationError

	for i := 0; i < target.NumField(); i++ {
		name := target.Type().Field(i).Tag.Get("query")
		if name == "" || !values.Has(name) {
			continue
		}
		raw := strings.TrimSpace(values.Get(name))
		field := target.Field(i)

		switch field.Kind() {
		case reflect.String:
			field.SetString(raw)
		case reflect.Int, reflect.Int32, reflect.Int64:
			n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
			if err != nil {
				bad = append(bad, apperrors.ValidationError{Field: name, Message: name + " must be a valid integer"})
				continue
			}
			field.SetInt(n)
		case reflect.Bool:
			v, err := strconv.ParseBool(raw)
			if err != nil {
				bad = append(bad, apperrors.ValidationError{Field: name, Message: name + " must be true or false"})
				continue
			}
			field.SetBool(v)
		default:
			return fmt.Errorf("DecodeQuery: field %q has unsupported kind %s", name, field.Kind())
		}
	}

	if len(bad) > 0 {
		return apperrors.NewValidationErrors(bad)
	}
	return b.Validate(dst)
}

// Validate runs the struct rules and converts failures into a
// VALIDATION_FAILED error listing every offending field.
func (b *RequestBinder) Validate(v interface{}) error {
	err := b.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return apperrors.InvalidRequestWithError(err)
	}

	out := make([]apperrors.ValidationError, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		out = append(out, apperrors.ValidationError{
			Field:   fe.Field(),
			Message: describeRule(fe),
		})
	}
	return apperrors.NewValidationErrors(out)
}

func describeRule(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "viewname":
		return field + " must name an aggregate view or correlation"
	case "sheetsid":
		return field + " must be a Google Sheets document ID"
	case "a1range":
		return field + " must be a sheet name or A1 range such as Orders!A1:I"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// IsViewName reports whether name is an aggregate view or the correlation
// matrix
func IsViewName(name string) bool {
	if domain.ViewName(name) == domain.ViewCorrelation {
		return true
	}
	for _, v := range domain.AllViews {
		if string(v) == name {
			return true
		}
	}
	return false
}

// RequireMediaType rejects requests whose Content-Type media type is not
// one of allowed with 415, or 400 when the header is missing.
func RequireMediaType(errorHandler *apperrors.ErrorHandler, allowed ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Content-Type")
			if header == "" {
				errorHandler.HandleError(w, r, apperrors.New(http.StatusBadRequest,
					"MISSING_CONTENT_TYPE", "Content-Type header is required"))
				return
			}

			mediaType, _, err := mime.ParseMediaType(header)
			if err == nil {
				for _, a := range allowed {
					if mediaType == a {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			errorHandler.HandleError(w, r, apperrors.NewWithDetails(
				http.StatusUnsupportedMediaType,
				"UNSUPPORTED_MEDIA_TYPE",
				"Unsupported content type",
				map[string]interface{}{
					"content_type": header,
					"allowed":      allowed,
				},
			))
		})
	}
}
