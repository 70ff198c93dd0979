package errors

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorFormatting(t *testing.T) {
	cause := io.ErrUnexpectedEOF

	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "with cause",
			err:  NewParsingError("malformed delimited file", cause),
			want: "[PARSING] malformed delimited file: unexpected EOF",
		},
		{
			name: "without cause",
			err:  NewNotFoundError("analysis abc"),
			want: "[NOT_FOUND] analysis abc not found",
		},
		{
			name: "unsupported format",
			err:  NewUnsupportedFormatError(".xls"),
			want: `[UNSUPPORTED_FORMAT] unsupported file format ".xls"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestAppErrorUnwrapAndType(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("export view: %w", NewStorageError("failed to write", cause))

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsType(err, ErrTypeStorage))
	assert.False(t, IsType(err, ErrTypeParsing))

	typ, ok := TypeOf(err)
	require.True(t, ok)
	assert.Equal(t, ErrTypeStorage, typ)

	_, ok = TypeOf(cause)
	assert.False(t, ok)
	assert.False(t, IsType(nil, ErrTypeStorage))
}

func TestAppErrorContext(t *testing.T) {
	err := NewTooLargeError(1024).WithContext("file", "orders.csv")
	assert.Equal(t, int64(1024), err.Context["limit_bytes"])
	assert.Equal(t, "orders.csv", err.Context["file"])

	bare := &AppError{Type: ErrTypeConfig}
	bare.WithContext("k", "v")
	assert.Equal(t, "v", bare.Context["k"])

	up := NewUpstreamError("google sheets", errors.New("503"))
	assert.Equal(t, "google sheets", up.Context["service"])
	assert.Equal(t, ErrTypeUpstream, up.Type)
}

func TestAPIErrorHelpers(t *testing.T) {
	err := ErrValidation("top_n", "must be positive")
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, ValidationError{Field: "top_n", Message: "must be positive"}, err.Details)

	nf := AnalysisNotFoundError("analysis 42 not found")
	assert.Equal(t, CodeAnalysisNotFound, nf.ErrorCode)
	assert.Equal(t, http.StatusNotFound, nf.StatusCode)
	assert.Equal(t, "analysis 42 not found", nf.Details)

	vnf := ViewNotFoundError("weekday_sales")
	assert.Equal(t, "VIEW_NOT_FOUND", vnf.ErrorCode)

	multi := NewValidationErrors([]ValidationError{{Field: "a"}, {Field: "b"}})
	assert.Len(t, multi.Details.(ValidationErrors).Errors, 2)

	inv := InvalidRequestWithError(errors.New("bad json"))
	assert.Equal(t, "bad json", inv.Details)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewAppValidationError("top_n must be positive"), ExitUsage},
		{NewUnsupportedFormatError(".xls"), ExitUsage},
		{fmt.Errorf("analyze: %w", NewNotFoundError("file orders.csv")), ExitNotFound},
		{NewParsingError("malformed delimited file", nil), ExitBadDataset},
		{NewTooLargeError(10), ExitBadDataset},
		{NewUpstreamError("google sheets", errors.New("503")), ExitUnreachable},
		{NewStorageError("disk", nil), ExitFailure},
		{errors.New("plain"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
