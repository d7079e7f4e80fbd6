package kscraperrors

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrorTypeConfig, "invalid base name").WithDetail("base_name", "a b")

	assert.Equal(t, "config: invalid base name [base_name=a b]", err.Error())
	assert.True(t, IsType(err, ErrorTypeConfig))
	assert.False(t, IsType(err, ErrorTypeFile))
	require.NotEmpty(t, err.Stack)
	assert.Contains(t, err.Stack[0].Function, "TestNew")
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeFile, "nothing"))

	err := Wrap(io.ErrUnexpectedEOF, ErrorTypeFile, "write failed")
	assert.Equal(t, "file: write failed: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	inner := New(ErrorTypeData, "bad value")
	outer := Wrap(fmt.Errorf("context: %w", inner), ErrorTypeSchema, "widening failed")
	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, IsType(outer, ErrorTypeSchema))

	var e *Error
	require.True(t, errors.As(outer.Cause, &e))
	assert.Equal(t, ErrorTypeData, e.Type)
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "config", err: New(ErrorTypeConfig, "x"), want: true},
		{name: "schema", err: New(ErrorTypeSchema, "x"), want: true},
		{name: "data", err: New(ErrorTypeData, "x"), want: true},
		{name: "file", err: New(ErrorTypeFile, "x"), want: false},
		{name: "validation", err: Newf(ErrorTypeValidation, "type %s", "T"), want: false},
		{name: "plain", err: io.EOF, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRecoverable(tt.err))
		})
	}
}
