package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestStackTraces(t *testing.T) {
	err := New("with stack")
	detailed := fmt.Sprintf("%+v", err)
	assert.Contains(t, detailed, "errors_test.go")
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"endpoint unreachable", ErrEndpointUnreachable, true},
		{"wrapped endpoint unreachable", Wrap(ErrEndpointUnreachable, "GET query.wikidata.org"), true},
		{"malformed row", NewMalformedResultError("row %d", 3), false},
		{"unknown entity", NewUnknownEntityError("Q1"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsPerRowError(t *testing.T) {
	assert.True(t, IsPerRowError(NewMalformedResultError("missing ?item")))
	assert.True(t, IsPerRowError(NewInvalidDateError("not-a-date", nil)))
	assert.False(t, IsPerRowError(Wrap(ErrEndpointUnreachable, "timeout")))
	assert.False(t, IsPerRowError(nil))
}

func TestNewUnknownEntityError(t *testing.T) {
	err := NewUnknownEntityError("Q42")
	require.Error(t, err)

	assert.True(t, IsUnknownEntityError(err))
	assert.Contains(t, err.Error(), "Q42")
	hints := GetAllHints(err)
	require.Len(t, hints, 1)
	assert.Contains(t, hints[0], "swmap ix")
}

func TestNewInvalidDateError(t *testing.T) {
	err := NewInvalidDateError("1995-13-40", New("month out of range"))

	assert.True(t, Is(err, ErrInvalidDateFormat))
	assert.Contains(t, err.Error(), "1995-13-40")
	assert.Equal(t, []string{"month out of range"}, GetAllDetails(err))
}

func TestCombineErrors(t *testing.T) {
	first := Wrap(ErrEndpointUnreachable, "publication")
	second := Wrap(ErrEndpointUnreachable, "inception")

	combined := CombineErrors(first, second)
	assert.True(t, Is(combined, ErrEndpointUnreachable))
	assert.Nil(t, CombineErrors(nil, nil))
}
