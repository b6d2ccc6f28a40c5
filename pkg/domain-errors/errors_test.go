package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesWrappedCode(t *testing.T) {
	err := New(CodeConflict, "duplicate plan")
	assert.True(t, Is(err, CodeConflict))
	assert.False(t, Is(err, CodeNotFound))

	wrapped := fmt.Errorf("register event: %w", err)
	assert.True(t, Is(wrapped, CodeConflict))

	assert.False(t, Is(errors.New("plain"), CodeConflict))
	assert.False(t, Is(nil, CodeConflict))
}

func TestWithConstraintDoesNotMutate(t *testing.T) {
	base := New(CodeConflict, "duplicate plan")
	named := base.WithConstraint("uq_check_plan")

	assert.Equal(t, "uq_check_plan", named.Constraint)
	assert.Empty(t, base.Constraint, "the original error must stay constraint-free")
	assert.Equal(t, "uq_check_plan", ConstraintOf(named))
	assert.Empty(t, ConstraintOf(base))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("driver: bad connection")
	err := Wrap(cause, CodeInternal, "list plans")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodeInternal, CodeOf(err))
}

func TestCodeOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeValidation, CodeOf(New(CodeValidation, "bad date")))
}

func TestErrorStringIncludesConstraint(t *testing.T) {
	err := New(CodeConflict, "duplicate plan").WithConstraint("uq_check_plan")
	assert.Equal(t, "conflict: duplicate plan (constraint uq_check_plan)", err.Error())

	bare := New(CodeNotFound, "instrument not found")
	assert.Equal(t, "not_found: instrument not found", bare.Error())
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:    http.StatusBadRequest,
		CodeNotFound:      http.StatusNotFound,
		CodeConsistency:   http.StatusConflict,
		CodeConflict:      http.StatusConflict,
		CodeConfiguration: http.StatusInternalServerError,
		CodeTimeout:       http.StatusGatewayTimeout,
		CodeInternal:      http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), string(code))
	}
}
