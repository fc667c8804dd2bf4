package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	e := Network(CodeTimeout, "request timed out", context.DeadlineExceeded)
	assert.Equal(t, "request timed out: context deadline exceeded", e.Error())
	assert.ErrorIs(t, e, context.DeadlineExceeded)

	v := Validation(CodeEmailInvalid, "bad email").WithField("email")
	assert.Equal(t, "bad email", v.Error())
	assert.Equal(t, "email", v.Field)
}

func TestAsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", Configuration(CodeMissingEndpoint, "no endpoint"))

	ae, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindConfiguration, ae.Kind)
	assert.True(t, IsKind(wrapped, KindConfiguration))
	assert.False(t, IsKind(wrapped, KindNetwork))

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "VALIDATION", KindValidation.String())
	assert.Equal(t, "NETWORK", KindNetwork.String())
	assert.Equal(t, "UNKNOWN", Kind(42).String())
}
