package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	base := errors.New("boom")

	transient := Transient(base)
	permanent := Permanent(base)

	assert.False(t, IsPermanent(transient))
	assert.True(t, IsPermanent(permanent))

	assert.ErrorIs(t, transient, base)
	assert.ErrorIs(t, permanent, base)

	assert.Contains(t, transient.Error(), "transient")
	assert.Contains(t, permanent.Error(), "permanent")
}

func TestNilWrapping(t *testing.T) {
	assert.Nil(t, Transient(nil))
	assert.Nil(t, Permanent(nil))
	assert.False(t, IsPermanent(nil))
}
