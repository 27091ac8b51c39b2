package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreErrorTagsUnknownFailures(t *testing.T) {
	cause := errors.New("connection reset")

	err := StoreError(cause)
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, cause)
}

func TestStoreErrorKeepsDomainErrors(t *testing.T) {
	assert.Same(t, ErrEventNotFound, StoreError(ErrEventNotFound))
	assert.NotErrorIs(t, StoreError(ErrUserExists), ErrStore)
	assert.NoError(t, StoreError(nil))
}
