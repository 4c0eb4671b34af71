package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal("insert into job", cause)

	assert.Equal(t, ErrTypeInternal, err.Type)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "INTERNAL: insert into job: connection reset", err.Error())
	assert.NotEmpty(t, err.StackTrace())

	bare := Unavailable("Database not connected", nil)
	assert.Equal(t, "UNAVAILABLE: Database not connected", bare.Error())
	assert.NotEmpty(t, bare.StackTrace())
}
