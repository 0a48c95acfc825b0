package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassification(t *testing.T) {
	req := require.New(t)

	req.True(IsAuth(fmt.Errorf("handshake: %w", ErrInvalidToken)))
	req.True(IsAuth(ErrUnknownIdentity))
	req.False(IsAuth(ErrStorage))

	verr := NewValidationError("content", "must not be empty")
	req.True(IsValidation(verr))
	req.Equal("content: must not be empty", verr.Error())

	serr := Storage(fmt.Errorf("timeout"))
	req.True(IsStorage(serr))
	req.Nil(Storage(nil))
}
