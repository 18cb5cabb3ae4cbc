package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	err := StateConflict("sos request is not active")
	assert.Equal(t, "INVALID_STATE_TRANSITION: sos request is not active", err.Error())

	cause := errors.New("connection reset")
	ext := External(CodePushFailed, "push delivery failed", cause)
	assert.Contains(t, ext.Error(), "caused by: connection reset")
	assert.ErrorIs(t, ext, cause)
}

func TestIsKind_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("accept: %w", StateConflict("already accepted"))

	assert.True(t, IsKind(err, KindStateConflict))
	assert.False(t, IsKind(err, KindNotFound))
	assert.Equal(t, CodeInvalidStateTransition, CodeOf(err))
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, "", CodeOf(errors.New("boom")))
	assert.False(t, IsKind(nil, KindValidation))
}

func TestWithDetail_DoesNotMutateOriginal(t *testing.T) {
	base := NotFound("hospital not found")
	withID := base.WithDetail("hospital_id", "h-1")

	assert.Nil(t, base.Details)
	assert.Equal(t, "h-1", withID.Details["hospital_id"])
	assert.Equal(t, base.Code, withID.Code)
}
