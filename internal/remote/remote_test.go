package remote

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_UnwrapsToKind(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("httpapi/UpdateComment: %w", &Error{Kind: ErrForbidden, Status: 403, Message: "Not your comment"})

	require.ErrorIs(t, err, ErrForbidden)
	require.False(t, errors.Is(err, ErrNotFound))
	require.Equal(t, "Not your comment", MessageOf(err))
	require.Contains(t, err.Error(), "status 403")
}

func TestMessageOf_NoRemoteError(t *testing.T) {
	t.Parallel()

	require.Empty(t, MessageOf(errors.New("boom")))
	require.Empty(t, MessageOf(nil))
	require.Empty(t, MessageOf(&Error{Kind: ErrUnreachable}))
}

func TestError_KeepsTransportCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp 127.0.0.1:1: connect: connection refused")
	err := fmt.Errorf("httpapi/CommentSubtree: %w", &Error{Kind: ErrUnreachable, Cause: cause})

	require.ErrorIs(t, err, ErrUnreachable)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "connection refused")
	require.Empty(t, MessageOf(err))
}
