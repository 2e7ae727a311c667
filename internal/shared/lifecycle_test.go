package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateTransition(t *testing.T) {
	cases := []struct {
		current, target string
		ok              bool
	}{
		{StatusOpen, StatusClosed, true},
		{StatusClosed, StatusClosed, false},
		{StatusClosed, StatusOpen, false},
		{StatusDraft, StatusValidated, true},
		{StatusValidated, StatusValidated, false},
		{StatusValidated, StatusDraft, false},
		{StatusDraft, StatusSubmitted, true},
		{StatusSubmitted, StatusSubmitted, false},
	}
	for _, tc := range cases {
		err := ValidateTransition(tc.current, tc.target)
		if tc.ok {
			require.NoError(t, err, "%s -> %s", tc.current, tc.target)
			continue
		}
		require.ErrorIs(t, err, ErrConflict, "%s -> %s", tc.current, tc.target)
		require.ErrorIs(t, err, ErrInvalidTransition)
	}
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("ledger: boom")
	err := ImmutabilityError(cause, "entry %d", 7)
	require.ErrorIs(t, err, ErrImmutable)
	require.ErrorIs(t, err, cause)
	require.NotErrorIs(t, err, ErrConflict)
	require.Equal(t, "ledger: boom: entry 7", err.Error())
	require.Equal(t, ErrImmutable, KindOf(err))
	require.Nil(t, KindOf(errors.New("io")))

	plain := ValidationError(nil, "bad")
	require.Equal(t, "validation failed: bad", plain.Error())
	require.True(t, IsTerminal(StatusValidated))
	require.False(t, IsTerminal(StatusDraft))
}
