package inngestgo

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNoRetryError(t *testing.T) {
	base := errors.New("boom")
	err := NoRetryError(base)

	require.True(t, IsNoRetryError(err))
	require.False(t, IsNoRetryError(base))
	require.ErrorIs(t, err, base)
	require.Equal(t, "boom", err.Error())
}

func TestRetryAtError(t *testing.T) {
	base := errors.New("boom")
	at := time.Now().Add(time.Hour)
	err := RetryAtError(base, at)

	got := GetRetryAtTime(err)
	require.NotNil(t, got)
	require.Equal(t, at, *got)
	require.Nil(t, GetRetryAtTime(base))
}

func TestNilErrors(t *testing.T) {
	require.Nil(t, NoRetryError(nil))
	require.Nil(t, RetryAtError(nil, time.Now()))
	require.False(t, IsNoRetryError(nil))
	require.Nil(t, GetRetryAtTime(nil))
}
