package cryptox_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tokengate/tokengate/pkg/cryptox"
)

var alnumRE = regexp.MustCompile(`^[A-Za-z0-9]+$`)

func TestRandomAlphanumeric(t *testing.T) {
	t.Parallel()

	t.Run("produces requested length", func(t *testing.T) {
		for _, n := range []int{1, 8, 64} {
			s, err := cryptox.RandomAlphanumeric(n)
			require.NoError(t, err)
			require.Len(t, s, n)
		}
	})

	t.Run("stays within the alphanumeric alphabet", func(t *testing.T) {
		s, err := cryptox.RandomAlphanumeric(256)
		require.NoError(t, err)
		require.Regexp(t, alnumRE, s)
	})

	t.Run("rejects non-positive lengths", func(t *testing.T) {
		_, err := cryptox.RandomAlphanumeric(0)
		require.Error(t, err)
		_, err = cryptox.RandomAlphanumeric(-3)
		require.Error(t, err)
	})

	t.Run("consecutive tokens differ", func(t *testing.T) {
		a, err := cryptox.RandomAlphanumeric(16)
		require.NoError(t, err)
		b, err := cryptox.RandomAlphanumeric(16)
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})
}

func TestMustRandomAlphanumeric(t *testing.T) {
	t.Parallel()

	require.Len(t, cryptox.MustRandomAlphanumeric(8), 8)
	require.Panics(t, func() { cryptox.MustRandomAlphanumeric(-1) })
}
