package migration

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations_AreSequentialWithDownFiles(t *testing.T) {
	src, err := newSource()
	require.NoError(t, err)
	defer src.Close()

	v, err := src.First()
	require.NoError(t, err)
	require.Equal(t, uint(1), v)

	count := 0
	for {
		count++
		up, _, err := src.ReadUp(v)
		require.NoError(t, err)
		body, err := io.ReadAll(up)
		require.NoError(t, err)
		up.Close()
		require.NotEmpty(t, body)

		down, _, err := src.ReadDown(v)
		require.NoError(t, err, "version %d has no down migration", v)
		down.Close()

		next, err := src.Next(v)
		if errors.Is(err, os.ErrNotExist) {
			break
		}
		require.NoError(t, err)
		require.Equal(t, v+1, next)
		v = next
	}
	require.Equal(t, 4, count)
}

func TestRunMigrations_RequiresHandle(t *testing.T) {
	require.Error(t, RunMigrations(nil))
}
