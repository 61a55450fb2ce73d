package codepush

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCloser struct {
	name  string
	order *[]string
	err   error
}

func (r *recordingCloser) Close() error {
	*r.order = append(*r.order, r.name)
	return r.err
}

func TestCloseAll(t *testing.T) {
	t.Run("reverse acquisition order, nils skipped", func(t *testing.T) {
		var order []string
		err := closeAll(
			&recordingCloser{name: "first", order: &order},
			nil,
			&recordingCloser{name: "second", order: &order},
		)
		require.NoError(t, err)
		assert.Equal(t, []string{"second", "first"}, order)
	})

	t.Run("collects every failure", func(t *testing.T) {
		var order []string
		errA := errors.New("a")
		errB := errors.New("b")
		err := closeAll(
			&recordingCloser{name: "a", order: &order, err: errA},
			&recordingCloser{name: "ok", order: &order},
			&recordingCloser{name: "b", order: &order, err: errB},
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, errA)
		assert.ErrorIs(t, err, errB)
		assert.Equal(t, []string{"b", "ok", "a"}, order)
	})

	t.Run("no closers", func(t *testing.T) {
		require.NoError(t, closeAll())
	})
}
