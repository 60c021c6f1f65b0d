package filespill

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID    string
	Names []string
	Code  []byte
}

func TestSpill(t *testing.T) {
	t.Run("New uses the given directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "spool")
		s, err := New[int](dir)
		require.NoError(t, err)
		defer s.Close()

		require.Equal(t, dir, filepath.Dir(s.Path()))
	})

	t.Run("Append and Get", func(t *testing.T) {
		s, err := New[string](t.TempDir())
		require.NoError(t, err)
		defer s.Close()

		require.NoError(t, s.Append("first"))
		require.NoError(t, s.Append("second"))

		v, err := s.Get(0)
		require.NoError(t, err)
		require.Equal(t, "first", v)

		v, err = s.Get(1)
		require.NoError(t, err)
		require.Equal(t, "second", v)

		v, err = s.Get(2)
		require.Error(t, err)
		require.Equal(t, "", v)
	})

	t.Run("Range visits items in order", func(t *testing.T) {
		s, err := New[record](t.TempDir())
		require.NoError(t, err)
		defer s.Close()

		in := []record{
			{ID: "a.js", Names: []string{"x"}},
			{ID: "b.js"},
			{ID: "c.js", Names: []string{"y", "z"}, Code: []byte("var y;\n")},
		}
		require.NoError(t, s.AppendBatch(in))
		require.Equal(t, uint64(3), s.Len())

		var out []record
		require.NoError(t, s.Range(func(i uint64, r record) error {
			require.Equal(t, uint64(len(out)), i)
			out = append(out, r)
			return nil
		}))
		require.Equal(t, in, out)
	})

	t.Run("Range stops on callback error", func(t *testing.T) {
		s, err := New[int](t.TempDir())
		require.NoError(t, err)
		defer s.Close()

		require.NoError(t, s.AppendBatch([]int{1, 2, 3}))

		stop := errors.New("stop")
		seen := 0
		err = s.Range(func(uint64, int) error {
			seen++
			return stop
		})
		require.ErrorIs(t, err, stop)
		require.Equal(t, 1, seen)
	})

	t.Run("concurrent appends", func(t *testing.T) {
		s, err := New[int](t.TempDir())
		require.NoError(t, err)
		defer s.Close()

		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.Append(i))
			}()
		}
		wg.Wait()

		sum := 0
		require.NoError(t, s.Range(func(_ uint64, v int) error {
			sum += v
			return nil
		}))
		require.Equal(t, 49*50/2, sum)
	})

	t.Run("Close removes the file", func(t *testing.T) {
		s, err := New[int](t.TempDir())
		require.NoError(t, err)
		require.NoError(t, s.Append(1))
		require.NoError(t, s.Close())
		require.NoError(t, s.Close())

		_, err = os.Stat(s.Path())
		require.True(t, os.IsNotExist(err))
		require.ErrorIs(t, s.Append(2), os.ErrClosed)
	})
}

func BenchmarkAppend(b *testing.B) {
	s, err := New[record](b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()

	r := record{ID: "app/actions.js", Names: []string{"save", "load"}, Code: make([]byte, 512)}

	b.ResetTimer()
	for range b.N {
		if err := s.Append(r); err != nil {
			b.Fatal(err)
		}
	}
}
