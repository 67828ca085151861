package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/expiredrop/internal/uploadid"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestDisk_CreateOpen(t *testing.T) {
	ctx := context.Background()
	d := NewDisk(afero.NewMemMapFs())
	id := uploadid.New(100)

	n, err := d.Create(ctx, id, "hello.txt", strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)

	obj, err := d.Open(ctx, id, "hello.txt")
	require.NoError(t, err)
	defer obj.Close()
	assert.Equal(t, int64(11), obj.Size)
	assert.Equal(t, "hello.txt", obj.Name)

	b, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(b))
}

func TestDisk_CreateExisting(t *testing.T) {
	ctx := context.Background()
	d := NewDisk(afero.NewMemMapFs())
	id := uploadid.New(100)

	_, err := d.Create(ctx, id, "a", strings.NewReader("a"))
	require.NoError(t, err)
	_, err = d.Create(ctx, id, "b", strings.NewReader("b"))
	assert.ErrorIs(t, err, ErrExists)
}

func TestDisk_CreateFailureCleansUp(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	d := NewDisk(fs)
	id := uploadid.New(100)

	_, err := d.Create(ctx, id, "a", failingReader{})
	require.Error(t, err)

	exists, err := afero.DirExists(fs, "/"+id.String())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDisk_CreateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewDisk(afero.NewMemMapFs())

	_, err := d.Create(ctx, uploadid.New(1), "a", strings.NewReader("data"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDisk_InvalidNames(t *testing.T) {
	ctx := context.Background()
	d := NewDisk(afero.NewMemMapFs())
	for _, name := range []string{"", ".", "..", "a/b", `a\b`, strings.Repeat("x", MaxNameLen+1)} {
		_, err := d.Create(ctx, uploadid.New(1), name, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)

		_, err = d.Open(ctx, uploadid.New(1), name)
		assert.ErrorIs(t, err, ErrNotFound, "name %q", name)
	}
}

func TestDisk_OpenMissing(t *testing.T) {
	ctx := context.Background()
	d := NewDisk(afero.NewMemMapFs())
	id := uploadid.New(100)

	_, err := d.Open(ctx, id, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = d.Create(ctx, id, "yes", strings.NewReader("x"))
	require.NoError(t, err)
	_, err = d.Open(ctx, id, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDisk_RemoveAndList(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	d := NewDisk(fs)

	a, b := uploadid.New(1), uploadid.New(2)
	for _, id := range []uploadid.ID{a, b} {
		_, err := d.Create(ctx, id, "f", strings.NewReader("x"))
		require.NoError(t, err)
	}
	require.NoError(t, afero.WriteFile(fs, "/stray-file", []byte("x"), 0o644))
	require.NoError(t, fs.Mkdir("/lost+found", 0o755))

	names, err := d.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.String(), b.String(), "lost+found"}, names)

	require.NoError(t, d.Remove(ctx, a))
	require.NoError(t, d.Remove(ctx, a), "removing twice is fine")

	_, err = d.Open(ctx, a, "f")
	assert.ErrorIs(t, err, ErrNotFound)

	names, err = d.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{b.String(), "lost+found"}, names)
}

func TestNewOSDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	d, err := NewOSDisk(dir)
	require.NoError(t, err)

	id := uploadid.New(5)
	_, err = d.Create(ctx, id, "on-disk.bin", strings.NewReader("bytes"))
	require.NoError(t, err)

	exists, err := afero.Exists(afero.NewOsFs(), dir+"/"+id.String()+"/on-disk.bin")
	require.NoError(t, err)
	assert.True(t, exists)
}
