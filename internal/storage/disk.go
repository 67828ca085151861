package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/spf13/afero"

	"github.com/dharsanguruparan/expiredrop/internal/uploadid"
)

// Disk stores uploads as directories on an afero filesystem.
type Disk struct {
	fs afero.Fs
}

// NewDisk returns a Disk rooted at the root of fs.
func NewDisk(fs afero.Fs) *Disk {
	return &Disk{fs: fs}
}

// NewOSDisk returns a Disk rooted at dir on the local filesystem, creating
// dir if needed.
func NewOSDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return NewDisk(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

func dirOf(id uploadid.ID) string { return "/" + id.String() }

// Create implements Store.
func (d *Disk) Create(ctx context.Context, id uploadid.ID, name string, r io.Reader) (int64, error) {
	if err := ValidName(name); err != nil {
		return 0, err
	}
	dir := dirOf(id)
	if err := d.fs.Mkdir(dir, 0o750); err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, ErrExists
		}
		return 0, fmt.Errorf("create upload dir: %w", err)
	}
	n, err := d.write(ctx, path.Join(dir, name), r)
	if err != nil {
		_ = d.fs.RemoveAll(dir)
		return 0, err
	}
	return n, nil
}

func (d *Disk) write(ctx context.Context, p string, r io.Reader) (int64, error) {
	f, err := d.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	n, err := io.Copy(f, ctxReader{ctx: ctx, r: r})
	if err != nil {
		f.Close()
		return 0, fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close file: %w", err)
	}
	return n, nil
}

// Open implements Store.
func (d *Disk) Open(_ context.Context, id uploadid.ID, name string) (*Object, error) {
	if err := ValidName(name); err != nil {
		return nil, ErrNotFound
	}
	f, err := d.fs.Open(path.Join(dirOf(id), name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, ErrNotFound
	}
	return &Object{ReadSeekCloser: f, Name: name, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Remove implements Store.
func (d *Disk) Remove(_ context.Context, id uploadid.ID) error {
	if err := d.fs.RemoveAll(dirOf(id)); err != nil {
		return fmt.Errorf("remove upload dir: %w", err)
	}
	return nil
}

// List implements Store. Only directories are returned.
func (d *Disk) List(_ context.Context) ([]string, error) {
	infos, err := afero.ReadDir(d.fs, "/")
	if err != nil {
		return nil, fmt.Errorf("list data dir: %w", err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			names = append(names, info.Name())
		}
	}
	return names, nil
}

// ctxReader stops a long copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
