package file

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// MmapFile represents an mmapd file and includes both the buffer to the data and the file descriptor.
type MmapFile struct {
	Data     []byte
	Fd       *os.File
	writable bool
}

// OpenMmapFile opens the file named by opt and maps it. A writable file is
// truncated or extended to opt.MaxSz first; a read-only file is mapped with
// its current size.
func OpenMmapFile(opt *Options) (*MmapFile, error) {
	fd, err := os.OpenFile(opt.FileName, opt.Flag, 0o666)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open: %s", opt.FileName)
	}
	writable := opt.Writable()
	fi, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, errors.Wrapf(err, "cannot stat file: %s", opt.FileName)
	}
	size := fi.Size()
	if writable && int64(opt.MaxSz) != size {
		if err := fd.Truncate(int64(opt.MaxSz)); err != nil {
			fd.Close()
			return nil, errors.Wrapf(err, "while truncating file: %s", opt.FileName)
		}
		size = int64(opt.MaxSz)
	}
	mf := &MmapFile{Fd: fd, writable: writable}
	if size == 0 {
		return mf, nil
	}
	mf.Data, err = mmap(fd, writable, size)
	if err != nil {
		fd.Close()
		return nil, errors.Wrapf(err, "while mmapping %s with size: %d", fd.Name(), size)
	}
	return mf, nil
}

// Bytes returns data starting from offset off of size sz. If there's not enough data, it would
// return nil slice and io.EOF.
func (m *MmapFile) Bytes(off, sz int) ([]byte, error) {
	if off < 0 || sz < 0 || off > len(m.Data) || len(m.Data)-off < sz {
		return nil, io.EOF
	}
	return m.Data[off : off+sz], nil
}

func (m *MmapFile) Size() int {
	return len(m.Data)
}

func (m *MmapFile) Name() string {
	return m.Fd.Name()
}

// Sync flushes a writable mapping to disk.
func (m *MmapFile) Sync() error {
	if m == nil || !m.writable || len(m.Data) == 0 {
		return nil
	}
	return msync(m.Data)
}

// Close unmaps the file and closes the descriptor.
func (m *MmapFile) Close() error {
	if m.Fd == nil {
		return nil
	}
	if err := m.Sync(); err != nil {
		return errors.Wrapf(err, "while syncing file: %s", m.Fd.Name())
	}
	if len(m.Data) > 0 {
		if err := munmap(m.Data); err != nil {
			return errors.Wrapf(err, "while munmap file: %s", m.Fd.Name())
		}
		m.Data = nil
	}
	err := m.Fd.Close()
	m.Fd = nil
	return err
}

// Delete closes and removes the file.
func (m *MmapFile) Delete() error {
	if m.Fd == nil {
		return nil
	}
	name := m.Fd.Name()
	if err := m.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}
