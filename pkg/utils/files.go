package utils

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
)

// BackupTimestampFormat is the layout of the timestamp appended to backup files
const BackupTimestampFormat = "20060102150405"

// BackupPath returns the backup location of path for the given capture time
func BackupPath(path string, now time.Time) string {
	return path + ".bak." + now.Format(BackupTimestampFormat)
}

// FileManager groups the file operations used while replacing the lease file
type FileManager struct{}

// IsExist checks if a file exists
func (*FileManager) IsExist(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	} else if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, errors.Wrapf(err, "cannot stat the file: %s", path)
}

// RemoveIfExist removes the file if it is present
func (fm *FileManager) RemoveIfExist(path string) error {
	ok, err := fm.IsExist(path)
	if err != nil || !ok {
		return err
	}
	if err := os.Remove(path); err != nil {
		return errors.Wrapf(err, "cannot remove the file: %s", path)
	}
	return nil
}

// CopyFile copies the content, permission bits and modification time of
// src to dst. An existing dst is truncated in place, so it keeps its owner.
func (*FileManager) CopyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "cannot open the file: %s", src)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return errors.Wrapf(err, "cannot stat the file: %s", src)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errors.Wrapf(err, "cannot open the file for writing: %s", dst)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = errors.Wrapf(closeErr, "cannot close the file: %s", dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return errors.Wrapf(err, "cannot copy %s to %s", src, dst)
	}
	if err = out.Sync(); err != nil {
		return errors.Wrapf(err, "cannot sync the file: %s", dst)
	}
	if err = out.Chmod(info.Mode().Perm()); err != nil {
		return errors.Wrapf(err, "cannot set permissions of the file: %s", dst)
	}
	if err = os.Chtimes(dst, time.Now(), info.ModTime()); err != nil {
		return errors.Wrapf(err, "cannot set modification time of the file: %s", dst)
	}
	return nil
}
