package pipeline

import (
	"os"
	"path/filepath"

	"go.uber.org/multierr"
)

// Write writes every artifact through a temporary file in the target
// directory and a rename. If any artifact fails, the ones already written
// by this call are removed again.
func Write(arts []Artifact) error {
	for i, a := range arts {
		if err := writeFile(a.Path, a.Data); err != nil {
			return multierr.Append(err, remove(arts[:i]))
		}
	}
	return nil
}

func remove(arts []Artifact) error {
	var err error
	for _, a := range arts {
		err = multierr.Append(err, os.Remove(a.Path))
	}
	return err
}

func writeFile(path string, data []byte) (rerr error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &IOError{Path: path, Op: "create", Err: err}
	}
	defer func() {
		if rerr != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return &IOError{Path: path, Op: "write", Err: err}
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return &IOError{Path: path, Op: "chmod", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &IOError{Path: path, Op: "close", Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &IOError{Path: path, Op: "rename", Err: err}
	}
	return nil
}
