package remote

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/moor/internal/errors"
)

// Upload copies a local directory tree to remoteDir as a gzipped tar stream
// piped into the remote shell, so the transfer rides the same command
// capability as everything else instead of needing scp or sftp on the host.
func Upload(ctx context.Context, x Executor, localDir, remoteDir string) (Result, error) {
	archive, err := Archive(localDir)
	if err != nil {
		return Result{}, err
	}

	cmd := Cmd{
		Line:     fmt.Sprintf("mkdir -p %s && tar -xzf - -C %s", remoteDir, remoteDir),
		Stdin:    archive,
		Mutating: true,
	}
	res, err := x.Run(ctx, cmd)
	if err != nil {
		return res, err
	}
	if !res.Ok() {
		return res, errors.Newf(errors.ErrCodeTransferUpload,
			"remote extraction into %s failed: %s", remoteDir, res.Output())
	}
	return res, nil
}

// Archive packs a directory into a gzipped tar, skipping the .git metadata.
func Archive(dir string) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if rel == ".git" || strings.HasPrefix(rel, ".git"+string(os.PathSeparator)) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransferArchive,
			fmt.Sprintf("cannot archive %s", dir), err)
	}

	if err := tw.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransferArchive, "finalize archive", err)
	}
	if err := gz.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransferArchive, "finalize archive", err)
	}
	return buf.Bytes(), nil
}
