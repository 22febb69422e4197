package depmanager

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/ulikunitz/xz"
)

// extract copies the target files out of an archive into destDir.
// Archive directories are ignored, only base names are matched.
func extract(kind archiveKind, archivePath, destDir string, targets []string) error {
	want := make(map[string]bool, len(targets))
	for _, t := range targets {
		want[t] = false
	}

	var err error

	switch kind {
	case archiveZip:
		err = extractZip(archivePath, destDir, want)
	case archiveTarXZ, archiveTarGZ:
		err = extractTar(kind, archivePath, destDir, want)
	default:
		return fmt.Errorf("unsupported archive %s", filepath.Base(archivePath))
	}

	if err != nil {
		return err
	}

	var missing []string

	for name, found := range want {
		if !found {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		slices.Sort(missing)

		return fmt.Errorf("files not found in archive: %v", missing)
	}

	return nil
}

func extractZip(archivePath, destDir string, want map[string]bool) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		name := filepath.Base(file.Name)

		found, ok := want[name]
		if !ok || found || file.FileInfo().IsDir() {
			continue
		}

		src, err := file.Open()
		if err != nil {
			return fmt.Errorf("open %s in zip: %w", name, err)
		}

		err = writeExecutable(filepath.Join(destDir, name), src)
		src.Close()

		if err != nil {
			return err
		}

		want[name] = true
	}

	return nil
}

func extractTar(kind archiveKind, archivePath, destDir string, want map[string]bool) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	var stream io.Reader

	if kind == archiveTarXZ {
		stream, err = xz.NewReader(file)
		if err != nil {
			return fmt.Errorf("create xz reader: %w", err)
		}
	} else {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("create gzip reader: %w", err)
		}
		defer gz.Close()

		stream = gz
	}

	tr := tar.NewReader(stream)

	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		name := filepath.Base(header.Name)

		found, ok := want[name]
		if !ok || found || header.Typeflag != tar.TypeReg {
			continue
		}

		if err := writeExecutable(filepath.Join(destDir, name), tr); err != nil {
			return err
		}

		want[name] = true
	}
}

func writeExecutable(path string, src io.Reader) error {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermExecutable)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()

		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}

	return nil
}
