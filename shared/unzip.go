package shared

import (
	"archive/zip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Unzip extracts source into dir, ensuring every entry lives under
// requiredPrefix + "/", and returns the path to that prefix directory.
// source may be a local path or an http(s):// URL, in which case it is
// downloaded into dir first.
func Unzip(dir, source, requiredPrefix string) (string, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return unzipURL(dir, source, requiredPrefix)
	}

	r, err := zip.OpenReader(source)
	if err != nil {
		return "", err
	}
	defer r.Close()

	withSlash := requiredPrefix + "/"
	for _, f := range r.File {
		name := f.Name
		if path.IsAbs(name) || !strings.HasPrefix(name, withSlash) {
			return "", fmt.Errorf("unzip: file name in zip does not start with %s: %q", withSlash, name)
		}

		target := filepath.Join(dir, filepath.FromSlash(name))
		if strings.HasSuffix(name, "/") {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return "", err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return "", err
		}
		if err := extractEntry(f, target); err != nil {
			return "", err
		}
	}

	return filepath.Join(dir, requiredPrefix), nil
}

func extractEntry(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o600
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)
	return err
}

func unzipURL(dir, url, requiredPrefix string) (string, error) {
	resp, err := http.Get(url)
	if err != nil {
		return "", fmt.Errorf("unzip: cannot retrieve %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unzip: cannot retrieve %s: %s", url, resp.Status)
	}

	targetFile := filepath.Join(dir, requiredPrefix+".zip")
	out, err := os.Create(targetFile)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return "", fmt.Errorf("unzip: cannot write zip file: %w", err)
	}
	out.Close()

	return Unzip(dir, targetFile, requiredPrefix)
}
