// Package packager clones a pushed commit and zips up each eligible
// lab subtree, producing the (lab, dir, zip basename) triples the
// dispatcher turns into job requests.
package packager

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursegrader/pipeline/dispatcher/internal/config"
	"github.com/coursegrader/pipeline/dispatcher/internal/domain"
)

const gitlabUsername = "grader"

// Packaged describes one lab that was successfully packaged.
type Packaged struct {
	Lab         string
	Dir         string
	ZipBasename string
}

// StatusPoster publishes a commit status for a lab; it is satisfied by
// poster.Client and mocked in tests.
type StatusPoster interface {
	PostRunning(hook domain.PushHook, lab, desc string)
	PostFailed(hook domain.PushHook, lab, desc string)
}

// Packager clones pushed commits into a scratch directory and zips up
// the subtree of every enabled, eligible lab.
type Packager struct {
	cfg    *config.Config
	poster StatusPoster
	logger *zap.Logger
}

func New(cfg *config.Config, poster StatusPoster, logger *zap.Logger) *Packager {
	return &Packager{cfg: cfg, poster: poster, logger: logger}
}

// Package clones hook's pushed commit and zips every eligible lab's
// subtree into the configured zip directory. It never returns an error
// for a single lab's packaging failure: those are logged and reported
// via StatusPoster instead, so one bad lab never blocks the rest.
func (p *Packager) Package(hook domain.PushHook) ([]Packaged, error) {
	root, err := os.MkdirTemp("", "coursegrader-clone-*")
	if err != nil {
		return nil, fmt.Errorf("packager: scratch dir: %w", err)
	}
	defer os.RemoveAll(root)

	if err := p.clone(hook, root); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCloneFailed, hook.Desc(), err)
	}

	var out []Packaged
	for _, lab := range p.cfg.Labs {
		if !lab.IsEnabled() {
			continue
		}
		labPath := filepath.Join(root, lab.Base, lab.Dir)
		if !eligible(labPath, lab.Witness) {
			p.logger.Debug("lab not eligible", zap.String("lab", lab.Name), zap.NamedError("reason", domain.ErrLabNotEligible))
			continue
		}

		branch, _ := hook.BranchName()
		p.poster.PostRunning(hook, lab.Name, "packaging and testing")
		p.logger.Info("packaging lab",
			zap.String("lab", lab.Name),
			zap.String("commit", hook.Desc()),
			zap.String("branch", branch),
		)

		zipBasename := uuid.NewString() + ".zip"
		zipPath := filepath.Join(p.cfg.Package.ZipDir, zipBasename)
		if err := zipRecursive(labPath, lab.Dir, zipPath); err != nil {
			p.logger.Error("cannot package lab",
				zap.String("lab", lab.Name), zap.String("commit", hook.Desc()), zap.NamedError("reason", domain.ErrPackageFailed), zap.Error(err))
			p.poster.PostFailed(hook, lab.Name, "unable to package compiler")
			continue
		}
		out = append(out, Packaged{Lab: lab.Name, Dir: lab.Dir, ZipBasename: zipBasename})
	}
	return out, nil
}

// eligible reports whether path is a directory and, if witness is set,
// contains that file.
func eligible(path, witness string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	if witness == "" {
		return true
	}
	wi, err := os.Stat(filepath.Join(path, witness))
	return err == nil && !wi.IsDir()
}

func (p *Packager) clone(hook domain.PushHook, dir string) error {
	repo, err := git.PlainClone(dir, false, &git.CloneOptions{
		URL: hook.Repository.GitHTTPURL,
		Auth: &http.BasicAuth{
			Username: gitlabUsername,
			Password: p.cfg.Gitlab.Token,
		},
		SingleBranch: false,
	})
	if err != nil {
		return err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	sha := hook.PushedSHA()
	if err := wt.Checkout(&git.CheckoutOptions{
		Hash:  plumbing.NewHash(sha),
		Force: true,
	}); err != nil {
		return err
	}
	return repo.Storer.SetReference(plumbing.NewHashReference(plumbing.HEAD, plumbing.NewHash(sha)))
}

// zipRecursive archives dir's contents under a top-level entry named
// topLevel, preserving UNIX permission bits.
func zipRecursive(dir, topLevel, zipFile string) error {
	f, err := os.Create(zipFile)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	if err := addToZip(zw, dir, topLevel); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func addToZip(zw *zip.Writer, dir, dirInZip string) error {
	if _, err := zw.Create(dirInZip + "/"); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		fullPath := filepath.Join(dir, entry.Name())
		zipPath := zipJoin(dirInZip, entry.Name())

		info, err := entry.Info()
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := addToZip(zw, fullPath, zipPath); err != nil {
				return err
			}
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = zipPath
		hdr.Method = zip.Deflate
		hdr.SetMode(info.Mode())

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		src, err := os.Open(fullPath)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, src)
		src.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func zipJoin(parts ...string) string {
	return strings.Join(parts, "/")
}

// RemoveZip deletes a previously produced zip from the configured
// zip directory.
func RemoveZip(cfg *config.Config, basename string) error {
	return os.Remove(filepath.Join(cfg.Package.ZipDir, basename))
}
