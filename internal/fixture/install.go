package fixture

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/qdbcompat/internal/release"
)

// Install materializes a runnable QuestDB distribution for the given
// release under rootDir/<version> and returns the install directory.
//
// Idempotent per version and destination: when the directory already
// holds an unpacked distribution (its server jar is discoverable), the
// download is skipped.
func Install(ctx context.Context, rel release.Release, rootDir string, logger *slog.Logger) (string, error) {
	installDir := filepath.Join(rootDir, rel.Version.String())

	if _, _, err := findServerJar(installDir); err == nil {
		logger.Debug("reusing installed distribution", "dir", installDir)
		return installDir, nil
	}

	logger.Info("downloading distribution", "version", rel.Version, "url", rel.DownloadURL)
	archive, err := download(ctx, rel.DownloadURL)
	if err != nil {
		return "", err
	}
	defer os.Remove(archive)

	if err := os.MkdirAll(installDir, 0o755); err != nil {
		return "", fmt.Errorf("create install dir: %w", err)
	}
	if err := untar(archive, installDir); err != nil {
		return "", fmt.Errorf("unpack %s: %w", rel.DownloadURL, err)
	}

	if _, _, err := findServerJar(installDir); err != nil {
		return "", fmt.Errorf("distribution %s unpacked but unusable: %w", rel.Version, err)
	}
	logger.Info("distribution installed", "dir", installDir)
	return installDir, nil
}

// download fetches url into a temporary file and returns its path.
func download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}

	httpc := &http.Client{Timeout: 10 * time.Minute}
	resp, err := httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "qdbcompat-dist-*.tar.gz")
	if err != nil {
		return "", fmt.Errorf("create temp archive: %w", err)
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write temp archive: %w", err)
	}
	return tmp.Name(), nil
}

// untar unpacks a gzipped tarball into destDir, stripping the
// archive's single top-level directory.
func untar(archive, destDir string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		rel := stripTopDir(hdr.Name)
		if rel == "" {
			continue
		}
		target, err := safeJoin(destDir, rel)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode)&0o777)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		default:
			// Symlinks and the rest do not occur in release tarballs.
		}
	}
}

// stripTopDir removes the leading path component of a tar entry name.
// The remainder is left uncleaned so safeJoin can reject traversal.
func stripTopDir(name string) string {
	trimmed := strings.TrimPrefix(filepath.ToSlash(name), "./")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 || parts[1] == "" {
		return ""
	}
	return parts[1]
}

// safeJoin joins rel onto destDir, rejecting traversal outside it.
func safeJoin(destDir, rel string) (string, error) {
	target := filepath.Join(destDir, rel)
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("tar entry %q escapes install dir", rel)
	}
	return target, nil
}
