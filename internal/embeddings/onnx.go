//go:build cgo

package embeddings

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/logging"
	"go.uber.org/zap"
)

// onnxRuntimeVersion must match the onnxruntime_go version fastembed-go links against.
const onnxRuntimeVersion = "1.23.0"

const onnxReleaseURL = "https://github.com/microsoft/onnxruntime/releases/download/v%s/onnxruntime-%s-%s.tgz"

var onnxPlatforms = map[string]string{
	"linux/amd64":  "linux-x64",
	"linux/arm64":  "linux-aarch64",
	"darwin/amd64": "osx-x86_64",
	"darwin/arm64": "osx-arm64",
}

func onnxLibraryName(goos string) string {
	if goos == "darwin" {
		return "libonnxruntime.dylib"
	}
	return "libonnxruntime.so"
}

// onnxPlatform returns the release archive suffix for goos/goarch.
func onnxPlatform(goos, goarch string) (string, error) {
	p, ok := onnxPlatforms[goos+"/"+goarch]
	if !ok {
		return "", fmt.Errorf("%w: onnx runtime has no build for %s/%s", ErrInvalidConfig, goos, goarch)
	}
	return p, nil
}

// onnxLibraryPath returns ONNX_PATH, or the managed copy under cacheDir if present.
func onnxLibraryPath(cacheDir string) string {
	if p := os.Getenv("ONNX_PATH"); p != "" {
		return p
	}
	managed := filepath.Join(cacheDir, "onnxruntime", onnxLibraryName(runtime.GOOS))
	if _, err := os.Stat(managed); err == nil {
		return managed
	}
	return ""
}

// EnsureONNXRuntime makes the ONNX runtime library available to fastembed-go,
// downloading it into cacheDir when neither ONNX_PATH nor a managed copy exists.
// It returns the library path and exports it as ONNX_PATH.
func EnsureONNXRuntime(ctx context.Context, cacheDir string, logger *logging.Logger) (string, error) {
	if p := onnxLibraryPath(cacheDir); p != "" {
		return p, os.Setenv("ONNX_PATH", p)
	}

	platform, err := onnxPlatform(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf(onnxReleaseURL, onnxRuntimeVersion, platform, onnxRuntimeVersion)
	destDir := filepath.Join(cacheDir, "onnxruntime")

	logger.Info(ctx, "downloading onnx runtime",
		zap.String("version", onnxRuntimeVersion),
		zap.String("url", url),
		zap.String("dest", destDir),
	)

	if err := downloadONNXRuntime(ctx, url, destDir, fmt.Sprintf("onnxruntime-%s-%s/lib/", platform, onnxRuntimeVersion)); err != nil {
		return "", fmt.Errorf("failed to download onnx runtime (set ONNX_PATH to use an installed copy): %w", err)
	}

	p := onnxLibraryPath(cacheDir)
	if p == "" {
		return "", fmt.Errorf("onnx runtime download completed but %s was not found", onnxLibraryName(runtime.GOOS))
	}
	return p, os.Setenv("ONNX_PATH", p)
}

func downloadONNXRuntime(ctx context.Context, url, destDir, libPrefix string) error {
	if err := os.MkdirAll(destDir, 0o700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	return extractLibraries(resp.Body, destDir, libPrefix)
}

// extractLibraries copies the files under libPrefix in a .tgz stream into destDir,
// keeping symlinks.
func extractLibraries(r io.Reader, destDir, libPrefix string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		name := strings.TrimPrefix(header.Name, "./")
		if !strings.HasPrefix(name, libPrefix) || header.Typeflag == tar.TypeDir {
			continue
		}
		destPath := filepath.Join(destDir, filepath.Base(name))

		switch header.Typeflag {
		case tar.TypeSymlink:
			_ = os.Remove(destPath)
			if err := os.Symlink(filepath.Base(header.Linkname), destPath); err != nil {
				return fmt.Errorf("creating symlink %s: %w", destPath, err)
			}
		case tar.TypeReg:
			if err := writeFile(destPath, tr); err != nil {
				return err
			}
		}
	}
}

func writeFile(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("writing file %s: %w", path, err)
	}
	return f.Close()
}
