package testsupport

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// WriteImages writes n pattern-filled image files into dir and returns their
// paths in order.
func WriteImages(t testing.TB, dir string, n int) []string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	paths := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		path := filepath.Join(dir, "photo-"+strconv.Itoa(i)+".jpg")
		if err := os.WriteFile(path, ImageBytes(i, 4096), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		paths = append(paths, path)
	}
	return paths
}
