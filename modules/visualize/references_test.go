package visualize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeAsset(t *testing.T, baseDir, opacity, name string, data []byte) {
	t.Helper()
	dir := filepath.Join(baseDir, opacity, "master")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestLoadAssetLibrary(t *testing.T) {
	baseDir := t.TempDir()
	writeAsset(t, baseDir, "80", "screen.jpg", []byte("jpeg-80"))
	writeAsset(t, baseDir, "95", "notes.txt", []byte("not an image"))
	writeAsset(t, baseDir, "95", "screen.png", []byte("png-95"))

	lib := LoadAssetLibrary(baseDir)

	refs := lib.Get("80")
	require.Len(t, refs, 1)
	require.Equal(t, []byte("jpeg-80"), refs[0].Data)
	require.Equal(t, "image/jpeg", refs[0].MimeType)

	// unsupported extensions are skipped
	refs = lib.Get("95")
	require.Len(t, refs, 1)
	require.Equal(t, []byte("png-95"), refs[0].Data)
	require.Equal(t, "image/png", refs[0].MimeType)

	// levels without assets fall back to the default level
	refs = lib.Get("99")
	require.Len(t, refs, 1)
	require.Equal(t, []byte("png-95"), refs[0].Data)

	refs = lib.Get("whatever")
	require.Len(t, refs, 1)
	require.Equal(t, []byte("png-95"), refs[0].Data)
}

func TestLoadAssetLibrary_MissingDirectory(t *testing.T) {
	lib := LoadAssetLibrary(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Empty(t, lib.Get("95"))
}

func TestNormalizeOpacity(t *testing.T) {
	require.Equal(t, "80", NormalizeOpacity("80"))
	require.Equal(t, "95", NormalizeOpacity("95"))
	require.Equal(t, "99", NormalizeOpacity("99"))
	require.Equal(t, "95", NormalizeOpacity(""))
	require.Equal(t, "95", NormalizeOpacity("50"))
}
