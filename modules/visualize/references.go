package visualize

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"screenking-server/modules/common/gemini"
)

// ReferenceProvider - maps a screen opacity level to reference images
// injected into the install stage. May return an empty slice.
type ReferenceProvider interface {
	Get(opacity string) []gemini.Reference
}

var opacityLevels = []string{"80", "95", "99"}

const defaultOpacity = "95"

// AssetLibrary - reference screen photos keyed by opacity level. Loaded
// once at startup and immutable afterwards, so concurrent pipelines can
// read it without locking.
type AssetLibrary struct {
	refs map[string][]gemini.Reference
}

// LoadAssetLibrary - read one master reference image per opacity level
// from baseDir/<opacity>/master/. Missing directories just leave that
// level without references.
func LoadAssetLibrary(baseDir string) *AssetLibrary {
	refs := make(map[string][]gemini.Reference)

	for _, opacity := range opacityLevels {
		masterDir := filepath.Join(baseDir, opacity, "master")
		entries, err := os.ReadDir(masterDir)
		if err != nil {
			log.Printf("⚠️  Reference directory not found: %s", masterDir)
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			mimeType, ok := mimeForExt(ext)
			if !ok {
				continue
			}

			data, err := os.ReadFile(filepath.Join(masterDir, entry.Name()))
			if err != nil {
				log.Printf("⚠️  Failed to load reference %s: %v", entry.Name(), err)
				continue
			}

			refs[opacity] = append(refs[opacity], gemini.Reference{Data: data, MimeType: mimeType})
			log.Printf("✅ Loaded reference for opacity %s: %s (%d bytes)", opacity, entry.Name(), len(data))
			// one master reference per opacity for now
			break
		}
	}

	return &AssetLibrary{refs: refs}
}

// Get - references for an opacity level; unknown levels fall back to
// the default level
func (l *AssetLibrary) Get(opacity string) []gemini.Reference {
	if _, ok := l.refs[opacity]; !ok {
		opacity = defaultOpacity
	}
	return l.refs[opacity]
}

// NormalizeOpacity - clamp a requested opacity onto a supported level
func NormalizeOpacity(opacity string) string {
	for _, level := range opacityLevels {
		if opacity == level {
			return opacity
		}
	}
	return defaultOpacity
}

func mimeForExt(ext string) (string, bool) {
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg", true
	case ".png":
		return "image/png", true
	}
	return "", false
}
