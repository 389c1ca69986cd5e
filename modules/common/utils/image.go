package utils

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/kolesa-team/go-webp/decoder" // register WebP decoder
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

// ConvertToWebP - re-encode an image (PNG/JPEG/WebP) as lossy WebP
func ConvertToWebP(imageData []byte, quality float32) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, quality)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebP encoder options: %w", err)
	}

	var webpBuffer bytes.Buffer
	if err := webp.Encode(&webpBuffer, img, options); err != nil {
		return nil, fmt.Errorf("failed to encode WebP: %w", err)
	}

	webpData := webpBuffer.Bytes()
	log.Printf("🔄 %s converted to WebP: %d bytes → %d bytes", format, len(imageData), len(webpData))

	return webpData, nil
}

// rmsIdenticalThreshold - below this the two images only differ by
// compression artifacts.
const rmsIdenticalThreshold = 5.0

// NearIdentical - report whether two images are effectively the same
// picture. Different dimensions or undecodable data count as "not
// identical".
func NearIdentical(a, b []byte) bool {
	imgA, _, err := image.Decode(bytes.NewReader(a))
	if err != nil {
		return false
	}
	imgB, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return false
	}

	boundsA := imgA.Bounds()
	boundsB := imgB.Bounds()
	if boundsA.Dx() != boundsB.Dx() || boundsA.Dy() != boundsB.Dy() {
		return false
	}

	var sum float64
	for y := 0; y < boundsA.Dy(); y++ {
		for x := 0; x < boundsA.Dx(); x++ {
			ra, ga, ba, _ := imgA.At(boundsA.Min.X+x, boundsA.Min.Y+y).RGBA()
			rb, gb, bb, _ := imgB.At(boundsB.Min.X+x, boundsB.Min.Y+y).RGBA()
			// RGBA returns 16-bit channels, compare at 8-bit depth
			dr := float64(ra>>8) - float64(rb>>8)
			dg := float64(ga>>8) - float64(gb>>8)
			db := float64(ba>>8) - float64(bb>>8)
			sum += dr*dr + dg*dg + db*db
		}
	}

	pixels := float64(boundsA.Dx() * boundsA.Dy() * 3)
	rms := math.Sqrt(sum / pixels)

	return rms < rmsIdenticalThreshold
}

// SaveDebugImage - dump a stage output to disk when debugging is enabled.
// Failures are logged, never propagated.
func SaveDebugImage(dir, stageName string, data []byte) {
	if dir == "" || len(data) == 0 {
		return
	}

	timestamp := time.Now().Format("20060102_150405")
	fileName := fmt.Sprintf("pipeline_%s_%s.png", timestamp, stageName)
	savePath := filepath.Join(dir, fileName)

	if err := os.WriteFile(savePath, data, 0o644); err != nil {
		log.Printf("⚠️  Failed to save debug image %s: %v", stageName, err)
		return
	}
	log.Printf("💾 Saved debug image: %s", savePath)
}
