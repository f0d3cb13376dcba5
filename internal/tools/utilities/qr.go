package utilities

import (
	"os"
	"path/filepath"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/export"
)

// writeQR renders content as a PNG QR code under the tool's artifact
// directory and returns the file path.
func writeQR(outputDir, toolID, content string) (string, error) {
	path := export.ArtifactPath(outputDir, toolID, "qr", content, "png")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	if err := qrcode.WriteFile(content, qrcode.Medium, 256, path); err != nil {
		return "", err
	}
	return path, nil
}
