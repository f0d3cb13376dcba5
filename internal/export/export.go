// Package export writes JSON artifacts and derives artifact paths under the
// output directory.
package export

import (
	"crypto/md5" // #nosec G501 -- filename derivation only
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

// WriteJSON writes v as 2-space indented UTF-8 JSON, creating parent
// directories. The file is written to a temp name and renamed into place.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadJSON decodes the file at path into v.
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// ResolvePath places p under outputDir. Relative paths that already start
// with outputDir are kept as they are. The result must stay inside outputDir:
// absolute paths elsewhere and ".." escapes are Validation errors.
func ResolvePath(outputDir, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", types.NewError(types.KindValidation, "output path is empty")
	}
	base := filepath.Clean(outputDir)
	clean := filepath.Clean(p)

	resolved := clean
	if !filepath.IsAbs(clean) && clean != base && !strings.HasPrefix(clean, base+string(filepath.Separator)) {
		resolved = filepath.Join(base, clean)
	}
	if !within(base, resolved) {
		return "", types.NewError(types.KindValidation,
			"output path %q must stay inside the output directory %s", p, base)
	}
	return resolved, nil
}

func within(base, path string) bool {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ShortHash returns the first 8 hex characters of the MD5 of input.
func ShortHash(input string) string {
	sum := md5.Sum([]byte(input)) // #nosec G401
	return hex.EncodeToString(sum[:])[:8]
}

// ArtifactPath names a tool-produced file deterministically:
// <outputDir>/<toolID>/<stem>_<hash8><ext>.
func ArtifactPath(outputDir, toolID, stem, primaryInput, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name := fmt.Sprintf("%s_%s%s", stem, ShortHash(primaryInput), ext)
	return filepath.Join(outputDir, toolID, name)
}

// WriteArtifact writes data to path, creating parent directories.
func WriteArtifact(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", path, err)
	}
	return nil
}

// ToolReport is the tool-local artifact shape.
type ToolReport struct {
	Tool    string         `json:"tool"`
	Results []types.Record `json:"results"`
	Errors  []string       `json:"errors"`
}

func WriteToolReport(path, tool string, results []types.Record, errs []string) error {
	if results == nil {
		results = []types.Record{}
	}
	if errs == nil {
		errs = []string{}
	}
	return WriteJSON(path, ToolReport{Tool: tool, Results: results, Errors: errs})
}
