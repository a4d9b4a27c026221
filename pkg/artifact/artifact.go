// Package artifact manages the files of one diagram: the text source, the
// compiled image, and a digest stamp tying the image to the source it was
// compiled from. All three share a base filename named after the diagram type.
//
// Writing a new source removes the image and stamp, so an image can never
// outlive the text it was derived from.
package artifact

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/alessiagatto/documenter-agent/pkg/utils"
)

// SourceExt is the extension of diagram source files.
const SourceExt = ".puml"

// digestExt is the extension of the compile stamp.
const digestExt = ".digest"

// Artifact is the file set of one diagram.
type Artifact struct {
	Type       string
	SourcePath string
	ImagePath  string
}

// New returns the artifact for diagramType under dir. imageExt includes the dot.
func New(dir, diagramType, imageExt string) *Artifact {
	base := filepath.Join(dir, diagramType)
	return &Artifact{
		Type:       diagramType,
		SourcePath: base + SourceExt,
		ImagePath:  ImagePathFor(base+SourceExt, imageExt),
	}
}

// ImagePathFor replaces the source extension with imageExt.
func ImagePathFor(sourcePath, imageExt string) string {
	return strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + imageExt
}

func (a *Artifact) stampPath() string {
	return strings.TrimSuffix(a.SourcePath, filepath.Ext(a.SourcePath)) + digestExt
}

// WriteSource atomically replaces the source text and invalidates any image.
func (a *Artifact) WriteSource(text string) error {
	if err := a.Invalidate(); err != nil {
		return err
	}
	if err := utils.WriteFileAtomic(a.SourcePath, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write %s source: %w", a.Type, err)
	}
	return nil
}

// HasSource reports whether the source file exists.
func (a *Artifact) HasSource() bool {
	return utils.FileExists(a.SourcePath)
}

// Invalidate removes the image and its stamp.
func (a *Artifact) Invalidate() error {
	for _, p := range []string{a.ImagePath, a.stampPath()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove stale %s: %w", p, err)
		}
	}
	return nil
}

// SourceDigest returns the blake2b-256 digest of the current source, hex encoded.
func (a *Artifact) SourceDigest() (string, error) {
	data, err := os.ReadFile(a.SourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s source: %w", a.Type, err)
	}
	return Digest(data), nil
}

// Digest returns the hex blake2b-256 digest of data.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// MarkCompiled records that the image was produced from the current source.
func (a *Artifact) MarkCompiled() error {
	digest, err := a.SourceDigest()
	if err != nil {
		return err
	}
	if err := utils.WriteFileAtomic(a.stampPath(), []byte(digest+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to stamp %s image: %w", a.Type, err)
	}
	return nil
}

// ImageAvailable reports whether the image exists and was compiled from the
// current source.
func (a *Artifact) ImageAvailable() bool {
	if !utils.FileExists(a.ImagePath) {
		return false
	}
	stamp, err := os.ReadFile(a.stampPath())
	if err != nil {
		return false
	}
	digest, err := a.SourceDigest()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(stamp)) == digest
}
