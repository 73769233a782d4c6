package docx

import (
	"fmt"
	"path"
	"strings"
)

// RelManager registers media for one document part. It is created per
// render call and only borrows the session Package, so it must not outlive
// that call. It is not safe for concurrent use; hold the Package lock.
type RelManager struct {
	pkg      *Package
	partPath string
	relsPath string
	rels     *Relationships
}

// NewRelManager locates, or lazily creates, the relationships document of
// partPath inside pkg.
func NewRelManager(pkg *Package, partPath string) (*RelManager, error) {
	relsPath := RelsPathFor(partPath)

	rels, err := pkg.Relationships(relsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to load relationships of '%s': %w", partPath, err)
	}

	return &RelManager{
		pkg:      pkg,
		partPath: partPath,
		relsPath: relsPath,
		rels:     rels,
	}, nil
}

// RelsPath returns the relationships part managed by m.
func (m *RelManager) RelsPath() string {
	return m.relsPath
}

// AddImage stores data as a new media part, registers the content type of
// its extension and appends an image relationship. It returns the new
// relationship id and the stored media path.
//
// The content-type manifest is checked before anything is written, so a
// malformed package is left untouched.
func (m *RelManager) AddImage(candidateName string, data []byte) (string, string, error) {
	contentTypes, err := m.pkg.ContentTypes()
	if err != nil {
		return "", "", err
	}

	mediaPath, err := m.pkg.freeMediaPath(candidateName)
	if err != nil {
		return "", "", fmt.Errorf("unable to name media file '%s': %w", candidateName, err)
	}

	m.pkg.Write(mediaPath, data)

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(mediaPath), "."))
	if ext != "" {
		contentTypes.AddDefaultUnique(ext, MimeType(ext))
	}

	target := path.Join("media", path.Base(mediaPath))
	rId := m.rels.Add(ImageRelationship, target)

	return rId, mediaPath, nil
}
