package docx

import (
	"encoding/xml"
	"fmt"
	"path"
	"regexp"
	"strconv"
)

const (
	ImageRelationship = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"

	relationshipsNamespace = "http://schemas.openxmlformats.org/package/2006/relationships"
)

var rIdRe = regexp.MustCompile(`^rId(\d+)$`)

type Relationship struct {
	Id         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

type Relationships struct {
	XMLName       xml.Name       `xml:"http://schemas.openxmlformats.org/package/2006/relationships Relationships"`
	Relationships []Relationship `xml:"Relationship"`
}

func ParseRelationships(data []byte) (*Relationships, error) {
	var rels Relationships
	err := xml.Unmarshal(data, &rels)
	if err != nil {
		return nil, err
	}

	return &rels, nil
}

// NewRelationships returns an empty relationships root.
func NewRelationships() *Relationships {
	return &Relationships{
		XMLName: xml.Name{Space: relationshipsNamespace, Local: "Relationships"},
	}
}

// NextId returns "rId<max+1>" over every existing id of the rId<digits>
// form. Ids of other shapes are ignored.
func (r *Relationships) NextId() string {
	greater := uint64(0)
	for _, rel := range r.Relationships {
		m := rIdRe.FindStringSubmatch(rel.Id)
		if m == nil {
			continue
		}

		n, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			continue
		}
		if n > greater {
			greater = n
		}
	}

	return fmt.Sprintf("rId%d", greater+1)
}

// Add appends a relationship with a freshly allocated id and returns it.
func (r *Relationships) Add(relType, target string) string {
	id := r.NextId()
	r.Relationships = append(r.Relationships, Relationship{
		Id:     id,
		Type:   relType,
		Target: target,
	})
	return id
}

// Find returns the relationship with the given id.
func (r *Relationships) Find(id string) (Relationship, bool) {
	for _, rel := range r.Relationships {
		if rel.Id == id {
			return rel, true
		}
	}
	return Relationship{}, false
}

func (r *Relationships) ToXml() ([]byte, error) {
	return marshalPart(r)
}

// RelsPathFor returns the companion relationships part of partPath:
// "word/document.xml" -> "word/_rels/document.xml.rels".
func RelsPathFor(partPath string) string {
	dir, base := path.Split(partPath)
	return path.Join(dir, "_rels", base+".rels")
}
