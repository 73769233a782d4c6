package docx

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// ContentTypesPath is the package-level content-type manifest.
const ContentTypesPath = "[Content_Types].xml"

type tagDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type tagOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type ContentTypes struct {
	XMLName   xml.Name      `xml:"http://schemas.openxmlformats.org/package/2006/content-types Types"`
	Defaults  []tagDefault  `xml:"Default"`
	Overrides []tagOverride `xml:"Override"`
}

func ParseContentTypes(data []byte) (*ContentTypes, error) {
	var ct ContentTypes
	err := xml.Unmarshal(data, &ct)
	if err != nil {
		return nil, err
	}
	return &ct, nil
}

// HasDefault reports whether a Default entry exists for extension,
// compared case-insensitively.
func (ct *ContentTypes) HasDefault(extension string) bool {
	for _, d := range ct.Defaults {
		if strings.EqualFold(d.Extension, extension) {
			return true
		}
	}
	return false
}

// AddDefaultUnique adds a Default entry unless one already exists for the
// extension. It returns true when an entry was added.
func (ct *ContentTypes) AddDefaultUnique(extension, contentType string) bool {
	if ct.HasDefault(extension) {
		return false
	}

	ct.Defaults = append(ct.Defaults, tagDefault{
		Extension:   extension,
		ContentType: contentType,
	})
	return true
}

// DefaultFor returns the content type registered for extension.
func (ct *ContentTypes) DefaultFor(extension string) (string, bool) {
	for _, d := range ct.Defaults {
		if strings.EqualFold(d.Extension, extension) {
			return d.ContentType, true
		}
	}
	return "", false
}

// replaceEmptyTags replaces specific XML empty tags patterns.
func replaceEmptyTags(data []byte) []byte {
	data = bytes.ReplaceAll(data, []byte("></Default>"), []byte(" />"))
	data = bytes.ReplaceAll(data, []byte("></Override>"), []byte(" />"))
	data = bytes.ReplaceAll(data, []byte("></Relationship>"), []byte(" />"))
	return data
}

func (ct *ContentTypes) ToXml() ([]byte, error) {
	return marshalPart(ct)
}

// marshalPart renders v with the standalone XML declaration Word expects.
func marshalPart(v any) ([]byte, error) {
	output, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return []byte{}, err
	}

	output = replaceEmptyTags(output)

	header := []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	xmlBytes := make([]byte, 0, len(header)+len(output))

	xmlBytes = append(xmlBytes, header...)
	xmlBytes = append(xmlBytes, output...)

	return xmlBytes, nil
}
