package docx

import (
	"bytes"
	"fmt"
	"math"
	"regexp"
	"text/template"
)

// EMUPerPixel converts pixels to EMUs at 96 DPI (914400 EMU per inch).
const EMUPerPixel = 9525

// EMU converts a pixel length to EMUs.
func EMU(px float64) int64 {
	return int64(math.Round(px * EMUPerPixel))
}

type XmlImageData struct {
	DocPrId  uint32
	Name     string
	RefID    string
	Cx       int64
	Cy       int64
	Centered bool
}

const imageTemplateXml = `{{if .Centered}}<w:p>
  <w:pPr>
    <w:jc w:val="center" />
  </w:pPr>
{{end}}<w:r>
  <w:drawing>
    <wp:inline distT="0" distB="0" distL="0" distR="0"
      xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
      xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
      xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture"
      xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
      <wp:extent cx="{{.Cx}}" cy="{{.Cy}}" />
      <wp:effectExtent l="0" t="0" r="0" b="0" />
      <wp:docPr id="{{.DocPrId}}" name="{{.Name}}" />
      <wp:cNvGraphicFramePr>
        <a:graphicFrameLocks noChangeAspect="1" />
      </wp:cNvGraphicFramePr>
      <a:graphic>
        <a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">
          <pic:pic>
            <pic:nvPicPr>
              <pic:cNvPr id="{{.DocPrId}}" name="{{.Name}}" />
              <pic:cNvPicPr>
                <a:picLocks noChangeAspect="1" noChangeArrowheads="1" />
              </pic:cNvPicPr>
            </pic:nvPicPr>
            <pic:blipFill>
              <a:blip r:embed="{{.RefID}}" />
              <a:srcRect />
              <a:stretch>
                <a:fillRect />
              </a:stretch>
            </pic:blipFill>
            <pic:spPr bwMode="auto">
              <a:xfrm>
                <a:off x="0" y="0" />
                <a:ext cx="{{.Cx}}" cy="{{.Cy}}" />
              </a:xfrm>
              <a:prstGeom prst="rect">
                <a:avLst />
              </a:prstGeom>
            </pic:spPr>
          </pic:pic>
        </a:graphicData>
      </a:graphic>
    </wp:inline>
  </w:drawing>
</w:r>{{if .Centered}}
</w:p>{{end}}`

var (
	imageTemplate    = template.Must(template.New("image-template").Parse(imageTemplateXml))
	interTagSpacesRe = regexp.MustCompile(`>\s+<`)
	attrSpacesRe     = regexp.MustCompile(`\s{2,}`)
)

// BuildDrawing renders the inline picture markup for an embedded image:
// a run, wrapped in a centered paragraph when d.Centered is set.
func BuildDrawing(d XmlImageData) (string, error) {
	d.Name = escapeAttr(d.Name)

	buffer := bytes.Buffer{}
	err := imageTemplate.Execute(&buffer, d)
	if err != nil {
		return "", fmt.Errorf("unable to execute image template: %w", err)
	}

	return collapseSpaces(buffer.String()), nil
}

func collapseSpaces(s string) string {
	s = interTagSpacesRe.ReplaceAllString(s, "><")
	return attrSpacesRe.ReplaceAllString(s, " ")
}

func escapeAttr(s string) string {
	buffer := bytes.Buffer{}
	template.HTMLEscape(&buffer, []byte(s))
	return buffer.String()
}
