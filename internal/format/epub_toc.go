package format

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/taylorskalyo/goreader/epub"
)

// NCX XML structures for parsing toc.ncx
type ncx struct {
	NavMap navMap `xml:"navMap"`
}

type navMap struct {
	NavPoints []navPoint `xml:"navPoint"`
}

type navPoint struct {
	ID        string     `xml:"id,attr"`
	PlayOrder int        `xml:"playOrder,attr"`
	Label     navLabel   `xml:"navLabel"`
	Content   navContent `xml:"content"`
	Children  []navPoint `xml:"navPoint"`
}

type navLabel struct {
	Text string `xml:"text"`
}

type navContent struct {
	Src string `xml:"src,attr"`
}

// hrefTitles maps spine hrefs, with and without fragment and directory, to
// their table of contents label.
type hrefTitles map[string]string

func (t hrefTitles) lookup(href string) string {
	if href == "" {
		return ""
	}
	if title, ok := t[href]; ok {
		return title
	}
	return t[path.Base(href)]
}

func (t hrefTitles) add(href, title string) {
	if _, exists := t[href]; !exists {
		t[href] = title
	}
}

// chapterTitles reads the NCX of an EPUB. A missing or broken NCX yields no
// titles.
func chapterTitles(data []byte, pkg *epub.Rootfile) hrefTitles {
	result := make(hrefTitles)

	ncxData, err := findAndReadNCX(data, pkg)
	if err != nil {
		return result
	}

	var toc ncx
	if err := xml.Unmarshal(ncxData, &toc); err != nil {
		return result
	}

	var extract func(points []navPoint)
	extract = func(points []navPoint) {
		for _, np := range points {
			href := np.Content.Src
			title := strings.TrimSpace(np.Label.Text)
			if href == "" || title == "" {
				extract(np.Children)
				continue
			}

			result.add(href, title)
			baseHref := href
			if idx := strings.Index(href, "#"); idx != -1 {
				baseHref = href[:idx]
				result.add(baseHref, title)
			}
			result.add(path.Base(baseHref), title)

			extract(np.Children)
		}
	}
	extract(toc.NavMap.NavPoints)

	return result
}

func findAndReadNCX(data []byte, pkg *epub.Rootfile) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	var ncxPath string
	for _, item := range pkg.Manifest.Items {
		if item.MediaType == "application/x-dtbncx+xml" {
			ncxPath = item.HREF
			break
		}
	}
	if ncxPath == "" {
		for _, f := range zr.File {
			if strings.HasSuffix(strings.ToLower(f.Name), ".ncx") {
				ncxPath = f.Name
				break
			}
		}
	}

	if ncxPath == "" {
		return nil, fmt.Errorf("no NCX file found in EPUB")
	}

	for _, f := range zr.File {
		if f.Name == ncxPath || strings.HasSuffix(f.Name, "/"+ncxPath) || path.Base(f.Name) == path.Base(ncxPath) {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}

	return nil, fmt.Errorf("NCX file %s not found in archive", ncxPath)
}
