package assets

import (
	"bytes"
	"net/http"
)

// detectContentType sniffs the MIME type of a blob. SVG is checked first:
// signature-based sniffers misclassify SVG as plain text or generic XML, and
// browsers insist on a MIME type for SVGs specifically. Returns "" when the
// type cannot be determined.
func detectContentType(data []byte) string {
	if isSVG(data) {
		return "image/svg+xml"
	}

	contentType := http.DetectContentType(data)
	if contentType == "application/octet-stream" {
		return ""
	}
	return contentType
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// isSVG reports whether the blob is an SVG document: an optional BOM, then
// any mix of XML declarations, doctypes, comments and whitespace, then an
// <svg root element.
func isSVG(data []byte) bool {
	data = bytes.TrimPrefix(data, utf8BOM)

	for {
		data = bytes.TrimLeft(data, " \t\r\n")
		switch {
		case bytes.HasPrefix(data, []byte("<?")):
			end := bytes.Index(data, []byte("?>"))
			if end < 0 {
				return false
			}
			data = data[end+2:]
		case bytes.HasPrefix(data, []byte("<!--")):
			end := bytes.Index(data, []byte("-->"))
			if end < 0 {
				return false
			}
			data = data[end+3:]
		case bytes.HasPrefix(data, []byte("<!")):
			end := bytes.IndexByte(data, '>')
			if end < 0 {
				return false
			}
			data = data[end+1:]
		default:
			if len(data) < 4 || !bytes.EqualFold(data[:4], []byte("<svg")) {
				return false
			}
			return len(data) == 4 || bytes.ContainsAny(data[4:5], " \t\r\n>/")
		}
	}
}
