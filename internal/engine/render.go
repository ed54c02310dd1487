package engine

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// pageTmpl is the transcript page. Interpolated values are escaped by html/template.
var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<meta charset="utf-8">
<title>Transcript – {{.Title}}</title>
<link rel="canonical" href="https://youtube.com/watch?v={{.VideoID}}">
<style>body{font:16px/1.5 system-ui} pre{white-space:pre-wrap}</style>
<h1>{{.Title}}</h1>
<pre id=transcript>{{.Body}}</pre>
</html>
`))

// DefaultTitle is used for every page; titles are not looked up remotely.
func DefaultTitle(videoID string) string {
	return "YouTube Video " + videoID
}

// FormatSegmentLine renders one transcript line: start time with one decimal
// in a six-wide zero-padded field, two spaces, then the text.
func FormatSegmentLine(s Segment) string {
	return fmt.Sprintf("%06.1f  %s", s.Start, s.Text)
}

// TranscriptBody joins the formatted lines of all segments in source order.
func TranscriptBody(segments []Segment) string {
	lines := make([]string, len(segments))
	for i, s := range segments {
		lines[i] = FormatSegmentLine(s)
	}
	return strings.Join(lines, "\n")
}

// RenderPage converts a transcript into the static HTML page.
// Same inputs always give byte-identical output.
func RenderPage(title string, segments []Segment, videoID string) (string, error) {
	var buf bytes.Buffer
	err := pageTmpl.Execute(&buf, struct {
		Title   string
		VideoID string
		Body    string
	}{title, videoID, TranscriptBody(segments)})
	if err != nil {
		return "", fmt.Errorf("render %s: %w", videoID, err)
	}
	return buf.String(), nil
}
