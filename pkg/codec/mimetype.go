package codec

import (
	"path"
	"strings"
)

// Mimetypes with a registered codec, plus the ones resources report.
const (
	JSON       = "application/json"
	YAML       = "text/yaml"
	CSV        = "text/csv"
	Text       = "text/plain"
	Script     = "text/x-uriel"
	HTML       = "text/html"
	XML        = "application/xml"
	Properties = "text/x-java-properties"
	Form       = "application/x-www-form-urlencoded"
	SQL        = "application/x-sql"
	JPQL       = "application/x-jpql"
	MIDI       = "audio/midi"
	SoundFont  = "audio/x-sf2"
	Directory  = "inode/directory"
)

var extensions = map[string]string{
	"json":       JSON,
	"yaml":       YAML,
	"yml":        YAML,
	"csv":        CSV,
	"txt":        Text,
	"sh":         Text,
	"kt":         Text,
	"kts":        Text,
	"uriel":      Script,
	"html":       HTML,
	"htm":        HTML,
	"xml":        XML,
	"properties": Properties,
	"sql":        SQL,
	"jpql":       JPQL,
	"mid":        MIDI,
	"midi":       MIDI,
	"kar":        MIDI,
	"sf2":        SoundFont,
}

// ForExtension returns the mimetype registered for a file name's extension.
func ForExtension(name string) (string, bool) {
	ext := strings.TrimPrefix(path.Ext(name), ".")
	mt, ok := extensions[strings.ToLower(ext)]
	return mt, ok
}

// Extension returns the preferred file extension for a mimetype.
func Extension(mimetype string) (string, bool) {
	mimetype = Normalize(mimetype)
	best := ""
	for ext, mt := range extensions {
		if mt == mimetype && (best == "" || len(ext) > len(best) || (len(ext) == len(best) && ext < best)) {
			best = ext
		}
	}
	return best, best != ""
}

// Normalize lower-cases a mimetype and strips its parameters.
func Normalize(mimetype string) string {
	if i := strings.IndexByte(mimetype, ';'); i >= 0 {
		mimetype = mimetype[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimetype))
}

// htmlTags are the leading tags that identify a document as HTML rather
// than XML.
var htmlTags = map[string]bool{
	"html": true, "head": true, "title": true, "style": true, "script": true, "link": true,
	"body": true, "div": true, "img": true, "audio": true, "video": true,
}

// detectLines is how many non-blank lines Detect looks at.
const detectLines = 10

// Detect guesses the mimetype of text from its first non-blank lines. It
// returns "" when no format stands out.
//
// A leading tag selects HTML or XML and JSON delimiters select JSON. A single
// line of key=value pairs joined by & is a form. Otherwise each line is
// classified as a CSV record (at least as many commas as the first line), a
// comment, a list item, a key=value pair or a key: value pair, and the
// classification every line agrees on wins.
func Detect(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "<") && strings.HasSuffix(trimmed, ">") {
		if isHTMLTag(trimmed) {
			return HTML
		}
		return XML
	}
	for _, pair := range []string{"{}", "[]", `""`} {
		if strings.HasPrefix(trimmed, pair[:1]) && strings.HasSuffix(trimmed, pair[1:]) {
			return JSON
		}
	}
	if !strings.Contains(trimmed, "\n") && isForm(trimmed) {
		return Form
	}

	lines := strings.Split(trimmed, "\n")
	if strings.TrimSpace(lines[0]) == "---" {
		return YAML
	}
	fields := strings.Count(lines[0], ",") + 1
	var count, records, pounds, dashes, equals, colons int
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		eq, col := strings.IndexByte(line, '='), strings.IndexByte(line, ':')
		switch {
		case fields > 1 && strings.Count(line, ",")+1 >= fields:
			records++
		case line[0] == '#':
			pounds++
		case line[0] == '-':
			dashes++
		case eq > 0 && (col < 0 || col > eq):
			equals++
		case col > 0 && (eq < 0 || eq > col):
			colons++
		}
		count++
		if count >= detectLines {
			break
		}
	}
	switch {
	case records == count:
		return CSV
	case equals+pounds == count:
		return Properties
	case colons+pounds+dashes == count:
		if dashes > 0 {
			return YAML
		}
		return Properties
	}
	return ""
}

func isForm(line string) bool {
	for _, part := range strings.Split(line, "&") {
		if strings.IndexByte(part, '=') <= 0 || strings.ContainsAny(part, " \t") {
			return false
		}
	}
	return true
}

func isHTMLTag(line string) bool {
	lower := strings.ToLower(line)
	if strings.HasPrefix(lower, "<!doctype html") {
		return true
	}
	end := 1
	for end < len(lower) && isAlnum(lower[end]) {
		end++
	}
	return htmlTags[lower[1:end]]
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
