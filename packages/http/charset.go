package http

import (
	"bytes"
	"compress/gzip"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
)

// DefaultHTMLCharset is assumed for text/html bodies without any other hint.
const DefaultHTMLCharset = "ISO-8859-1"

var (
	contentTypeCharset = regexp.MustCompile(`(?i);\s*charset\s*=\s*["']?([^\s;"']+)`)
	metaHTTPEquiv      = regexp.MustCompile(`(?i)<meta\s+http-equiv=["']?Content-Type["']?\s+content=["']?[\w/+.-]+;\s*charset=([^\s"';>]+)`)
	metaCharset        = regexp.MustCompile(`(?i)<meta\s+charset=["']?([^\s"';>/]+)`)
	xmlPrologEncoding  = regexp.MustCompile(`(?is)<\?xml[^>]*?encoding=["']([^\s"']+)`)
)

// decodeBody inflates gzip bodies and converts the result to UTF-8. The
// charset is taken from the first source that yields one:
//  1. charset parameter of Content-Type
//  2. <meta> tag in the body
//  3. encoding attribute of an <?xml ?> prolog
//  4. byte-pattern detection (BOM, UTF-8 validity)
//  5. ISO-8859-1 for text/html
//
// Bodies in UTF-8 or of unknown charset are returned trimmed. A charset that
// cannot be decoded falls back to the trimmed body as well.
func decodeBody(raw []byte, contentType, contentEncoding string) string {
	body := raw
	if strings.EqualFold(strings.TrimSpace(contentEncoding), "gzip") {
		inflated, err := gunzip(body)
		if err != nil {
			return ""
		}
		body = inflated
	}

	charset := DetectCharset(body, contentType)
	if charset != "" && !isUTF8(charset) {
		if s, ok := transcode(body, charset); ok {
			return s
		}
	}
	return strings.TrimSpace(strings.TrimPrefix(string(body), "\ufeff"))
}

// DetectCharset returns the charset name for body, or "" if none was found.
func DetectCharset(body []byte, contentType string) string {
	if m := contentTypeCharset.FindStringSubmatch(contentType); m != nil {
		return m[1]
	}
	if m := metaHTTPEquiv.FindSubmatch(body); m != nil {
		return string(m[1])
	}
	if m := metaCharset.FindSubmatch(body); m != nil {
		return string(m[1])
	}
	if m := xmlPrologEncoding.FindSubmatch(body); m != nil {
		return string(m[1])
	}
	if cs := sniffCharset(body); cs != "" {
		return cs
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "text/html") {
		return DefaultHTMLCharset
	}
	return ""
}

func sniffCharset(body []byte) string {
	switch {
	case bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}):
		return "UTF-8"
	case bytes.HasPrefix(body, []byte{0xFE, 0xFF}):
		return "UTF-16BE"
	case bytes.HasPrefix(body, []byte{0xFF, 0xFE}):
		return "UTF-16LE"
	case len(body) > 0 && utf8.Valid(body):
		return "UTF-8"
	}
	return ""
}

func isUTF8(charset string) bool {
	return strings.EqualFold(charset, "UTF-8") || strings.EqualFold(charset, "utf8")
}

// latin1Names are spellings of ISO-8859-1. The WHATWG index treats them as
// windows-1252, which would turn 0x80-0x9F into printable characters.
var latin1Names = map[string]bool{
	"iso-8859-1":      true,
	"iso8859-1":       true,
	"iso_8859-1":      true,
	"iso_8859-1:1987": true,
	"latin1":          true,
	"latin-1":         true,
	"l1":              true,
	"iso-ir-100":      true,
	"ibm819":          true,
	"cp819":           true,
	"csisolatin1":     true,
}

// lookupEncoding resolves IANA names first and uses the WHATWG index only
// for labels IANA does not know.
func lookupEncoding(charset string) encoding.Encoding {
	if latin1Names[strings.ToLower(strings.TrimSpace(charset))] {
		return charmap.ISO8859_1
	}
	if enc, err := ianaindex.IANA.Encoding(charset); err == nil && enc != nil {
		return enc
	}
	if enc, err := htmlindex.Get(charset); err == nil && enc != nil {
		return enc
	}
	return nil
}

func transcode(body []byte, charset string) (string, bool) {
	enc := lookupEncoding(charset)
	if enc == nil {
		return "", false
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", false
	}
	return strings.TrimPrefix(string(out), "\ufeff"), true
}

func gunzip(body []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
