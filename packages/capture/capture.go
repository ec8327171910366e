package capture

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/httphelper/packages/http"
	"github.com/tidwall/gjson"
)

// Source names where a value is read from.
type Source string

const (
	SourceBody     Source = "body"
	SourceHeader   Source = "header"
	SourceCookie   Source = "cookie"
	SourceStatus   Source = "status"
	SourceDuration Source = "duration"
)

type Extractor struct {
	response *http.Response
	bodyJSON gjson.Result
}

func NewExtractor(resp *http.Response) *Extractor {
	e := &Extractor{
		response: resp,
	}
	if body := resp.Body(); gjson.Valid(body) {
		e.bodyJSON = gjson.Parse(body)
	}
	return e
}

// Extract returns the value at path in source and whether it exists.
func (e *Extractor) Extract(source Source, path string) (any, bool) {
	switch source {
	case SourceBody:
		return e.extractFromBody(path)
	case SourceHeader:
		return e.extractFromHeader(path)
	case SourceCookie:
		return e.extractFromCookie(path)
	case SourceStatus:
		return e.response.Code(), true
	case SourceDuration:
		return e.response.DurationMs(), true
	default:
		return nil, false
	}
}

// Query evaluates an expression such as "body.user.id", "body user.id",
// "header Location",
// "cookie sid", "status" or "duration". A bare path is read from the body.
func (e *Extractor) Query(expr string) (any, bool) {
	source, path, err := ParseExpr(expr)
	if err != nil {
		return nil, false
	}
	return e.Extract(source, path)
}

// ParseExpr splits a query expression into its source and path.
func ParseExpr(expr string) (Source, string, error) {
	expr = strings.TrimSpace(expr)
	switch {
	case expr == "":
		return "", "", fmt.Errorf("empty expression")
	case expr == string(SourceStatus), expr == string(SourceDuration):
		return Source(expr), "", nil
	case expr == string(SourceBody):
		return SourceBody, "", nil
	case expr == string(SourceHeader), expr == string(SourceCookie):
		return "", "", fmt.Errorf("%s name required", expr)
	case strings.HasPrefix(expr, "body."), strings.HasPrefix(expr, "body["):
		return SourceBody, strings.TrimPrefix(strings.TrimPrefix(expr, "body"), "."), nil
	case strings.HasPrefix(expr, "body "):
		return SourceBody, strings.TrimSpace(strings.TrimPrefix(expr, "body")), nil
	case strings.HasPrefix(expr, "header "):
		return headerOrCookie(SourceHeader, expr)
	case strings.HasPrefix(expr, "cookie "):
		return headerOrCookie(SourceCookie, expr)
	}
	return SourceBody, expr, nil
}

func headerOrCookie(source Source, expr string) (Source, string, error) {
	name := strings.TrimSpace(strings.TrimPrefix(expr, string(source)))
	if name == "" {
		return "", "", fmt.Errorf("%s name required", source)
	}
	return source, name, nil
}

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

// convertBracketNotation converts array bracket notation to gjson dot notation
// e.g., "[0].id" -> "0.id", "items[0].tags[1]" -> "items.0.tags.1"
func convertBracketNotation(path string) string {
	result := bracketIndex.ReplaceAllString(path, ".$1")
	return strings.TrimPrefix(result, ".")
}

func (e *Extractor) extractFromBody(path string) (any, bool) {
	if !e.bodyJSON.Exists() {
		if path == "" {
			return e.response.Body(), true
		}
		return nil, false
	}

	if path == "" {
		return e.bodyJSON.Value(), true
	}

	result := e.bodyJSON.Get(convertBracketNotation(path))
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

// extractFromHeader looks the name up exactly first, then ignoring case.
func (e *Extractor) extractFromHeader(name string) (any, bool) {
	if value := e.response.Header(name); value != "" {
		return value, true
	}
	for k, v := range e.response.Headers() {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func (e *Extractor) extractFromCookie(name string) (any, bool) {
	for _, c := range e.response.Cookies() {
		if c.Name == name {
			return c.Value, true
		}
	}
	return nil, false
}

// ExtractAll evaluates every named expression and keeps the ones found.
func ExtractAll(resp *http.Response, exprs map[string]string) map[string]any {
	extractor := NewExtractor(resp)
	results := make(map[string]any)

	for name, expr := range exprs {
		if value, ok := extractor.Query(expr); ok {
			results[name] = value
		}
	}

	return results
}

// Format renders an extracted value for terminal output: strings as-is,
// JSON values in their compact JSON form.
func Format(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case map[string]any, []any:
		return mustJSON(val)
	}
	return fmt.Sprint(v)
}
