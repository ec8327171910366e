package http

import (
	"strings"
)

// Cookie is a name/value pair with optional attributes. Known attributes have
// their own fields; anything else received in a Set-Cookie header is kept in
// Extra under the name it arrived with.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  string
	MaxAge   string
	SameSite string
	Secure   bool
	HTTPOnly bool
	Extra    map[string]string
}

// NewCookie creates a cookie without attributes.
func NewCookie(name, value string) *Cookie {
	return &Cookie{Name: name, Value: value}
}

// String returns the wire form used in a Cookie request header.
func (c *Cookie) String() string {
	return c.Name + "=" + c.Value
}

// Get returns the value of an attribute. Known attributes are matched
// case-insensitively, extras exactly. Flag attributes (Secure, HttpOnly)
// report an empty value when present.
func (c *Cookie) Get(attr string) (string, bool) {
	switch strings.ToLower(attr) {
	case "name":
		return c.Name, true
	case "value":
		return c.Value, true
	case "domain":
		return c.Domain, c.Domain != ""
	case "path":
		return c.Path, c.Path != ""
	case "expires":
		return c.Expires, c.Expires != ""
	case "max-age", "maxage":
		return c.MaxAge, c.MaxAge != ""
	case "samesite":
		return c.SameSite, c.SameSite != ""
	case "secure":
		return "", c.Secure
	case "httponly":
		return "", c.HTTPOnly
	}
	v, ok := c.Extra[attr]
	return v, ok
}

// Set assigns an attribute. Setting Secure or HttpOnly turns the flag on
// regardless of value.
func (c *Cookie) Set(attr, value string) {
	switch strings.ToLower(attr) {
	case "name":
		c.Name = value
	case "value":
		c.Value = value
	case "domain":
		c.Domain = value
	case "path":
		c.Path = value
	case "expires":
		c.Expires = value
	case "max-age", "maxage":
		c.MaxAge = value
	case "samesite":
		c.SameSite = value
	case "secure":
		c.Secure = true
	case "httponly":
		c.HTTPOnly = true
	default:
		if c.Extra == nil {
			c.Extra = make(map[string]string)
		}
		c.Extra[attr] = value
	}
}

// Clone returns a deep copy of the cookie.
func (c *Cookie) Clone() *Cookie {
	cp := *c
	if c.Extra != nil {
		cp.Extra = make(map[string]string, len(c.Extra))
		for k, v := range c.Extra {
			cp.Extra[k] = v
		}
	}
	return &cp
}

// ParseSetCookie parses the value of a Set-Cookie header. The first
// `key[=value]` segment names the cookie, every following segment becomes an
// attribute. A value without any '=' yields a cookie with an empty value.
// It returns nil when no cookie name can be found.
func ParseSetCookie(value string) *Cookie {
	segments := strings.Split(value, ";")
	name, val, _ := strings.Cut(segments[0], "=")
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	cookie := NewCookie(name, strings.TrimSpace(val))
	for _, seg := range segments[1:] {
		key, attrVal, _ := strings.Cut(seg, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		cookie.Set(key, strings.TrimSpace(attrVal))
	}
	return cookie
}

// matches reports whether the cookie may be sent to the target. Domain and
// path are matched by substring containment, not by the suffix/prefix rules
// of RFC 6265; Secure cookies only go to https targets.
func (c *Cookie) matches(scheme, host, path string) bool {
	if c.Domain != "" && host != "" && !strings.Contains(host, c.Domain) {
		return false
	}
	if c.Path != "" && path != "" && !strings.Contains(path, c.Path) {
		return false
	}
	if c.Secure && scheme != "" && scheme != "https" {
		return false
	}
	return true
}
