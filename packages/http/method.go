package http

// Method is one of the HTTP verbs the engine can send.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPut    Method = "PUT"
	MethodPost   Method = "POST"
	MethodHead   Method = "HEAD"
	MethodDelete Method = "DELETE"
)

// Methods lists every supported method.
var Methods = []Method{MethodGet, MethodPut, MethodPost, MethodHead, MethodDelete}

// ParseMethod validates a method name. Names are matched exactly; lowercase
// verbs are rejected like any other unknown method.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodGet, MethodPut, MethodPost, MethodHead, MethodDelete:
		return m, nil
	}
	return "", invalidArgument("unknown method: %q", s)
}

func (m Method) String() string {
	return string(m)
}

// hasBody reports whether field or JSON data is sent for the method.
func (m Method) hasBody() bool {
	return m == MethodPost || m == MethodPut || m == MethodDelete
}

// IsValid reports whether m is a supported method.
func (m Method) IsValid() bool {
	_, err := ParseMethod(string(m))
	return err == nil
}
