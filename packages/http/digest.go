package http

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// DigestAuthCredentials holds credentials for digest auth
type DigestAuthCredentials struct {
	Username string
	Password string
}

// digestNC is the nonce count of the single answer sent per challenge.
const digestNC = "00000001"

// ParseChallenge splits the parameters of a WWW-Authenticate challenge into
// a map. The scheme name is dropped and quoted values may contain commas.
func ParseChallenge(header string) map[string]string {
	header = strings.TrimSpace(header)
	if scheme, rest, ok := strings.Cut(header, " "); ok && !strings.Contains(scheme, "=") {
		header = rest
	}

	params := make(map[string]string)
	for header != "" {
		header = strings.TrimLeft(header, " ,\t")
		key, rest, ok := strings.Cut(header, "=")
		if !ok {
			break
		}
		key = strings.ToLower(strings.TrimSpace(key))
		rest = strings.TrimLeft(rest, " \t")

		var value string
		if strings.HasPrefix(rest, `"`) {
			end := strings.Index(rest[1:], `"`)
			if end < 0 {
				value, header = rest[1:], ""
			} else {
				value, header = rest[1:end+1], rest[end+2:]
			}
		} else {
			value, header, _ = strings.Cut(rest, ",")
			value = strings.TrimSpace(value)
		}
		params[key] = value
	}
	return params
}

// digestAuthorization answers a WWW-Authenticate digest challenge for one
// request. It returns "" if the challenge is not a digest challenge.
func digestAuthorization(creds *DigestAuthCredentials, challenge string, method Method, rawURL string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(challenge)), "digest ") {
		return "", nil
	}
	params := ParseChallenge(challenge)

	uri := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		uri = u.RequestURI()
	}

	realm, nonce := params["realm"], params["nonce"]
	ha1 := md5Hex(creds.Username + ":" + realm + ":" + creds.Password)
	ha2 := md5Hex(method.String() + ":" + uri)

	fields := []string{
		fmt.Sprintf(`username="%s"`, creds.Username),
		fmt.Sprintf(`realm="%s"`, realm),
		fmt.Sprintf(`nonce="%s"`, nonce),
		fmt.Sprintf(`uri="%s"`, uri),
	}

	// Only qop=auth is answered; auth-int would need the body hash.
	if qop := params["qop"]; qop != "" && hasToken(qop, "auth") {
		cnonce, err := newCnonce()
		if err != nil {
			return "", err
		}
		response := md5Hex(strings.Join([]string{ha1, nonce, digestNC, cnonce, "auth", ha2}, ":"))
		fields = append(fields,
			fmt.Sprintf(`response="%s"`, response),
			"qop=auth",
			"nc="+digestNC,
			fmt.Sprintf(`cnonce="%s"`, cnonce),
		)
	} else {
		fields = append(fields, fmt.Sprintf(`response="%s"`, md5Hex(ha1+":"+nonce+":"+ha2)))
	}

	if opaque := params["opaque"]; opaque != "" {
		fields = append(fields, fmt.Sprintf(`opaque="%s"`, opaque))
	}
	if algo := params["algorithm"]; algo != "" {
		fields = append(fields, "algorithm="+algo)
	}

	return "Digest " + strings.Join(fields, ", "), nil
}

func hasToken(list, token string) bool {
	for _, t := range strings.Split(list, ",") {
		if strings.EqualFold(strings.TrimSpace(t), token) {
			return true
		}
	}
	return false
}

func newCnonce() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
