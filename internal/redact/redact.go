// Package redact scrubs credentials from endpoint URLs, request headers and
// error text before they are logged or echoed back in task snapshots. Source
// endpoints are supplied by callers and routinely carry tokens in query
// strings or Authorization headers.
package redact

import (
	"bytes"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Placeholders substituted for sensitive values.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
)

var (
	// user:pass@ in any scheme://
	userInfoRegex = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^/@\s]+@`)

	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`)
	apiKeyRegex   = regexp.MustCompile(
		`(?i)(api[_-]?key|access[_-]?token|token|secret|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`,
	)
	bearerRegex   = regexp.MustCompile(`(?i)(bearer|basic)\s+[A-Za-z0-9_\-.~+/=]{8,}`)
	jwtTokenRegex = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)

	// Order matters: JWTs first so the key patterns do not half-consume them.
	patterns = []struct {
		re          *regexp.Regexp
		replacement string
	}{
		{jwtTokenRegex, RedactedJWTPlaceholder},
		{userInfoRegex, "${1}" + RedactedCredentialPlaceholder + "@"},
		{bearerRegex, "${1} " + RedactedCredentialPlaceholder},
		{passwordRegex, RedactedCredentialPlaceholder},
		{apiKeyRegex, RedactedKeyPlaceholder},
	}

	sensitiveNames = []string{
		"authorization", "cookie", "token", "secret", "password", "passwd",
		"apikey", "api_key", "api-key", "key", "signature", "session", "auth",
	}
)

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, p := range patterns {
		result = p.re.ReplaceAllString(result, p.replacement)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// URL returns raw with user info and sensitive query values masked. Strings
// that do not parse as URLs fall back to String.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return String(raw)
	}
	if u.User != nil {
		u.User = url.User(RedactedCredentialPlaceholder)
	}
	if u.RawQuery != "" {
		q := u.Query()
		for name := range q {
			if IsSensitiveName(name) {
				q.Set(name, RedactionPlaceholder)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Headers returns a copy of h with sensitive header values masked.
func Headers(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if IsSensitiveName(k) {
			out[k] = RedactionPlaceholder
			continue
		}
		out[k] = v
	}
	return out
}

// JSON returns a copy of a JSON document with the value of every member
// whose name looks sensitive replaced by RedactionPlaceholder, at any depth.
// Invalid JSON is returned unchanged.
func JSON(data []byte) []byte {
	out := bytes.Clone(data)
	if len(bytes.TrimSpace(out)) == 0 || !gjson.ValidBytes(out) {
		return out
	}
	for _, path := range sensitivePaths(gjson.ParseBytes(out), "") {
		masked, err := sjson.SetBytes(out, path, RedactionPlaceholder)
		if err != nil {
			continue
		}
		out = masked
	}
	return out
}

func sensitivePaths(v gjson.Result, prefix string) []string {
	var paths []string
	join := func(comp string) string {
		if prefix == "" {
			return comp
		}
		return prefix + "." + comp
	}

	switch {
	case v.IsObject():
		v.ForEach(func(key, value gjson.Result) bool {
			path := join(gjson.Escape(key.String()))
			if IsSensitiveName(key.String()) {
				paths = append(paths, path)
			} else {
				paths = append(paths, sensitivePaths(value, path)...)
			}
			return true
		})
	case v.IsArray():
		i := 0
		v.ForEach(func(_, value gjson.Result) bool {
			paths = append(paths, sensitivePaths(value, join(strconv.Itoa(i)))...)
			i++
			return true
		})
	}
	return paths
}

// IsSensitiveName reports whether a header or parameter name usually carries
// a credential.
func IsSensitiveName(name string) bool {
	n := strings.ToLower(name)
	for _, s := range sensitiveNames {
		if strings.Contains(n, s) {
			return true
		}
	}
	return false
}
