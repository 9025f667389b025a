package resolver

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/starford/quill/internal/layout"
)

var driveRoot = regexp.MustCompile(`^[A-Za-z]:/$`)

// extendedPrefixes are Windows extended-length and device prefixes, in the
// order they must be tried. The replacement keeps UNC shares addressable.
var extendedPrefixes = []struct{ prefix, replace string }{
	{`\\?\UNC\`, `\\`},
	{`\\?\`, ``},
	{`//?/UNC/`, `//`},
	{`//?/`, ``},
}

// Candidates expands a user-supplied path into the distinct forms worth
// probing, most literal first.
func Candidates(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var out []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if p == "" {
			return
		}
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	add(raw)
	slashed := toSlash(raw)
	add(slashed)
	add(trimTrailingSlash(slashed))

	stripped := stripPrefix(raw)
	if u, ok := fromFileURI(raw); ok {
		stripped = u
	}
	add(stripped)
	add(trimTrailingSlash(toSlash(stripped)))

	for _, c := range append([]string(nil), out...) {
		clean := trimTrailingSlash(toSlash(c))
		if strings.EqualFold(path.Base(clean), layout.MetadataFile) {
			add(path.Dir(clean))
		}
	}
	return out
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

func trimTrailingSlash(p string) string {
	for len(p) > 1 && strings.HasSuffix(p, "/") && !driveRoot.MatchString(p) {
		p = p[:len(p)-1]
	}
	return p
}

func stripPrefix(p string) string {
	for _, ep := range extendedPrefixes {
		if strings.HasPrefix(p, ep.prefix) {
			return ep.replace + p[len(ep.prefix):]
		}
	}
	return p
}

// fromFileURI decodes file:// URIs. Remote hosts map to UNC-style paths
// and "/C:/x" becomes "C:/x".
func fromFileURI(raw string) (string, bool) {
	if !strings.HasPrefix(strings.ToLower(raw), "file:") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "", false
	}
	p := u.Path
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	if u.Host != "" && !strings.EqualFold(u.Host, "localhost") {
		p = "//" + u.Host + p
	}
	return p, true
}
