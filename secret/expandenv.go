package secret

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// ExpandEnvStrict expands environment references in configuration
// values before secret-ref resolution runs.
//
//   - ${VAR} expands, and errors when VAR is unset. Credential config
//     must fail loudly rather than proceed with an empty client secret.
//   - $VAR expands leniently, matching shell behavior for unset names.
//   - $$ escapes to a literal dollar sign.
func ExpandEnvStrict(s string) (string, error) {
	var out strings.Builder
	missing := map[string]bool{}

	for i := 0; i < len(s); {
		if s[i] != '$' {
			out.WriteByte(s[i])
			i++
			continue
		}
		if i+1 < len(s) && s[i+1] == '$' {
			out.WriteByte('$')
			i += 2
			continue
		}
		if i+1 < len(s) && s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end >= 0 && isEnvName(s[i+2:i+2+end]) {
				name := s[i+2 : i+2+end]
				if v, ok := os.LookupEnv(name); ok {
					out.WriteString(v)
				} else {
					missing[name] = true
				}
				i += end + 3
				continue
			}
			out.WriteByte('$')
			i++
			continue
		}

		j := i + 1
		for j < len(s) && isEnvNameByte(s[j], j > i+1) {
			j++
		}
		if j == i+1 {
			out.WriteByte('$')
			i++
			continue
		}
		out.WriteString(os.Getenv(s[i+1 : j]))
		i = j
	}

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		return "", fmt.Errorf("missing required environment variables: %s", strings.Join(names, ", "))
	}
	return out.String(), nil
}

func isEnvName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isEnvNameByte(name[i], i > 0) {
			return false
		}
	}
	return true
}

func isEnvNameByte(c byte, interior bool) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		return true
	case c >= '0' && c <= '9':
		return interior
	default:
		return false
	}
}
