package plan

import "strings"

// Substitute performs ${NAME} variable substitution on s using vars.
// Unknown names are left literal (spec.md §4.1 "Variable substitution").
// It is a pure function applied to stage scripts, stage env values, and
// source URIs.
func Substitute(s string, vars map[string]string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end >= 0 {
				name := s[i+2 : i+2+end]
				if val, ok := vars[name]; ok {
					b.WriteString(val)
				} else {
					b.WriteString(s[i : i+2+end+1])
				}
				i += 2 + end + 1
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// SubstituteEnv applies Substitute to every value of an env map, returning
// a new map.
func SubstituteEnv(env map[string]string, vars map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = Substitute(v, vars)
	}
	return out
}
