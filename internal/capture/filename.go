package capture

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	patternVar = regexp.MustCompile(`\$\{([^}]+)\}`)
	unsafeName = strings.NewReplacer(
		"/", "_", `\`, "_", ":", "_", "*", "_", "?", "_",
		`"`, "_", "<", "_", ">", "_", "|", "_", "\n", " ", "\r", " ", "\t", " ",
	)
)

// ExpandPattern fills a file name pattern from c. Supported variables are
// ${YYYY} ${MM} ${DD} ${hh} ${mm} ${ss} ${title} ${hostname} ${user} and
// ${meta:key}; unknown variables expand to nothing. Expanded values never
// contain path separators or characters file systems reject.
func ExpandPattern(pattern string, c *Context) string {
	return strings.TrimSpace(expand(pattern, c, unsafeName.Replace))
}

// ExpandText fills the same variables as ExpandPattern into free text, such
// as an overlay caption, without sanitizing the values.
func ExpandText(text string, c *Context) string {
	return expand(text, c, func(s string) string { return s })
}

func expand(pattern string, c *Context, clean func(string) string) string {
	t := c.CapturedAt
	return patternVar.ReplaceAllStringFunc(pattern, func(m string) string {
		key := m[2 : len(m)-1]
		var v string
		switch key {
		case "YYYY":
			v = fmt.Sprintf("%04d", t.Year())
		case "MM":
			v = fmt.Sprintf("%02d", int(t.Month()))
		case "DD":
			v = fmt.Sprintf("%02d", t.Day())
		case "hh":
			v = fmt.Sprintf("%02d", t.Hour())
		case "mm":
			v = fmt.Sprintf("%02d", t.Minute())
		case "ss":
			v = fmt.Sprintf("%02d", t.Second())
		case "title":
			v = c.Title
		case "hostname":
			v = c.defaults.Hostname
		case "user":
			v = c.defaults.User
		default:
			if meta, ok := strings.CutPrefix(key, "meta:"); ok {
				v = c.metadata[meta]
			}
		}
		return clean(v)
	})
}
