package hooks

import (
	"regexp"
	"strings"
)

// Unquoted attribute values may contain '/' but not end with one, so a
// trailing slash still marks the tag as self-closing.
const unquotedValue = `[^\s\]'"]*[^\s\]'"/]`

var (
	openTagPattern = regexp.MustCompile(`\[([A-Za-z0-9_-]+)((?:\s+[A-Za-z0-9_-]+\s*=\s*(?:"[^"]*"|'[^']*'|` + unquotedValue + `))*)\s*(/)?\]`)
	attrPattern    = regexp.MustCompile(`([A-Za-z0-9_-]+)\s*=\s*(?:"([^"]*)"|'([^']*)'|(` + unquotedValue + `))`)
)

// RenderShortcodes expands every registered shortcode in text. Both
// self-closing tags ([tag], [tag /], [tag a="b"]) and enclosing tags
// ([tag]content[/tag]) are supported. Unknown tags are left as written.
func (r *Registry) RenderShortcodes(text string) string {
	var b strings.Builder
	for {
		loc := openTagPattern.FindStringSubmatchIndex(text)
		if loc == nil {
			b.WriteString(text)
			return b.String()
		}

		tag := text[loc[2]:loc[3]]
		fn, ok := r.shortcode(tag)
		if !ok {
			b.WriteString(text[:loc[1]])
			text = text[loc[1]:]
			continue
		}

		b.WriteString(text[:loc[0]])
		attrs := parseAttrs(text[loc[4]:loc[5]])
		selfClosing := loc[6] >= 0
		rest := text[loc[1]:]

		var content string
		if !selfClosing {
			closing := "[/" + tag + "]"
			if i := strings.Index(rest, closing); i >= 0 {
				content = rest[:i]
				rest = rest[i+len(closing):]
			}
		}

		b.WriteString(fn(attrs, content))
		text = rest
	}
}

func parseAttrs(raw string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrPattern.FindAllStringSubmatch(raw, -1) {
		key := strings.ToLower(m[1])
		switch {
		case m[2] != "":
			attrs[key] = m[2]
		case m[3] != "":
			attrs[key] = m[3]
		default:
			attrs[key] = m[4]
		}
	}
	return attrs
}
