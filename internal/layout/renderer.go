package layout

import (
	"strconv"
	"strings"
)

// TemplateRenderer is the default PathRenderer: it expands `{{token}}`
// placeholders against a Context. No pack dependency offers this narrow a
// templating need (a handful of lowercase named placeholders, no logic,
// no loops); text/template's `{{.Field}}` syntax would force every
// user-facing template in config examples to use Go's exported-field dot
// syntax instead of the plain names spec.md's option table already implies
// (`video_name`, `page_name`, ...), so a direct token replacer is used
// instead (DESIGN.md: stdlib justification).
type TemplateRenderer struct{}

// Render replaces every recognized {{token}} in template with the
// corresponding Context field; sanitization of the result is the caller's
// job (C2's Sanitize), not this renderer's.
func (TemplateRenderer) Render(template string, ctx Context) (string, error) {
	var b strings.Builder
	for {
		start := strings.Index(template, "{{")
		if start < 0 {
			b.WriteString(template)
			break
		}
		end := strings.Index(template[start:], "}}")
		if end < 0 {
			b.WriteString(template)
			break
		}
		end += start
		b.WriteString(template[:start])
		token := strings.TrimSpace(template[start+2 : end])
		b.WriteString(resolveToken(token, ctx))
		template = template[end+2:]
	}
	return b.String(), nil
}

func resolveToken(token string, ctx Context) string {
	switch token {
	case "title":
		return ctx.Title
	case "series":
		return ctx.SeriesTitle
	case "uploader":
		return ctx.UploaderName
	case "uploader_id":
		return ctx.UploaderID
	case "season":
		return strconv.Itoa(ctx.SeasonNumber)
	case "episode":
		return strconv.Itoa(ctx.EpisodeNumber)
	default:
		return ""
	}
}
