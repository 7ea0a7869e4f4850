package worker

import (
	"fmt"
	"html"
	"strings"
)

// baseCSS 是发布页面的基础样式，模板的设计变量通过 CSS 自定义属性注入。
const baseCSS = `
:root {
  --accent-color: #b76e79;
  --font-family: "Noto Serif KR", serif;
  --text-align: center;
}
* { box-sizing: border-box; margin: 0; padding: 0; }
body {
  font-family: var(--font-family);
  color: #3a3a3a;
  background: #fdfbf8;
  text-align: var(--text-align);
  line-height: 1.7;
  max-width: 480px;
  margin: 0 auto;
  padding: 24px 20px 48px;
}
h1, h2 { color: var(--accent-color); font-weight: 600; }
h1 { font-size: 1.6rem; margin: 24px 0 8px; }
h2 { font-size: 1.1rem; margin: 32px 0 8px; }
img { max-width: 100%; border-radius: 8px; }
section { margin-bottom: 28px; }
`

// 模板 Styles 中允许映射为 CSS 变量的键，顺序固定以保证产物可复现。
var styleVars = []struct {
	key     string
	varName string
}{
	{"accent_color", "--accent-color"},
	{"font_family", "--font-family"},
	{"align", "--text-align"},
}

// composePage 将渲染后的正文包装为完整的 HTML 文档。
func composePage(title, body string, styles map[string]string) string {
	var overrides strings.Builder
	for _, sv := range styleVars {
		value := strings.TrimSpace(styles[sv.key])
		if value == "" {
			continue
		}
		fmt.Fprintf(&overrides, "  %s: %s;\n", sv.varName, value)
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"ko\">\n<head>\n")
	sb.WriteString("<meta charset=\"utf-8\">\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n", html.EscapeString(title))
	sb.WriteString("<style>")
	sb.WriteString(baseCSS)
	if overrides.Len() > 0 {
		sb.WriteString(":root {\n")
		sb.WriteString(overrides.String())
		sb.WriteString("}\n")
	}
	sb.WriteString("</style>\n</head>\n<body>\n")
	sb.WriteString(body)
	sb.WriteString("\n</body>\n</html>\n")
	return sb.String()
}
