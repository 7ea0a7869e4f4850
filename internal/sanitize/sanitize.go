// Package sanitize 清洗用户编辑的富文本，防止脚本注入公开页面。
package sanitize

import "github.com/microcosm-cc/bluemonday"

// richText 允许常见的排版标签，拦截脚本、事件属性与危险协议。
// bluemonday 的 Policy 并发安全，包级共享一份即可。
var richText = bluemonday.UGCPolicy()

// RichText 清洗富文本正文。输出仍然是 HTML 片段。
func RichText(s string) string {
	return richText.Sanitize(s)
}
