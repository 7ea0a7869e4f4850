// Package render 实现邀请函模板的占位符替换与条件指令求值。
//
// 这不是通用模板语言：只支持扁平的 {{name}} 替换和单层
// {{#if}}/{{#unless}} 指令，不支持循环、表达式与嵌套条件。
// 指令用非贪婪正则匹配，嵌套写法会被按"最先闭合"截断而不是报错，
// 这是沿袭自旧画布编辑器的既定行为，线上模板可能依赖它。
package render

import (
	"regexp"
	"strings"
)

// Context 是占位符名到字符串值的扁平映射。
type Context map[string]string

var (
	placeholderRe = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)\}\}`)
	ifRe          = regexp.MustCompile(`(?s)\{\{#if ([a-zA-Z_][a-zA-Z0-9_]*)\}\}(.*?)\{\{/if\}\}`)
	unlessRe      = regexp.MustCompile(`(?s)\{\{#unless ([a-zA-Z_][a-zA-Z0-9_]*)\}\}(.*?)\{\{/unless\}\}`)
)

// Render 用两遍字符串处理渲染模板：
//
//  1. 所有 {{name}} 替换为 ctx 中的值，缺失的键替换为空串，
//     绝不把字面 token 留在输出里；
//  2. 用替换前的 ctx 真值解析顶层 {{#if}}/{{#unless}} 指令。
//
// 两遍顺序不可交换：指令保留下来的内容不会再做第二次替换。
// 缺少闭合标签的指令保持原文输出。Render 对任何输入都不报错。
func Render(templateHTML string, ctx Context) string {
	out := placeholderRe.ReplaceAllStringFunc(templateHTML, func(m string) string {
		name := m[2 : len(m)-2]
		return ctx[name]
	})

	out = ifRe.ReplaceAllStringFunc(out, func(m string) string {
		parts := ifRe.FindStringSubmatch(m)
		if truthy(ctx[parts[1]]) {
			return parts[2]
		}
		return ""
	})

	out = unlessRe.ReplaceAllStringFunc(out, func(m string) string {
		parts := unlessRe.FindStringSubmatch(m)
		if truthy(ctx[parts[1]]) {
			return ""
		}
		return parts[2]
	})

	return out
}

// truthy 判定上下文值是否让 #if 成立：非空且不是惯用的假值字面量。
func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "false", "0":
		return false
	default:
		return true
	}
}
