package transform

import (
	"encoding/json"
	"strings"
)

// The remote script runtime has no module system of its own, so CODE files
// are stored wrapped in a shim that provides require/module/exports
// semantics. The local working copy holds the unwrapped body; the shim is
// reattached on push.
const (
	shimHeader = "function _main(\n" +
		"  module = globalThis.__getCurrentModule(),\n" +
		"  exports = module.exports,\n" +
		"  require = globalThis.require\n" +
		") {\n"

	shimFooter      = "}\n\n__defineModule__(_main);\n"
	shimFooterEager = "}\n\n__defineModule__(_main, true);\n"

	defineModuleMarker = "__defineModule__(_main"
)

// ShimMeta is the information the wrapper carries besides the module body.
// It has to survive a round trip through the local filesystem so that
// re-wrapping restores the original remote file.
type ShimMeta struct {
	// Eager marks the module for loading at script startup instead of on
	// first require.
	Eager bool

	// Bridges are hoisted top-level declarations that follow the
	// __defineModule__ call. They forward global names (e.g. trigger entry
	// points) into the module and are preserved verbatim.
	Bridges string
}

// WrapModule wraps a module body in the remote shim.
func WrapModule(body string, meta ShimMeta) string {
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}

	footer := shimFooter
	if meta.Eager {
		footer = shimFooterEager
	}

	wrapped := shimHeader + body + footer
	if meta.Bridges != "" {
		wrapped += "\n" + meta.Bridges
		if !strings.HasSuffix(wrapped, "\n") {
			wrapped += "\n"
		}
	}
	return wrapped
}

// UnwrapModule extracts the module body and shim metadata from wrapped
// content. If the content isn't shim-wrapped (files written through other
// tools often aren't), it's returned unchanged with ok=false and the caller
// stores it verbatim.
func UnwrapModule(content string) (body string, meta ShimMeta, ok bool) {
	start := strings.Index(content, "function _main(")
	defineIdx := strings.Index(content, defineModuleMarker)
	if start != 0 || defineIdx < 0 {
		return content, ShimMeta{}, false
	}

	// The body spans from the opening brace of _main to the closing brace
	// preceding the __defineModule__ call.
	open := strings.Index(content, "{")
	if open < 0 || open > defineIdx {
		return content, ShimMeta{}, false
	}
	closing := strings.LastIndex(content[:defineIdx], "}")
	if closing < open {
		return content, ShimMeta{}, false
	}

	body = strings.TrimPrefix(content[open+1:closing], "\n")

	rest := content[defineIdx:]
	meta.Eager = strings.HasPrefix(rest, "__defineModule__(_main, true)")

	// Anything after the __defineModule__ line is hoisted bridge
	// declarations.
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		meta.Bridges = strings.TrimLeft(rest[nl+1:], "\n")
	}

	return body, meta, true
}

// wrapDotfile encodes dotfile content (e.g. .gitignore) as a CODE module so
// the remote store, which only understands script files, can hold it.
func wrapDotfile(content string) string {
	encoded, _ := json.Marshal(content)
	return WrapModule("module.exports = "+string(encoded)+";", ShimMeta{})
}

// unwrapDotfile reverses wrapDotfile. Content that doesn't match the
// encoding is returned as-is so a hand-edited remote file is still usable.
func unwrapDotfile(content string) string {
	body, _, ok := UnwrapModule(content)
	if !ok {
		return content
	}

	trimmed := strings.TrimSpace(body)
	trimmed = strings.TrimPrefix(trimmed, "module.exports =")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), ";")

	var decoded string
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return content
	}
	return decoded
}
