package tokenizer

import (
	"path"
	"strings"
)

// Match reports whether token matches a glob pattern such as "american*" or
// "?ar". Matching ignores case. A malformed pattern matches only itself.
func Match(pattern, token string) bool {
	pattern = strings.ToLower(pattern)
	token = strings.ToLower(token)
	if !strings.ContainsAny(pattern, "*?[") {
		return pattern == token
	}
	ok, err := path.Match(pattern, token)
	if err != nil {
		return pattern == token
	}
	return ok
}

// SplitPhrase splits a multi-word pattern ("united states") into its parts.
func SplitPhrase(pattern string) []string {
	return strings.Fields(pattern)
}
