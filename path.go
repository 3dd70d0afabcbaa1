package ipf

import "github.com/meigma/ipf/internal/pathutil"

// NormalizePath converts a user-provided path to fs.ValidPath format.
//
// It performs the following transformations:
//   - Converts backslashes to slashes: `addon\script.lua` → "addon/script.lua"
//   - Strips leading slashes: "/etc/nginx" → "etc/nginx"
//   - Strips trailing slashes: "etc/nginx/" → "etc/nginx"
//   - Collapses consecutive slashes: "etc//nginx" → "etc/nginx"
//   - Converts empty string to root: "" → "."
//
// Archive tables written by the game tools use backslash separators;
// the backslash conversion lets such paths address entries directly.
//
// The returned path is suitable for use with Archive methods (Open,
// Stat, Entry, ReadFile). The function does not resolve or validate
// path elements. Paths containing "." or ".." elements are preserved
// and will be rejected by Archive methods via fs.ValidPath.
func NormalizePath(p string) string {
	return pathutil.Normalize(p)
}
