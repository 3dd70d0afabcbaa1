// Package pathutil provides path manipulation for slash-separated archive paths.
package pathutil

import "strings"

// Base returns the last element of a slash-separated path.
// If path is empty or ".", it returns ".".
func Base(path string) string {
	if path == "" || path == "." {
		return "."
	}
	path = strings.TrimSuffix(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// DirPrefix converts a path to its directory prefix form.
// For ".", returns "" (empty prefix matches all).
// For other paths, appends "/" to match children.
func DirPrefix(name string) string {
	if name == "." {
		return ""
	}
	return name + "/"
}

// Child extracts the immediate child name from a full path given a prefix.
// Returns the child name and whether it's a subdirectory (has more path
// components). The prefix must cover the leading len(prefix) bytes of
// path; the match may differ in case, so the prefix is stripped by
// length rather than by literal comparison.
func Child(path, prefix string) (name string, isSubDir bool) {
	relPath := path[len(prefix):]
	if idx := strings.Index(relPath, "/"); idx >= 0 {
		return relPath[:idx], true
	}
	return relPath, false
}

// Fold returns the case-insensitive lookup key for an archive path.
// Folding is ASCII-only; paths written by the game tools mix cases freely
// but stay within ASCII.
func Fold(path string) string {
	i := 0
	for ; i < len(path); i++ {
		if c := path[i]; 'A' <= c && c <= 'Z' {
			break
		}
	}
	if i == len(path) {
		return path
	}
	b := []byte(path)
	for ; i < len(b); i++ {
		if c := b[i]; 'A' <= c && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

// Normalize converts a user-provided path to fs.ValidPath format.
//
// It performs the following transformations:
//   - Converts backslashes to slashes: `addon\a.lua` → "addon/a.lua"
//   - Strips leading and trailing slashes: "/etc/nginx/" → "etc/nginx"
//   - Collapses consecutive slashes: "etc//nginx" → "etc/nginx"
//   - Converts empty string to root: "" → "."
//
// It does not resolve or validate path elements. Paths containing "." or
// ".." elements are preserved and rejected later by fs.ValidPath.
func Normalize(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.Trim(p, "/")
	if p == "" {
		return "."
	}

	parts := strings.Split(p, "/")
	result := parts[:0]
	for _, part := range parts {
		if part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return "."
	}
	return strings.Join(result, "/")
}
