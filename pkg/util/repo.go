package util

import (
	"regexp"
	"strings"
)

var repoAllowed = regexp.MustCompile(`[^a-z0-9_/.-]`)

// NormalizeRepoName rewrites a repository path so that it satisfies the
// docker naming conventions: lowercase, restricted charset, no leading or
// trailing separators.
func NormalizeRepoName(path string) string {
	p := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(path), "/"))
	p = repoAllowed.ReplaceAllString(p, "-")
	return strings.Trim(p, "-/.")
}

var imageIDPattern = regexp.MustCompile(`^(sha256:)?[0-9a-fA-F]{12,64}$`)

// LooksLikeImageID reports whether the value is a local image ID rather
// than a name reference. Both the short and the full form are accepted,
// with or without the algorithm prefix.
func LooksLikeImageID(value string) bool {
	return imageIDPattern.MatchString(strings.TrimSpace(value))
}

// SplitNameTag splits an image reference of the form name[:tag]. A missing
// tag yields an empty string; a port in the registry host is not mistaken
// for a tag separator.
func SplitNameTag(ref string) (name, tag string) {
	ref = strings.TrimSpace(ref)
	idx := strings.LastIndex(ref, ":")
	if idx < 0 {
		return ref, ""
	}
	if strings.Contains(ref[idx+1:], "/") {
		return ref, ""
	}
	return ref[:idx], ref[idx+1:]
}
