package policy

import "regexp"

var slugPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// ValidSlug reports whether s is a usable organization slug: lowercase
// letters, digits and hyphens, starting with a letter, 2 to 50 characters.
func ValidSlug(s string) bool {
	if len(s) < 2 || len(s) > 50 {
		return false
	}
	return slugPattern.MatchString(s)
}
