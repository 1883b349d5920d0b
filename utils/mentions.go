package utils

import "regexp"

// Mentions look like "@Ayşe Yılmaz": an @ followed by capitalized words.
// They are extracted for display highlighting only; nothing validates them
// against the assignee roster and notification fan-out lives elsewhere.
var mentionPattern = regexp.MustCompile(`@(\p{Lu}\p{L}*(?: \p{Lu}\p{L}*)*)`)

// ExtractMentions returns the "@Full Name" names found in a comment body, in
// order of appearance, without the leading @.
func ExtractMentions(body string) []string {
	matches := mentionPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}
