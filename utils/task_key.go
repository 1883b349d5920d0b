package utils

import "strings"

// AutoTaskPrefix marks task IDs generated by the reconciliation engine.
const AutoTaskPrefix = "auto"

// DeriveTaskID builds the deterministic primary key for an automatic task
// from its (event, rule, assignee) triple. The same triple always yields the
// same ID, which lets the reconciler test existence with a point read and use
// the ID itself as the create/delete key.
//
// The assignee identity is free-form (usually an e-mail address), so every
// character outside [A-Za-z0-9] is replaced with "_" to keep the key
// document-store safe. Known limitation: two identities that normalize to the
// same safe string ("ali@test.com" / "ali_test.com") collide; booking staff
// identities come from a single directory so this has not been guarded.
func DeriveTaskID(eventID, ruleName, assignee string) string {
	return AutoTaskPrefix + "_" + eventID + "_" + ruleName + "_" + SafeIdentity(assignee)
}

// SafeIdentity maps an arbitrary identity string to its identifier-safe form.
// Empty input yields empty output.
func SafeIdentity(identity string) string {
	if identity == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(identity))
	for _, r := range identity {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
