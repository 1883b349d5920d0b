package models

import "time"

// AutomaticRuleSetting is the per-rule switch the admin screen edits: whether
// the rule runs at all, and from which booking date onward it applies.
// Description is display metadata only.
type AutomaticRuleSetting struct {
	RuleName       string    `json:"ruleName" bson:"_id"`
	Active         bool      `json:"active" bson:"active"`
	ActivationDate time.Time `json:"activationDate" bson:"activationDate"`
	Description    string    `json:"description,omitempty" bson:"description,omitempty"`
}
