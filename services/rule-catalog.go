package services

import (
	"fmt"

	"studio-project/microservices/tasks-service/models"
)

// Rule is one automatic-task rule: a deficiency predicate over a booking plus
// the staff who should act on it. The catalog is fixed; the admin screen only
// toggles activation and the activation date, it cannot add rules.
type Rule struct {
	Name        string
	Description string
	Priority    models.TaskPriority
	// Title renders the task title for a deficient event.
	Title func(event models.Event) string
	// Deficient reports whether the monitored field is still in the state
	// that requires a task.
	Deficient func(event models.Event) bool
	// Assignees resolves who the task should go to. Empty staff slots on the
	// booking are skipped.
	Assignees func(event models.Event) []models.Assignee
}

const (
	RulePaymentTracking = "paymentTracking"
	RuleTestimonial     = "yorumIstesinMi"
	RuleSharingConsent  = "paylasimIzni"
)

var catalog = []Rule{
	{
		Name:        RulePaymentTracking,
		Description: "Chase outstanding payment after the wedding date.",
		Priority:    models.PriorityUrgent,
		Title: func(e models.Event) string {
			return fmt.Sprintf("Collect payment for %s", e.BrideName)
		},
		Deficient: func(e models.Event) bool {
			return e.PaymentStatus == ""
		},
		Assignees: func(e models.Event) []models.Assignee {
			// The booking owner (makeup artist) chases payment.
			return staff(models.Assignee{ID: e.MakeupArtistID, Name: e.MakeupArtistName})
		},
	},
	{
		Name:        RuleTestimonial,
		Description: "Ask the couple for a testimonial once the wedding is past.",
		Priority:    models.PriorityNormal,
		Title: func(e models.Event) string {
			return fmt.Sprintf("Ask %s for a testimonial", e.BrideName)
		},
		Deficient: func(e models.Event) bool {
			return e.TestimonialAskedBy == ""
		},
		Assignees: func(e models.Event) []models.Assignee {
			return staff(
				models.Assignee{ID: e.MakeupArtistID, Name: e.MakeupArtistName},
				models.Assignee{ID: e.TurbanStylistID, Name: e.TurbanStylistName},
			)
		},
	},
	{
		Name:        RuleSharingConsent,
		Description: "Obtain social media sharing consent from the couple.",
		Priority:    models.PriorityNormal,
		Title: func(e models.Event) string {
			return fmt.Sprintf("Get sharing consent from %s", e.BrideName)
		},
		Deficient: func(e models.Event) bool {
			return !e.SharingConsent
		},
		Assignees: func(e models.Event) []models.Assignee {
			return staff(models.Assignee{ID: e.MakeupArtistID, Name: e.MakeupArtistName})
		},
	},
}

// Catalog returns all known rules.
func Catalog() []Rule {
	return catalog
}

// RuleByName looks a rule up; ok is false for unknown names.
func RuleByName(name string) (Rule, bool) {
	for _, rule := range catalog {
		if rule.Name == name {
			return rule, true
		}
	}
	return Rule{}, false
}

func staff(candidates ...models.Assignee) []models.Assignee {
	var out []models.Assignee
	for _, a := range candidates {
		if a.ID != "" {
			out = append(out, a)
		}
	}
	return out
}
