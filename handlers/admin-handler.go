package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"studio-project/microservices/tasks-service/models"
	"studio-project/microservices/tasks-service/repositories"
	"studio-project/microservices/tasks-service/services"

	"github.com/gorilla/mux"
)

// AdminHandler exposes the operations surface: manual reconciliation triggers
// and the per-rule activation settings the settings screen edits.
type AdminHandler struct {
	reconciler *services.ReconciliationService
	settings   repositories.SettingsRepository
}

func NewAdminHandler(reconciler *services.ReconciliationService, settings repositories.SettingsRepository) *AdminHandler {
	return &AdminHandler{reconciler: reconciler, settings: settings}
}

func requireElevated(r *http.Request) error {
	actor, err := actorFromRequest(r)
	if err != nil {
		return &models.PermissionError{Reason: err.Error()}
	}
	if actor.Role != services.RoleOwner && actor.Role != services.RoleManager {
		return &models.PermissionError{Reason: "admin surface requires owner or manager role"}
	}
	return nil
}

func (h *AdminHandler) TriggerReconciliation(w http.ResponseWriter, r *http.Request) {
	if err := requireElevated(r); err != nil {
		writeError(w, err)
		return
	}
	summary := h.reconciler.Run(r.Context())
	writeJSON(w, http.StatusOK, summary)
}

// TriggerEventReconciliation is the immediate-trigger hook called by the
// bookings write path right after a monitored field changes.
func (h *AdminHandler) TriggerEventReconciliation(w http.ResponseWriter, r *http.Request) {
	if err := requireElevated(r); err != nil {
		writeError(w, err)
		return
	}
	summary := h.reconciler.ReconcileEvent(r.Context(), mux.Vars(r)["eventID"])
	writeJSON(w, http.StatusOK, summary)
}

// GetRules returns the stored settings merged with catalog metadata so the
// settings screen renders rules that have never been toggled yet.
func (h *AdminHandler) GetRules(w http.ResponseWriter, r *http.Request) {
	if err := requireElevated(r); err != nil {
		writeError(w, err)
		return
	}
	stored, err := h.settings.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	byName := map[string]models.AutomaticRuleSetting{}
	for _, s := range stored {
		byName[s.RuleName] = s
	}

	var out []models.AutomaticRuleSetting
	for _, rule := range services.Catalog() {
		setting, ok := byName[rule.Name]
		if !ok {
			setting = models.AutomaticRuleSetting{RuleName: rule.Name}
		}
		setting.Description = rule.Description
		out = append(out, setting)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) SetRuleActive(w http.ResponseWriter, r *http.Request) {
	if err := requireElevated(r); err != nil {
		writeError(w, err)
		return
	}
	ruleName := mux.Vars(r)["ruleName"]
	if _, ok := services.RuleByName(ruleName); !ok {
		writeError(w, &models.NotFoundError{Kind: "rule", ID: ruleName})
		return
	}
	var body struct {
		Active         bool      `json:"active"`
		ActivationDate time.Time `json:"activationDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if body.Active && body.ActivationDate.IsZero() {
		writeError(w, &models.ValidationError{Reason: "activation date is required to activate a rule"})
		return
	}
	setting := models.AutomaticRuleSetting{
		RuleName:       ruleName,
		Active:         body.Active,
		ActivationDate: body.ActivationDate,
	}
	if err := h.settings.Upsert(r.Context(), setting); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, setting)
}
