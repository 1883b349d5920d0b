package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"studio-project/microservices/tasks-service/models"
	"studio-project/microservices/tasks-service/repositories"
	"studio-project/microservices/tasks-service/services"

	"github.com/gorilla/mux"
)

type TaskHandler struct {
	service *services.TaskService
}

func NewTaskHandler(service *services.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

// actorFromRequest builds the acting identity from the gateway headers.
// Authentication itself happens upstream.
func actorFromRequest(r *http.Request) (services.Actor, error) {
	actor := services.Actor{
		ID:   r.Header.Get("X-User-Id"),
		Name: r.Header.Get("X-User-Name"),
		Role: r.Header.Get("Role"),
	}
	if actor.ID == "" || actor.Role == "" {
		return actor, errors.New("identity headers missing")
	}
	return actor, nil
}

// writeError maps the error taxonomy to HTTP statuses. Validation and
// permission failures must stay distinguishable from transient ones so the
// frontend knows when "try again" is worth offering.
func writeError(w http.ResponseWriter, err error) {
	var (
		validation *models.ValidationError
		notFound   *models.NotFoundError
		permission *models.PermissionError
		conflict   *models.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		http.Error(w, validation.Error(), http.StatusBadRequest)
	case errors.As(err, &notFound):
		http.Error(w, notFound.Error(), http.StatusNotFound)
	case errors.As(err, &permission):
		http.Error(w, permission.Error(), http.StatusForbidden)
	case errors.As(err, &conflict):
		http.Error(w, conflict.Error(), http.StatusConflict)
	case models.IsTransient(err):
		http.Error(w, "store temporarily unavailable, try again", http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var input services.CreateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	task, err := h.service.Create(r.Context(), actor, input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) GetTasksForAssignee(w http.ResponseWriter, r *http.Request) {
	if _, err := actorFromRequest(r); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	identity := mux.Vars(r)["identity"]
	tasks, err := h.service.ListTasksForAssignee(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) GetTasksForEvent(w http.ResponseWriter, r *http.Request) {
	if _, err := actorFromRequest(r); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	eventID := mux.Vars(r)["eventID"]
	tasks, err := h.service.ListTasksForEvent(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) StartTask(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	task, err := h.service.Start(r.Context(), mux.Vars(r)["taskID"], actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var body struct {
		Note string `json:"note"`
	}
	// Note is optional; an empty body is fine, broken JSON is not.
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	result, err := h.service.Complete(r.Context(), mux.Vars(r)["taskID"], actor, body.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *TaskHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var body struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	comment, err := h.service.AddComment(r.Context(), mux.Vars(r)["taskID"], actor, body.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (h *TaskHandler) AddAssignee(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var assignee models.Assignee
	if err := json.NewDecoder(r.Body).Decode(&assignee); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	task, err := h.service.AddAssignee(r.Context(), mux.Vars(r)["taskID"], actor, assignee)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) EditTask(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var body struct {
		Title        *string              `json:"title"`
		Description  *string              `json:"description"`
		Priority     *models.TaskPriority `json:"priority"`
		DueDate      *time.Time           `json:"dueDate"`
		ClearDueDate bool                 `json:"clearDueDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	patch := repositories.TaskPatch{
		Title:        body.Title,
		Description:  body.Description,
		Priority:     body.Priority,
		DueDate:      body.DueDate,
		ClearDueDate: body.ClearDueDate,
	}
	task, err := h.service.Edit(r.Context(), mux.Vars(r)["taskID"], actor, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	task, err := h.service.Cancel(r.Context(), mux.Vars(r)["taskID"], actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if err := h.service.Delete(r.Context(), mux.Vars(r)["taskID"], actor); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "task deleted"})
}

func (h *TaskHandler) ResolveTask(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if err := h.service.ResolveAutomaticTask(r.Context(), mux.Vars(r)["taskID"], actor); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "task resolved"})
}
