package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"studio-project/microservices/tasks-service/models"

	"github.com/sony/gobreaker"
)

// NotificationClient delivers "you were assigned a task" pings. Delivery is a
// collaborator concern; callers must treat failures as non-fatal.
type NotificationClient interface {
	TaskAssigned(ctx context.Context, assignee models.Assignee, task *models.Task) error
}

// HTTPNotificationClient posts to the notifications service behind a circuit
// breaker, so a dead notifications service cannot slow task mutations down.
type HTTPNotificationClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewHTTPNotificationClient(baseURL string, client *http.Client, breaker *gobreaker.CircuitBreaker) *HTTPNotificationClient {
	return &HTTPNotificationClient{baseURL: baseURL, client: client, breaker: breaker}
}

func (c *HTTPNotificationClient) TaskAssigned(ctx context.Context, assignee models.Assignee, task *models.Task) error {
	payload, err := json.Marshal(map[string]string{
		"userId":  assignee.ID,
		"message": fmt.Sprintf("You were assigned the task: %s", task.Title),
		"taskId":  task.ID,
	})
	if err != nil {
		return err
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/api/notifications", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("notifications service returned %d", resp.StatusCode)
		}
		return nil, nil
	})
	return err
}
