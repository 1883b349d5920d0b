package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"studio-project/microservices/tasks-service/handlers"
	"studio-project/microservices/tasks-service/logging"
	"studio-project/microservices/tasks-service/repositories"
	"studio-project/microservices/tasks-service/services"
	"studio-project/microservices/tasks-service/utils"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Role, X-User-Id, X-User-Name")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	logging.InitLogger()

	logging.Logger.Info("Event ID: SERVICE_START, Description: Starting Tasks Service...")
	if err := godotenv.Load(".env"); err != nil {
		logging.Logger.Warnf("Event ID: ENV_LOAD_WARNING, Description: No .env file loaded: %v", err)
	}

	mongoURI := os.Getenv("MONGO_URI")
	mongoDBName := os.Getenv("MONGO_DB_NAME")
	if mongoURI == "" || mongoDBName == "" {
		logging.Logger.Fatalf("Event ID: CONFIG_ERROR, Description: MONGO_URI and MONGO_DB_NAME must be set.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		logging.Logger.Fatalf("Event ID: DB_CONNECTION_FAILED, Description: Database connection for MongoDB failed: %v", err)
	}
	defer client.Disconnect(context.Background())

	if err := client.Ping(ctx, nil); err != nil {
		logging.Logger.Fatalf("Event ID: DB_PING_FAILED, Description: MongoDB connection ping error: %v", err)
	}
	logging.Logger.Infof("Event ID: DB_CONNECTED, Description: Successfully connected to MongoDB at %s.", mongoURI)

	db := client.Database(mongoDBName)
	taskRepo := repositories.NewMongoTaskRepository(db.Collection("tasks"))
	eventRepo := repositories.NewMongoEventRepository(db.Collection("events"))
	settingsRepo := repositories.NewMongoSettingsRepository(db.Collection("settings"))

	deletePolicy, err := services.ParseDeletePolicy(os.Getenv("TASK_DELETE_POLICY"))
	if err != nil {
		logging.Logger.Fatalf("Event ID: CONFIG_ERROR, Description: %v", err)
	}

	var notifier services.NotificationClient
	if notificationsURL := os.Getenv("NOTIFICATIONS_SERVICE_URL"); notificationsURL != "" {
		notificationsBreaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "notifications-cb",
			MaxRequests: 1,
			Timeout:     5 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Logger.Infof("Event ID: CIRCUIT_BREAKER_STATE_CHANGE, Description: Circuit Breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
			},
		})
		notifier = services.NewHTTPNotificationClient(notificationsURL, utils.NewHTTPClient(), notificationsBreaker)
	} else {
		logging.Logger.Warn("Event ID: NOTIFICATIONS_DISABLED, Description: NOTIFICATIONS_SERVICE_URL not set, assignment pings disabled.")
	}

	taskService := services.NewTaskService(taskRepo, eventRepo, notifier, deletePolicy)
	reconciler := services.NewReconciliationService(taskRepo, eventRepo, settingsRepo)

	taskHandler := handlers.NewTaskHandler(taskService)
	adminHandler := handlers.NewAdminHandler(reconciler, settingsRepo)

	interval := 60 * time.Minute
	if raw := os.Getenv("RECONCILE_INTERVAL_MINUTES"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			logging.Logger.Fatalf("Event ID: CONFIG_ERROR, Description: RECONCILE_INTERVAL_MINUTES must be a positive integer, got %q.", raw)
		}
		interval = time.Duration(minutes) * time.Minute
	}

	scheduler := services.NewSchedulerService(time.Local)
	if _, err := scheduler.ScheduleInterval(interval, func() {
		reconciler.Run(context.Background())
	}); err != nil {
		logging.Logger.Fatalf("Event ID: SCHEDULER_ERROR, Description: Could not schedule reconciliation: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()
	logging.Logger.Infof("Event ID: SCHEDULER_STARTED, Description: Reconciliation scheduled every %s.", interval)

	r := mux.NewRouter()

	r.HandleFunc("/api/tasks/create", taskHandler.CreateTask).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/assignee/{identity}", taskHandler.GetTasksForAssignee).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks/event/{eventID}", taskHandler.GetTasksForEvent).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks/{taskID}/start", taskHandler.StartTask).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{taskID}/complete", taskHandler.CompleteTask).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{taskID}/cancel", taskHandler.CancelTask).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{taskID}/comments", taskHandler.AddComment).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{taskID}/assignees", taskHandler.AddAssignee).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{taskID}/resolve", taskHandler.ResolveTask).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{taskID}", taskHandler.EditTask).Methods(http.MethodPut)
	r.HandleFunc("/api/tasks/{taskID}", taskHandler.DeleteTask).Methods(http.MethodDelete)

	r.HandleFunc("/api/admin/reconcile", adminHandler.TriggerReconciliation).Methods(http.MethodPost)
	r.HandleFunc("/api/admin/reconcile/event/{eventID}", adminHandler.TriggerEventReconciliation).Methods(http.MethodPost)
	r.HandleFunc("/api/admin/rules", adminHandler.GetRules).Methods(http.MethodGet)
	r.HandleFunc("/api/admin/rules/{ruleName}", adminHandler.SetRuleActive).Methods(http.MethodPut)

	corsRouter := enableCORS(r)

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		logging.Logger.Fatalf("Event ID: CONFIG_ERROR, Description: SERVER_PORT is not set in the environment variables.")
	}

	serverAddress := fmt.Sprintf(":%s", serverPort)
	logging.Logger.Infof("Event ID: SERVER_START_INFO, Description: Server running on http://localhost%s", serverAddress)

	if err := http.ListenAndServe(serverAddress, corsRouter); err != nil {
		logging.Logger.Fatalf("Event ID: SERVER_FATAL_ERROR, Description: Server failed to start: %v", err)
	}
}
