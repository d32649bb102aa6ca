package logger

import (
	"context"
	"fmt"
	"time"

	"bank-approvals/internal/config"
	"bank-approvals/internal/database"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap/zapcore"
)

// LogEntry holds the data passed from Zap to our worker
type LogEntry struct {
	Level      zapcore.Level
	Message    string
	WorkflowID string
	EntityType string
	Caller     string // Function name
}

// appLog is the persisted shape of a log entry.
type appLog struct {
	AppID        string    `bson:"app_id"`
	Message      string    `bson:"message"`
	WorkflowID   string    `bson:"workflow_id,omitempty"`
	EntityType   string    `bson:"entity_type,omitempty"`
	Caller       string    `bson:"caller,omitempty"`
	LogLevel     string    `bson:"log_level"`
	CreatedOnUtc time.Time `bson:"created_on_utc"`
}

// DBLogWriter handles the async writing
type DBLogWriter struct {
	db      *mongo.Database
	logChan chan LogEntry
	appId   string
}

// NewDBLogWriter initializes the worker
func NewDBLogWriter(mongodb *database.MongodbDB, cfg *config.Config) *DBLogWriter {
	writer := &DBLogWriter{
		db:      mongodb.DB,
		logChan: make(chan LogEntry, 1000), // Buffer 1000 logs
		appId:   cfg.AppId,
	}

	// Start the background worker immediately
	go writer.processLogs()

	return writer
}

// AddLog is called by our Zap hook
func (w *DBLogWriter) AddLog(entry LogEntry) {
	select {
	case w.logChan <- entry:
		// Log pushed to channel
	default:
		// Channel full: drop log to prevent blocking the API
		fmt.Println("DB Log Channel Full! Dropping log:", entry.Message)
	}
}

func (w *DBLogWriter) processLogs() {
	for entry := range w.logChan {
		record := appLog{
			AppID:        w.appId,
			Message:      entry.Message,
			WorkflowID:   entry.WorkflowID,
			EntityType:   entry.EntityType,
			Caller:       entry.Caller,
			LogLevel:     entry.Level.String(),
			CreatedOnUtc: time.Now().UTC(),
		}

		// Insert into DB (safely ignore errors to keep the app running)
		w.db.Collection("app_logs").InsertOne(context.Background(), record)
	}
}
