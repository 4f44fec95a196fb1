package logger

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/models"
)

// Logger wraps logrus to provide structured logging with the fields every
// line in this service carries.
type Logger struct {
	entry *logrus.Entry
}

// Init configures the global logrus instance. JSON output keeps the lines
// ingestible by whatever collector fronts the deployment.
func Init(level logrus.Level) {
	logrus.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(level)
}

// New creates a Logger preloaded with the service identity fields.
func New(serviceName, traceID, userID string) *Logger {
	return &Logger{
		entry: logrus.WithFields(logrus.Fields{
			"service_name": serviceName,
			"trace_id":     traceID,
			"user_id":      userID,
		}),
	}
}

// WithRequest attaches HTTP request context to the entry.
func (l *Logger) WithRequest(req models.RequestInfo) *Logger {
	return &Logger{entry: l.entry.WithField("request_info", req)}
}

// WithError attaches structured error detail to the entry.
func (l *Logger) WithError(err models.ErrorInfo) *Logger {
	return &Logger{entry: l.entry.WithField("error", err)}
}

// WithPayload attaches arbitrary business data to the entry.
func (l *Logger) WithPayload(payload map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithField("payload", payload)}
}

// Info logs at info level.
func (l *Logger) Info(message string) { l.entry.Info(message) }

// Warn logs at warning level.
func (l *Logger) Warn(message string) { l.entry.Warn(message) }

// Error logs at error level.
func (l *Logger) Error(message string) { l.entry.Error(message) }

// Debug logs at debug level.
func (l *Logger) Debug(message string) { l.entry.Debug(message) }

// Fatal logs at fatal level and exits.
func (l *Logger) Fatal(message string) { l.entry.Fatal(message) }
