package core

// Logger is implemented by the app loggers.
// args are extra values attached to the log entry: errors or map[string]interface{} custom data.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
