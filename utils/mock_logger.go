package utils

import (
	"sync"

	"github.com/stretchr/testify/mock"
)

// MockLogger records calls through testify's mock so tests can assert on them.
type MockLogger struct {
	mock.Mock
	ErrorCallCount   int
	LastErrorMessage string
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Info(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Warn(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Error(msg string, keysAndValues ...any) {
	m.ErrorCallCount++
	m.LastErrorMessage = msg
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) SetLevel(level LogLevel) {
	m.Called(level)
}

// RecordingLogger keeps every message in memory. Safe for concurrent use.
type RecordingLogger struct {
	mu       sync.Mutex
	Messages []LogMessage
}

// LogMessage is one recorded log line.
type LogMessage struct {
	Level   string
	Message string
	Args    []any
}

func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

func (r *RecordingLogger) record(level, msg string, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, LogMessage{Level: level, Message: msg, Args: args})
}

func (r *RecordingLogger) Debug(msg string, args ...any) { r.record("DEBUG", msg, args) }
func (r *RecordingLogger) Info(msg string, args ...any)  { r.record("INFO", msg, args) }
func (r *RecordingLogger) Warn(msg string, args ...any)  { r.record("WARN", msg, args) }
func (r *RecordingLogger) Error(msg string, args ...any) { r.record("ERROR", msg, args) }
func (r *RecordingLogger) SetLevel(LogLevel)             {}

// Has reports whether a message with the given level and text was recorded.
func (r *RecordingLogger) Has(level, msg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.Messages {
		if m.Level == level && m.Message == msg {
			return true
		}
	}
	return false
}
