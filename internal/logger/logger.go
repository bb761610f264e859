package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Level representa el nivel de logging
type Level int32

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	QUIET
)

var currentLevel atomic.Int32

func init() {
	currentLevel.Store(int32(INFO))
}

// SetLevel fija el nivel global.
func SetLevel(level Level) {
	currentLevel.Store(int32(level))
}

// GetLevel devuelve el nivel global actual.
func GetLevel() Level {
	return Level(currentLevel.Load())
}

// ParseLevel convierte "debug", "info", "warn", "error" o "quiet" en un Level.
// Cualquier otro valor devuelve INFO.
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "quiet":
		return QUIET
	default:
		return INFO
	}
}

// SetLevelFromString fija el nivel a partir de un string.
func SetLevelFromString(level string) {
	SetLevel(ParseLevel(level))
}

// InitFromEnv lee LOG_LEVEL si está definido.
func InitFromEnv() {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		SetLevelFromString(lvl)
	}
}

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "QUIET"
	}
}

func logf(level Level, component, message string, args ...any) {
	if level < GetLevel() {
		return
	}
	log.Printf("[%s] [%s] %s", level, component, fmt.Sprintf(message, args...))
}

func Debug(component, message string, args ...any) { logf(DEBUG, component, message, args...) }
func Info(component, message string, args ...any)  { logf(INFO, component, message, args...) }
func Warn(component, message string, args ...any)  { logf(WARN, component, message, args...) }
func Error(component, message string, args ...any) { logf(ERROR, component, message, args...) }
