package types

type RunMode string

const (
	// ModeLocal is the mode for local development and scripts
	ModeLocal RunMode = "local"
	// ModeScheduler is the mode for running the recurring-invoice scheduler
	ModeScheduler RunMode = "scheduler"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
)
