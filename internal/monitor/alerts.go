package monitor

import "github.com/rs/zerolog"

// AlertSink interface for pluggable alert delivery.
type AlertSink interface {
	Send(message string) error
}

// LogSink writes alerts as warnings on a zerolog logger.
type LogSink struct {
	Logger zerolog.Logger
}

func (s LogSink) Send(message string) error {
	s.Logger.Warn().Str("component", "monitor").Msg(message)
	return nil
}

// MemorySink keeps alerts in memory; used by batch runs and tests.
type MemorySink struct {
	Messages []string
}

func (s *MemorySink) Send(message string) error {
	s.Messages = append(s.Messages, message)
	return nil
}
