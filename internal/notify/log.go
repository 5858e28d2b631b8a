package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogDispatcher writes notifications to the log instead of delivering them.
// Used when notifications are disabled in config.
type LogDispatcher struct {
	logger *zerolog.Logger
}

func NewLogDispatcher(logger *zerolog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Send(ctx context.Context, recipient int64, templateKey string, vars map[string]string) error {
	d.logger.Info().
		Int64("recipient", recipient).
		Str("template", templateKey).
		Str("text", Render(templateKey, vars)).
		Msg("notification (log only)")
	return nil
}
