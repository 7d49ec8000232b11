package fat

import (
	"context"
	"log/slog"
)

// slogLevelTrace sits below slog.LevelDebug so -vv style verbosity can
// separate "every FAT/cluster touched" from ordinary debug output.
const slogLevelTrace = slog.LevelDebug - 2

func (v *Volume) logattrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if v.log != nil {
		v.log.LogAttrs(context.Background(), level, msg, attrs...)
	}
}

func (v *Volume) trace(msg string, attrs ...slog.Attr) { v.logattrs(slogLevelTrace, msg, attrs...) }
func (v *Volume) debug(msg string, attrs ...slog.Attr)  { v.logattrs(slog.LevelDebug, msg, attrs...) }
func (v *Volume) info(msg string, attrs ...slog.Attr)   { v.logattrs(slog.LevelInfo, msg, attrs...) }
func (v *Volume) warn(msg string, attrs ...slog.Attr)   { v.logattrs(slog.LevelWarn, msg, attrs...) }
func (v *Volume) logerror(msg string, attrs ...slog.Attr) {
	v.logattrs(slog.LevelError, msg, attrs...)
}
