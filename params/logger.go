package params

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log is the process logger. Packages log through it so a run id attached in
// main shows up on every line.
var Log = zerolog.New(os.Stderr).With().Timestamp().Logger()

// SetupLogger replaces Log with a human readable console logger at the given
// level. Unknown levels fall back to info.
func SetupLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	Log = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return Log
}
