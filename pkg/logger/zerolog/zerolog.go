// Package zerolog adapts rs/zerolog to the project Logger interface.
package zerolog

import (
	"os"
	"strings"
	"time"

	"github.com/google/goterm/term"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

// New builds a zerolog-backed Logger. With jsonFormat set, raw JSON lines
// go to stdout; otherwise a colored console writer is used.
func New(level, dateTimeLayout string, colored, jsonFormat bool) (*Adapter, error) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	logMode, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(logMode)

	if jsonFormat {
		logger := log.Output(os.Stdout)
		return &Adapter{&logger}, nil
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		NoColor:    !colored,
		TimeFormat: dateTimeLayout,
	}
	output.FormatLevel = formatLevel
	output.FormatTimestamp = func(i interface{}) string {
		return formatTimestamp(i, dateTimeLayout)
	}

	logger := log.Output(output)
	return &Adapter{&logger}, nil
}

// Nop returns a Logger that discards everything, useful as a default for
// injectable components.
func Nop() *Adapter {
	logger := zerolog.Nop()
	return &Adapter{&logger}
}

func formatLevel(i interface{}) string {
	levelStr, ok := i.(string)
	if !ok {
		return term.Whitef("[UNK]")
	}

	switch levelStr {
	case zerolog.LevelDebugValue:
		return term.Cyanf("[DBG]")
	case zerolog.LevelInfoValue:
		return term.Greenf("[INF]")
	case zerolog.LevelWarnValue:
		return term.Yellowf("[WAR]")
	case zerolog.LevelErrorValue, zerolog.LevelFatalValue:
		return term.Redf("[%s]", strings.ToUpper(levelStr[:3]))
	default:
		return term.Whitef("[UNK]")
	}
}

func formatTimestamp(i interface{}, timeLayout string) string {
	strTime, ok := i.(string)
	if !ok {
		return term.Cyanf("[%v]", i)
	}

	ts, err := time.ParseInLocation(time.RFC3339, strTime, time.Local)
	if err == nil {
		strTime = ts.In(time.Local).Format(timeLayout)
	}
	return term.Cyanf("[%s]", strTime)
}
