package rowcursor

import "github.com/go-stdlog/stdlog"

const (
	// DefaultSeparator is the row delimiter assumed when Config.Separator is
	// left unset.
	DefaultSeparator = byte('\n')

	// DefaultGranularity is the sampling interval assumed when
	// Config.Granularity is left unset: every row boundary is recorded.
	DefaultGranularity = int64(1)
)

type Config struct {
	// Separator defines the single byte delimiting rows in the stream. When
	// zero, DefaultSeparator is assumed. It can be changed later through
	// Cursor.SetSeparator, affecting only rows processed after the change.
	Separator byte

	// Granularity indicates the row-index interval at which the cursor
	// records (row, byte offset) samples while scanning. Lower values make
	// seeks cheaper at the cost of a denser index. When zero or below,
	// DefaultGranularity is assumed.
	Granularity int64

	// Logger allows a given stdlog.Logger instance to be set as the cursor
	// logger. If unset, no logs will be generated.
	Logger stdlog.Logger
}

func (c Config) GetSeparator() byte {
	if c.Separator == 0 {
		return DefaultSeparator
	}
	return c.Separator
}

func (c Config) GetGranularity() int64 {
	if c.Granularity <= 0 {
		return DefaultGranularity
	}
	return c.Granularity
}

func (c Config) GetLogger() stdlog.Logger {
	if c.Logger != nil {
		return c.Logger.Named("rowcursor")
	}
	return stdlog.Discard
}
