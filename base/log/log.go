// Copyright 2026 olist-intelligence Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"net/url"
	"os"
	"strings"

	"github.com/emicklei/go-restful/v3"
	"github.com/go-sql-driver/mysql"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const RequestIdHeader = "X-Request-ID"

var logger, _ = zap.NewDevelopment()

// Logger get current logger
func Logger() *zap.Logger {
	return logger
}

// ResponseLogger returns a logger tagged with the request id of the response.
func ResponseLogger(resp *restful.Response) *zap.Logger {
	return logger.With(zap.String("request_id", resp.Header().Get(RequestIdHeader)))
}

// FileOptions configures the rotating log file. An empty Path disables it.
type FileOptions struct {
	Path       string
	MaxSize    int
	MaxAge     int
	MaxBackups int
}

func AddFlags(flagSet *pflag.FlagSet) {
	flagSet.String("log-path", "", "path of log file")
	flagSet.Int("log-max-size", 100, "maximum size in megabytes of the log file")
	flagSet.Int("log-max-age", 0, "maximum number of days to retain old log files")
	flagSet.Int("log-max-backups", 0, "maximum number of old log files to retain")
}

// FileOptionsFromFlags reads the flags registered by AddFlags.
func FileOptionsFromFlags(flagSet *pflag.FlagSet) FileOptions {
	var opts FileOptions
	opts.Path, _ = flagSet.GetString("log-path")
	opts.MaxSize, _ = flagSet.GetInt("log-max-size")
	opts.MaxAge, _ = flagSet.GetInt("log-max-age")
	opts.MaxBackups, _ = flagSet.GetInt("log-max-backups")
	return opts
}

// NewLogger writes console lines at debug level in debug mode and JSON lines
// at info level otherwise. Output goes to stdout and to the log file if any.
func NewLogger(opts FileOptions, debug bool) *zap.Logger {
	var (
		encoder zapcore.Encoder
		level   zapcore.Level
	)
	if debug {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.999999")
		encoder, level = zapcore.NewConsoleEncoder(cfg), zap.DebugLevel
	} else {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder, level = zapcore.NewJSONEncoder(cfg), zap.InfoLevel
	}
	sink := zapcore.AddSync(os.Stdout)
	if opts.Path != "" {
		sink = zap.CombineWriteSyncers(sink, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSize,
			MaxAge:     opts.MaxAge,
			MaxBackups: opts.MaxBackups,
		}))
	}
	return zap.New(zapcore.NewCore(encoder, sink, level))
}

// SetLogger replaces the global logger according to the log flags.
func SetLogger(flagSet *pflag.FlagSet, debug bool) {
	logger = NewLogger(FileOptionsFromFlags(flagSet), debug)
}

const mysqlPrefix = "mysql://"

// RedactDBURL masks the user name and password of a database URL. Unparsable
// URLs are returned unchanged.
func RedactDBURL(rawURL string) string {
	mask := func(s string) string { return strings.Repeat("x", len(s)) }
	if dsn, ok := strings.CutPrefix(rawURL, mysqlPrefix); ok {
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return rawURL
		}
		cfg.User, cfg.Passwd = mask(cfg.User), mask(cfg.Passwd)
		return mysqlPrefix + cfg.FormatDSN()
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.User == nil {
		return rawURL
	}
	password, _ := parsed.User.Password()
	parsed.User = url.UserPassword(mask(parsed.User.Username()), mask(password))
	return parsed.String()
}
