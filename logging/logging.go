/*
Velociraptor - Dig Deeper
Copyright (C) 2019-2025 Rapid7 Inc.

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published
by the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package logging

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"www.velocidex.com/golang/modtracker/config"
)

var (
	TrackerComponent   = "ModuleTracker"
	IngestionComponent = "Ingestion"
	ETWComponent       = "ETW"
	ToolComponent      = "Tool"

	mu       sync.Mutex
	managers = make(map[string]*LogContext)

	// Output for all new loggers. Tests replace it to keep the
	// console quiet.
	output_writer io.Writer = os.Stderr

	tag_regex = regexp.MustCompile("</?[a-z]*>")

	memory_logs = &memoryHook{}
)

// LogContext is what callers use to log. It carries the component
// name so all messages from a subsystem can be identified.
type LogContext struct {
	*logrus.Logger

	component string
}

func (self *LogContext) Debug(format string, v ...interface{}) {
	self.WithFields(logrus.Fields{}).Debug(self.format(format, v...))
}

func (self *LogContext) Info(format string, v ...interface{}) {
	self.WithFields(logrus.Fields{}).Info(self.format(format, v...))
}

func (self *LogContext) Warn(format string, v ...interface{}) {
	self.WithFields(logrus.Fields{}).Warn(self.format(format, v...))
}

func (self *LogContext) Error(format string, v ...interface{}) {
	self.WithFields(logrus.Fields{}).Error(self.format(format, v...))
}

func (self *LogContext) WithFields(fields logrus.Fields) *logrus.Entry {
	fields["component"] = self.component
	return self.Logger.WithFields(fields)
}

// LogWithLevel is used when the level is only known at runtime.
func (self *LogContext) LogWithLevel(level string, format string, v ...interface{}) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		self.Debug(format, v...)
	case "WARN", "WARNING":
		self.Warn(format, v...)
	case "ERROR":
		self.Error(format, v...)
	default:
		self.Info(format, v...)
	}
}

// Colour tags are meant for interactive consoles only.
func (self *LogContext) format(format string, v ...interface{}) string {
	return tag_regex.ReplaceAllString(fmt.Sprintf(format, v...), "")
}

// GetLogger returns the shared logger for the component. The
// logging level is taken from the config; a nil config uses the
// default level.
func GetLogger(config_obj *config.Config, component *string) *LogContext {
	mu.Lock()
	defer mu.Unlock()

	level := logrus.InfoLevel
	if config_obj != nil && config_obj.Logging != nil {
		parsed, err := logrus.ParseLevel(config_obj.Logging.Level)
		if err == nil {
			level = parsed
		}
	}

	result, pres := managers[*component]
	if !pres {
		logger := logrus.New()
		logger.SetOutput(output_writer)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			DisableColors:    true,
			QuoteEmptyFields: true,
		})
		logger.AddHook(memory_logs)

		if config_obj != nil && config_obj.Logging != nil &&
			config_obj.Logging.OutputFile != "" {
			logger.AddHook(newFileHook(config_obj.Logging.OutputFile))
		}

		result = &LogContext{
			Logger:    logger,
			component: *component,
		}
		managers[*component] = result
	}
	result.SetLevel(level)

	return result
}

// All levels go to the same file.
func newFileHook(path string) logrus.Hook {
	path_map := lfshook.PathMap{}
	for _, level := range logrus.AllLevels {
		path_map[level] = path
	}
	return lfshook.NewHook(path_map, &logrus.JSONFormatter{})
}

// SetOutput redirects all loggers, present and future.
func SetOutput(out io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	output_writer = out
	for _, logger := range managers {
		logger.SetOutput(out)
	}
}

// Suppress console output (memory logs are still collected).
func DisableLogging() {
	SetOutput(io.Discard)
}

// Keeps recent log lines in memory so tests can assert on them.
type memoryHook struct {
	mu    sync.Mutex
	lines []string
}

func (self *memoryHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (self *memoryHook) Fire(entry *logrus.Entry) error {
	self.mu.Lock()
	defer self.mu.Unlock()

	component, _ := entry.Data["component"].(string)
	self.lines = append(self.lines, fmt.Sprintf("%s: [%s] %s",
		strings.ToUpper(entry.Level.String()), component, entry.Message))

	// Do not grow without bound in long running processes.
	if len(self.lines) > 1000 {
		self.lines = self.lines[len(self.lines)-1000:]
	}
	return nil
}

func GetMemoryLogs() []string {
	memory_logs.mu.Lock()
	defer memory_logs.mu.Unlock()

	return append([]string{}, memory_logs.lines...)
}

func ClearMemoryLogs() {
	memory_logs.mu.Lock()
	defer memory_logs.mu.Unlock()

	memory_logs.lines = nil
}
