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
package config

import (
	"os"
	"strings"

	"github.com/Velocidex/yaml/v2"
	"github.com/go-errors/errors"
	"www.velocidex.com/golang/modtracker/constants"
	"www.velocidex.com/golang/modtracker/utils"
)

type TrackerConfig struct {
	// Number of module handles to offer the enumeration facility
	// before it reports the size it actually needs.
	ModuleBufferCapacity int `json:"module_buffer_capacity,omitempty"`

	// Maximum UTF-16 length of a single module path.
	ModulePathCapacity int `json:"module_path_capacity,omitempty"`

	ScanConcurrency int `json:"scan_concurrency,omitempty"`

	// Processes per second, 0 means unlimited.
	ScanRate float64 `json:"scan_rate,omitempty"`

	// Processes we failed to open are not retried for this long.
	FailedPidTTLSec int `json:"failed_pid_ttl_sec,omitempty"`

	DriveLetters      string `json:"drive_letters,omitempty"`
	PathNormalization string `json:"path_normalization,omitempty"`
}

type ETWConfig struct {
	SessionName  string `json:"session_name,omitempty"`
	ProviderGUID string `json:"provider_guid,omitempty"`
	AnyKeyword   uint64 `json:"any_keyword,omitempty"`
	AllKeyword   uint64 `json:"all_keyword,omitempty"`
	Level        int64  `json:"level,omitempty"`
}

type LoggingConfig struct {
	Level string `json:"level,omitempty"`

	// When set, log lines are also appended to this file as JSON.
	OutputFile string `json:"output_file,omitempty"`
}

type Config struct {
	Tracker *TrackerConfig `json:"tracker,omitempty"`
	ETW     *ETWConfig     `json:"etw,omitempty"`
	Logging *LoggingConfig `json:"logging,omitempty"`
}

func (self *Config) String() string {
	serialized, err := yaml.Marshal(self)
	if err != nil {
		return ""
	}
	return string(serialized)
}

func GetDefaultConfig() *Config {
	return &Config{
		Tracker: &TrackerConfig{
			ModuleBufferCapacity: constants.DEFAULT_MODULE_BUFFER_CAPACITY,
			ModulePathCapacity:   constants.DEFAULT_MODULE_PATH_CAPACITY,
			ScanConcurrency:      constants.DEFAULT_SCAN_CONCURRENCY,
			FailedPidTTLSec:      constants.DEFAULT_FAILED_PID_TTL,
			DriveLetters:         constants.DEFAULT_DRIVE_LETTERS,
			PathNormalization:    constants.PATH_NORMALIZATION_DRIVE_LETTER,
		},
		ETW: &ETWConfig{
			SessionName:  constants.DEFAULT_ETW_SESSION_NAME,
			ProviderGUID: constants.KERNEL_PROCESS_PROVIDER_GUID,
			AnyKeyword:   constants.KERNEL_PROCESS_IMAGE_KEYWORD,
			Level:        4,
		},
		Logging: &LoggingConfig{
			Level: "info",
		},
	}
}

// Load the config stored in the YAML file. Settings missing from the
// file keep their default values.
func LoadConfig(filename string) (*Config, error) {
	config_obj := GetDefaultConfig()
	if filename == "" {
		return config_obj, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	err = ParseConfigFromString(data, config_obj)
	if err != nil {
		return nil, err
	}

	return config_obj, nil
}

func ParseConfigFromString(config_string []byte, config_obj *Config) error {
	err := yaml.UnmarshalStrict(config_string, config_obj)
	if err != nil {
		return utils.Wrapf(utils.InvalidConfigError, "%v", err)
	}

	// A section present in the file but with missing fields still
	// needs the defaults.
	defaults := GetDefaultConfig()
	if config_obj.Tracker == nil {
		config_obj.Tracker = defaults.Tracker
	}
	if config_obj.ETW == nil {
		config_obj.ETW = defaults.ETW
	}
	if config_obj.Logging == nil {
		config_obj.Logging = defaults.Logging
	}
	mergeTrackerDefaults(config_obj.Tracker, defaults.Tracker)
	mergeETWDefaults(config_obj.ETW, defaults.ETW)
	if config_obj.Logging.Level == "" {
		config_obj.Logging.Level = defaults.Logging.Level
	}

	return config_obj.Validate()
}

func mergeTrackerDefaults(out, defaults *TrackerConfig) {
	if out.ModuleBufferCapacity == 0 {
		out.ModuleBufferCapacity = defaults.ModuleBufferCapacity
	}
	if out.ModulePathCapacity == 0 {
		out.ModulePathCapacity = defaults.ModulePathCapacity
	}
	if out.ScanConcurrency == 0 {
		out.ScanConcurrency = defaults.ScanConcurrency
	}
	if out.FailedPidTTLSec == 0 {
		out.FailedPidTTLSec = defaults.FailedPidTTLSec
	}
	if out.DriveLetters == "" {
		out.DriveLetters = defaults.DriveLetters
	}
	if out.PathNormalization == "" {
		out.PathNormalization = defaults.PathNormalization
	}
}

func mergeETWDefaults(out, defaults *ETWConfig) {
	if out.SessionName == "" {
		out.SessionName = defaults.SessionName
	}
	if out.ProviderGUID == "" {
		out.ProviderGUID = defaults.ProviderGUID
	}
	if out.AnyKeyword == 0 && out.AllKeyword == 0 {
		out.AnyKeyword = defaults.AnyKeyword
	}
	if out.Level == 0 {
		out.Level = defaults.Level
	}
}

func (self *Config) Validate() error {
	if self.Tracker == nil {
		return utils.Wrap(utils.InvalidConfigError, "tracker section is required")
	}

	if self.Tracker.ModuleBufferCapacity < 0 {
		return utils.Wrapf(utils.InvalidConfigError,
			"module_buffer_capacity must be positive, not %v",
			self.Tracker.ModuleBufferCapacity)
	}

	if self.Tracker.ScanConcurrency < 0 {
		return utils.Wrapf(utils.InvalidConfigError,
			"scan_concurrency must be positive, not %v",
			self.Tracker.ScanConcurrency)
	}

	if self.Tracker.ScanRate < 0 {
		return utils.Wrapf(utils.InvalidConfigError,
			"scan_rate must not be negative, not %v", self.Tracker.ScanRate)
	}

	for _, letter := range strings.ToLower(self.Tracker.DriveLetters) {
		if letter < 'a' || letter > 'z' {
			return utils.Wrapf(utils.InvalidConfigError,
				"invalid drive letter %q", letter)
		}
	}

	switch self.Tracker.PathNormalization {
	case constants.PATH_NORMALIZATION_DRIVE_LETTER,
		constants.PATH_NORMALIZATION_VOLUME,
		constants.PATH_NORMALIZATION_PASSTHROUGH:
	default:
		return utils.Wrapf(utils.InvalidConfigError,
			"unknown path_normalization %q", self.Tracker.PathNormalization)
	}

	return nil
}
