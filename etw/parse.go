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
package etw

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Velocidex/ordereddict"
	"www.velocidex.com/golang/modtracker/constants"
	"www.velocidex.com/golang/modtracker/ingestion"
	"www.velocidex.com/golang/modtracker/utils"
)

// ParseImageEvent converts a Microsoft-Windows-Kernel-Process image
// event into a notification. Returns *ingestion.ImageLoad for event
// 5 and *ingestion.ImageUnload for event 6. Property values may be
// numbers or their string rendering (decimal or 0x hex).
func ParseImageEvent(
	event_id uint16, header_pid uint32, timestamp time.Time,
	props interface{}) (interface{}, error) {
	if event_id != constants.ETW_IMAGE_LOAD_EVENT_ID &&
		event_id != constants.ETW_IMAGE_UNLOAD_EVENT_ID {
		return nil, utils.Wrapf(utils.InvalidArgError,
			"Unexpected event id %v", event_id)
	}

	dict, err := toDict(props)
	if err != nil {
		return nil, err
	}

	path := ""
	name, pres := dict.Get("ImageName")
	if pres {
		path = fmt.Sprintf("%v", name)
	}

	pid := uint64(header_pid)
	if value, pres := dict.Get("ProcessID"); pres {
		pid, err = toUint64(value)
		if err != nil {
			return nil, utils.Wrapf(err, "ProcessID")
		}
	}

	base, err := getUint64(dict, "ImageBase")
	if err != nil {
		return nil, err
	}

	if event_id == constants.ETW_IMAGE_UNLOAD_EVENT_ID {
		return &ingestion.ImageUnload{
			ProcessId: uint32(pid),
			Path:      path,
			ImageBase: base,
			EventTime: timestamp,
		}, nil
	}

	size, err := getUint64(dict, "ImageSize")
	if err != nil {
		return nil, err
	}

	timedatestamp, err := getUint64(dict, "TimeDateStamp")
	if err != nil {
		return nil, err
	}

	// The event does not carry the entry point. DefaultBase is the
	// closest thing it reports.
	entry_point, err := getUint64(dict, "DefaultBase")
	if err != nil {
		return nil, err
	}

	return &ingestion.ImageLoad{
		ProcessId:     uint32(pid),
		Path:          path,
		TimeDateStamp: uint32(timedatestamp),
		ImageBase:     base,
		ImageSize:     uint32(size),
		EntryPoint:    entry_point,
		EventTime:     timestamp,
	}, nil
}

func toDict(props interface{}) (*ordereddict.Dict, error) {
	switch t := props.(type) {
	case *ordereddict.Dict:
		if t == nil {
			return ordereddict.NewDict(), nil
		}
		return t, nil

	case map[string]interface{}:
		result := ordereddict.NewDict()
		for k, v := range t {
			result.Set(k, v)
		}
		return result, nil

	case map[string]string:
		result := ordereddict.NewDict()
		for k, v := range t {
			result.Set(k, v)
		}
		return result, nil

	case nil:
		return ordereddict.NewDict(), nil
	}

	return nil, utils.Wrapf(utils.InvalidArgError,
		"Unsupported event properties %T", props)
}

// Missing fields are zero.
func getUint64(dict *ordereddict.Dict, field string) (uint64, error) {
	value, pres := dict.Get(field)
	if !pres {
		return 0, nil
	}

	result, err := toUint64(value)
	if err != nil {
		return 0, utils.Wrapf(err, "%v", field)
	}
	return result, nil
}

func toUint64(value interface{}) (uint64, error) {
	switch t := value.(type) {
	case uint64:
		return t, nil
	case uint32:
		return uint64(t), nil
	case uint16:
		return uint64(t), nil
	case uint8:
		return uint64(t), nil
	case uint:
		return uint64(t), nil
	case uintptr:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case int32:
		return uint64(uint32(t)), nil
	case int:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		t = strings.TrimSpace(t)
		if t == "" {
			return 0, nil
		}
		// Base 0 accepts both 0x1000 and 4096
		return strconv.ParseUint(strings.ToLower(t), 0, 64)
	}

	return 0, utils.Wrapf(utils.InvalidArgError, "Unsupported number %T", value)
}
