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
// Wrap json library to control encoding.

package json

import (
	"time"

	"github.com/Velocidex/json"
	"github.com/Velocidex/ordereddict"
)

// Ordered dicts keep their key order on the wire.
func MarshalJSONDict(v interface{}, opts *json.EncOpts) ([]byte, error) {
	self, ok := v.(*ordereddict.Dict)
	if !ok {
		return nil, json.EncoderCallbackSkip
	}

	result := []byte("{")
	for idx, k := range self.Keys() {
		if idx > 0 {
			result = append(result, ',')
		}

		key, err := json.MarshalWithOptions(k, opts)
		if err != nil {
			return nil, err
		}
		result = append(result, key...)
		result = append(result, ':')

		value, _ := self.Get(k)
		serialized, err := json.MarshalWithOptions(value, opts)
		if err != nil {
			serialized = []byte("null")
		}
		result = append(result, serialized...)
	}
	result = append(result, '}')
	return result, nil
}

// Take care of marshaling all timestamps in UTC
func MarshalTimes(v interface{}, opts *json.EncOpts) ([]byte, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().MarshalJSON()

	case *time.Time:
		if t == nil {
			return []byte("null"), nil
		}
		return t.UTC().MarshalJSON()
	}
	return nil, json.EncoderCallbackSkip
}

func init() {
	RegisterCustomEncoder(ordereddict.NewDict(), MarshalJSONDict)
	RegisterCustomEncoder(time.Time{}, MarshalTimes)
	RegisterCustomEncoder(&time.Time{}, MarshalTimes)
}
