package etw

import (
	"errors"
	"testing"
	"time"

	"github.com/Velocidex/ordereddict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"www.velocidex.com/golang/modtracker/ingestion"
	"www.velocidex.com/golang/modtracker/utils"
)

var (
	eventTime = time.Unix(1602103388, 0).UTC()
)

func TestParseImageLoadStrings(t *testing.T) {
	// Property bags rendered as strings, hex for pointers.
	props := map[string]interface{}{
		"ProcessID":     "4812",
		"ImageBase":     "0x7FFE0000",
		"ImageSize":     "0x1F0000",
		"ImageCheckSum": "2026174",
		"TimeDateStamp": "1602103388",
		"DefaultBase":   "0x7FFE1000",
		"ImageName":     `\Device\HarddiskVolume3\Windows\System32\ntdll.dll`,
	}

	result, err := ParseImageEvent(5, 4, eventTime, props)
	require.NoError(t, err)

	load, ok := result.(*ingestion.ImageLoad)
	require.True(t, ok)

	assert.Equal(t, &ingestion.ImageLoad{
		ProcessId:     4812,
		Path:          `\Device\HarddiskVolume3\Windows\System32\ntdll.dll`,
		TimeDateStamp: 1602103388,
		ImageBase:     0x7FFE0000,
		ImageSize:     0x1F0000,
		EntryPoint:    0x7FFE1000,
		EventTime:     eventTime,
	}, load)
}

func TestParseImageLoadNumbers(t *testing.T) {
	props := ordereddict.NewDict().
		Set("ImageBase", uint64(0x10000000)).
		Set("ImageSize", uint32(0x2000)).
		Set("TimeDateStamp", uint32(0x5F8E2B1A)).
		Set("ImageName", `C:\Tools\a.dll`)

	// Without a ProcessID field the header pid is used.
	result, err := ParseImageEvent(5, 1234, eventTime, props)
	require.NoError(t, err)

	load := result.(*ingestion.ImageLoad)
	assert.Equal(t, uint32(1234), load.ProcessId)
	assert.Equal(t, uint64(0x10000000), load.ImageBase)
	assert.Equal(t, uint32(0x2000), load.ImageSize)
	assert.Equal(t, uint32(0x5F8E2B1A), load.TimeDateStamp)
	assert.Equal(t, uint64(0), load.EntryPoint)
}

func TestParseImageUnload(t *testing.T) {
	props := map[string]interface{}{
		"ProcessID": "4812",
		"ImageBase": "0x7ffe0000",
		"ImageName": `\Device\HarddiskVolume3\Windows\System32\ntdll.dll`,
	}

	result, err := ParseImageEvent(6, 4, eventTime, props)
	require.NoError(t, err)

	unload, ok := result.(*ingestion.ImageUnload)
	require.True(t, ok)
	assert.Equal(t, uint32(4812), unload.ProcessId)
	assert.Equal(t, uint64(0x7FFE0000), unload.ImageBase)
	assert.Equal(t, eventTime, unload.EventTime)
}

func TestParseImageEventErrors(t *testing.T) {
	_, err := ParseImageEvent(1, 4, eventTime, map[string]interface{}{})
	assert.True(t, errors.Is(err, utils.InvalidArgError))

	_, err = ParseImageEvent(5, 4, eventTime, map[string]interface{}{
		"ImageBase": "not a number",
	})
	assert.Error(t, err)

	_, err = ParseImageEvent(5, 4, eventTime, []string{"ImageBase"})
	assert.True(t, errors.Is(err, utils.InvalidArgError))

	_, err = ParseImageEvent(5, 4, eventTime, map[string]interface{}{
		"ImageBase": []byte{1, 2},
	})
	assert.True(t, errors.Is(err, utils.InvalidArgError))
}
