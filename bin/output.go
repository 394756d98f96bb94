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
package main

import (
	"fmt"
	"io"

	"github.com/Velocidex/ordereddict"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/modtracker/json"
	"www.velocidex.com/golang/modtracker/utils"
)

// Columns shown in table output. JSON output has every field.
var module_columns = []string{
	"Pid", "Id", "Path", "BaseAddress", "ImageSize", "State", "Source",
}

func print_rows(out io.Writer, rows []*ordereddict.Dict,
	columns []string, format string) {
	switch format {
	case "json":
		serialized, err := json.MarshalIndent(rows)
		kingpin.FatalIfError(err, "Unable to encode rows.")
		fmt.Fprintf(out, "%s\n", serialized)

	case "jsonl":
		items := make([]interface{}, 0, len(rows))
		for _, row := range rows {
			items = append(items, row)
		}
		serialized, err := json.MarshalJsonl(items)
		kingpin.FatalIfError(err, "Unable to encode rows.")
		out.Write(serialized)

	default:
		table := tablewriter.NewWriter(out)
		table.SetHeader(columns)
		table.SetAutoFormatHeaders(false)
		table.SetAutoWrapText(false)

		for _, row := range rows {
			string_row := []string{}
			for _, column := range columns {
				string_row = append(string_row, format_cell(row, column))
			}
			table.Append(string_row)
		}
		table.Render()
	}
}

func format_cell(row *ordereddict.Dict, column string) string {
	value, pres := row.Get(column)
	if !pres || utils.IsNil(value) {
		return ""
	}

	switch t := value.(type) {
	case string:
		return t

	case uint32:
		if column == "ImageSize" {
			return humanize.IBytes(uint64(t))
		}
	}

	return fmt.Sprintf("%v", value)
}
