package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// emit writes v to stdout in the format the active config selects:
// pretty-printed JSON for "json", a best-effort human summary otherwise.
func emit(v interface{}) error {
	format := "human"
	if app != nil {
		format = app.cfg.CLI.DefaultFormat
	}
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return emitHuman(v)
}

// emitHuman renders v as a flat key: value listing. Nested structures
// fall back to their JSON form inline, since the human format favors
// readability over a bespoke renderer per type.
func emitHuman(v interface{}) error {
	switch t := v.(type) {
	case map[string]string:
		for k, val := range t {
			fmt.Printf("%s: %s\n", k, val)
		}
		return nil
	case map[string]bool:
		for k, val := range t {
			fmt.Printf("%s: %t\n", k, val)
		}
		return nil
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	}
}
