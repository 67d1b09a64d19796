package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"

	"github.com/ternarybob/vigil/internal/app"
)

// runSettings lists, changes, or resets runtime settings.
func runSettings(ctx context.Context, application *app.App, args []string) error {
	flags := flag.NewFlagSet("settings", flag.ExitOnError)
	list := flags.Bool("list", false, "List all settings with their effective values")
	set := flags.String("set", "", "Change a setting: key=value (value parsed as JSON, then as a string)")
	reset := flags.String("reset", "", "Reset a setting to its default")
	flags.Parse(args)

	switch {
	case *list:
		infos, err := application.Settings.List(ctx)
		if err != nil {
			return err
		}
		for _, info := range infos {
			marker := " "
			if !info.IsDefault {
				marker = "*"
			}
			value, _ := json.Marshal(info.Value)
			fmt.Printf("%s %-24s %-32s %s\n", marker, info.Key, string(value), info.Description)
		}
		fmt.Println("\n(* = changed from default)")
		return nil

	case *set != "":
		key, raw, ok := strings.Cut(*set, "=")
		if !ok {
			return fmt.Errorf("expected key=value, got %q", *set)
		}
		if err := application.Settings.Set(ctx, key, parseValue(raw)); err != nil {
			return err
		}
		fmt.Printf("set %s\n", key)
		return nil

	case *reset != "":
		if err := application.Settings.Reset(ctx, *reset); err != nil {
			return err
		}
		fmt.Printf("reset %s to default\n", *reset)
		return nil

	default:
		flags.Usage()
		return fmt.Errorf("one of -list, -set, or -reset is required")
	}
}

// parseValue interprets a CLI value: JSON first so numbers, booleans,
// and lists work, then a plain string.
func parseValue(raw string) interface{} {
	var value interface{}
	if err := json.Unmarshal([]byte(raw), &value); err == nil {
		return value
	}
	return raw
}
