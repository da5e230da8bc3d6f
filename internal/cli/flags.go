package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/morozRed/engview/internal/metadata"
)

func OptionalStringFlag(cmd *cobra.Command, name string) (string, error) {
	if cmd == nil || cmd.Flags().Lookup(name) == nil {
		return "", nil
	}
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		return "", fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return strings.TrimSpace(value), nil
}

func BoolFlag(cmd *cobra.Command, name string) (bool, error) {
	if cmd == nil || cmd.Flags().Lookup(name) == nil {
		return false, nil
	}
	value, err := cmd.Flags().GetBool(name)
	if err != nil {
		return false, fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return value, nil
}

// ManualFromFlags overlays the flags the user actually set on current.
// The returned display name is nil when --display-name was not given.
func ManualFromFlags(cmd *cobra.Command, current metadata.ManualMetadata) (metadata.ManualMetadata, *string, error) {
	manual := current
	strFields := map[string]*string{
		"description": &manual.Description,
		"client":      &manual.Client,
		"status":      &manual.Status,
		"notes":       &manual.Notes,
		"color":       &manual.Color,
	}
	for name, dst := range strFields {
		if !cmd.Flags().Changed(name) {
			continue
		}
		value, err := OptionalStringFlag(cmd, name)
		if err != nil {
			return manual, nil, err
		}
		*dst = value
	}

	if cmd.Flags().Changed("tags") {
		tags, err := cmd.Flags().GetStringSlice("tags")
		if err != nil {
			return manual, nil, fmt.Errorf("failed to read --tags flag: %w", err)
		}
		manual.Tags = tags
	}

	if manual.Status != "" && !metadata.IsValidStatus(manual.Status) {
		return manual, nil, fmt.Errorf("unsupported status %q (supported: %s)",
			manual.Status, strings.Join(metadata.ValidStatuses, ", "))
	}

	var displayName *string
	if cmd.Flags().Changed("display-name") {
		value, err := OptionalStringFlag(cmd, "display-name")
		if err != nil {
			return manual, nil, err
		}
		displayName = &value
	}
	return manual, displayName, nil
}
