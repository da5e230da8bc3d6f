package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/morozRed/engview/internal/fileutil"
	"github.com/morozRed/engview/internal/metadata"
	"github.com/morozRed/engview/internal/scanner"
)

func RunMetaGet(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	store, err := a.store()
	if err != nil {
		return err
	}
	doc, err := store.Get(args[0])
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("no metadata for project %q", args[0])
	}
	return fileutil.PrintJSON(cmd.OutOrStdout(), doc)
}

func RunMetaSet(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	store, err := a.store()
	if err != nil {
		return err
	}
	id := args[0]
	current := metadata.DefaultManual()
	existing, err := store.Get(id)
	if err != nil {
		return err
	}
	if existing != nil {
		current = existing.Manual
	}

	manual, displayName, err := ManualFromFlags(cmd, current)
	if err != nil {
		return err
	}
	doc, err := store.UpdateManual(id, manual, displayName)
	if err != nil {
		return err
	}
	return fileutil.PrintJSON(cmd.OutOrStdout(), doc)
}

func RunMetaDelete(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	store, err := a.store()
	if err != nil {
		return err
	}
	existed, err := store.Delete(args[0])
	if err != nil {
		return err
	}
	if !existed {
		return fmt.Errorf("no metadata for project %q", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted metadata for %s\n", args[0])
	return nil
}

func RunMetaList(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	asJSON, err := BoolFlag(cmd, "json")
	if err != nil {
		return err
	}
	store, err := a.store()
	if err != nil {
		return err
	}
	docs, err := store.All()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return fileutil.PrintJSON(out, docs)
	}
	for _, id := range fileutil.SortedKeys(docs) {
		doc := docs[id]
		engine := "-"
		if doc.Auto != nil {
			engine = fmt.Sprintf("%dcyl %s", doc.Auto.Cylinders, doc.Auto.Type)
		}
		name := doc.DisplayName
		if name == "" {
			name = scanner.DisplayName(id)
		}
		fmt.Fprintf(out, "%-28s %-30s %-10s %s\n", id, name, doc.Manual.Status, engine)
	}
	return nil
}
