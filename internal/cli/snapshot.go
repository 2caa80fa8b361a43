package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"nci-backend/internal/snapshots"
)

func init() {
	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect the saved analysis",
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the saved analysis from the configured store",
		Args:  cobra.NoArgs,
		RunE:  runSnapshotShow,
	}
	show.Flags().Bool("raw", false, "Print the stored JSON document")
	snapshotCmd.AddCommand(show)
	RootCmd.AddCommand(snapshotCmd)
}

func runSnapshotShow(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetBool("raw")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := openApp(ctx)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	defer app.Close()

	out := cmd.OutOrStdout()
	if raw {
		payload, err := app.Snapshots.Raw(ctx)
		if err != nil {
			return err
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, payload, "", "  "); err != nil {
			return snapshots.ErrCorruptSnapshot
		}
		fmt.Fprintln(out, pretty.String())
		return nil
	}

	if _, err := app.Service.Load(ctx); err != nil {
		return err
	}
	view := app.Session.View()
	if view.InputText != "" {
		fmt.Fprintf(out, "Text: %s\n", truncate(view.InputText, 120))
	}
	if view.AttachedFile != nil {
		fmt.Fprintf(out, "Attachment: %s (%s, %d bytes)\n", view.AttachedFile.Name, view.AttachedFile.MimeType, view.AttachedFile.Size)
	}
	renderReport(out, view)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
