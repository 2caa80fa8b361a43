package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"nci-backend/internal/session"
)

func init() {
	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Analyze a document or text and print the threat gauge",
		Long:  "Ingests a .pdf, .docx, .txt or .md file (or --text), scores it against all criteria with the configured provider and prints the result.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runAnalyze,
	}
	cmd.Flags().StringP("text", "t", "", "Text to analyze")
	cmd.Flags().Bool("json", false, "Print the session view as JSON")
	cmd.Flags().Bool("save", false, "Save the result to the snapshot store")
	cmd.Flags().Duration("timeout", 0, "Override the provider timeout")
	RootCmd.AddCommand(cmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	text, _ := cmd.Flags().GetString("text")
	asJSON, _ := cmd.Flags().GetBool("json")
	save, _ := cmd.Flags().GetBool("save")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if len(args) == 0 && text == "" {
		return errors.New("provide a file or --text")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := openApp(ctx)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	defer app.Close()
	if timeout > 0 {
		app.Service.Timeout = timeout
	}

	view, err := analyze(ctx, app.Service, text, args)
	if err != nil {
		return err
	}

	if save {
		if _, err := app.Service.Save(ctx); err != nil {
			return err
		}
		view = app.Service.Session.View()
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	renderReport(out, view)
	return nil
}

func analyze(ctx context.Context, svc *session.Service, text string, args []string) (session.View, error) {
	if text != "" {
		svc.Session.SetInputText(text)
	}
	if len(args) == 1 {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return session.View{}, fmt.Errorf("read %s: %w", path, err)
		}
		if err := svc.Upload(ctx, filepath.Base(path), data); err != nil {
			return session.View{}, errors.New(svc.Session.View().Error)
		}
	}

	started := time.Now()
	view, err := svc.AnalyzeNow(ctx)
	if err != nil {
		return session.View{}, fmt.Errorf("%s (%w)", session.MsgAnalysisFailed, err)
	}
	if view.Notice == "" {
		view.Notice = fmt.Sprintf("Analyzed in %s", time.Since(started).Round(time.Millisecond))
	}
	return view, nil
}
