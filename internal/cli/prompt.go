package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"nci-backend/internal/llm"
)

func init() {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print the system instruction sent to the provider",
		Args:  cobra.NoArgs,
		RunE:  runPrompt,
	}
	cmd.Flags().Bool("schema", false, "Print the response JSON schema instead")
	RootCmd.AddCommand(cmd)
}

func runPrompt(cmd *cobra.Command, args []string) error {
	schema, _ := cmd.Flags().GetBool("schema")
	out := cmd.OutOrStdout()
	if schema {
		fmt.Fprintln(out, llm.ResponseSchemaJSON)
		return nil
	}
	fmt.Fprintln(out, llm.SystemInstruction())
	fmt.Fprintf(out, "\nprompt_hash=%s\n", llm.PromptHash())
	return nil
}
