package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/junkd0g/bubbleflow/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage chart parameter files",
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a parameter file with the defaults",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigInit,
	}
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")

	checkCmd := &cobra.Command{
		Use:   "check <path>",
		Short: "Validate a parameter file",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigCheck,
	}

	cmd.AddCommand(initCmd, checkCmd)
	return cmd
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "bubbleflow.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}
	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", headingStyle.Render("Wrote"), path)
	return nil
}

func runConfigCheck(cmd *cobra.Command, args []string) error {
	p, err := config.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%q, %d frames)\n", args[0], p.Title, p.NumFrames)
	return nil
}
