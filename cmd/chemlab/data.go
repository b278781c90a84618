package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chemlab/internal/service"
)

func newExportCmd(configPath *string) *cobra.Command {
	var userID, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every stored document of a user to a JSON file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			bundle, err := a.svc.Export(cmd.Context(), userID)
			if err != nil {
				return err
			}
			raw, err := json.MarshalIndent(bundle, "", "  ")
			if err != nil {
				return fmt.Errorf("encode export: %w", err)
			}
			if out == "-" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
				return err
			}
			if out == "" {
				out = a.svc.ExportFilename()
			}
			if err := os.WriteFile(out, raw, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			a.logger.Info("export written", zap.String("user_id", userID), zap.String("file", out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, - for stdout (default chemistry-lab-data-YYYY-MM-DD.json)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newClearCmd(configPath *string) *cobra.Command {
	var (
		userID string
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored document and upload of a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear without --yes")
			}
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.svc.ClearAll(cmd.Context(), userID); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "cleared data of %s\n", userID)
			return err
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newAskCmd(configPath *string) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the chemistry chatbot one question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			question := args[0]
			for _, more := range args[1:] {
				question += " " + more
			}
			reply, err := a.svc.Chat(cmd.Context(), service.ChatRequest{UserID: userID, Message: question})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n[%s]\n", reply.Text, reply.Source)
			return err
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "also answer from this user's uploads")
	return cmd
}
