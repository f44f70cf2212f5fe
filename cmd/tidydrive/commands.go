package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/tidydrive/tidydrive/internal/config"
)

// --- categorize ---

type fileResult struct {
	FileID     string  `json:"fileId"`
	FileName   string  `json:"fileName"`
	CategoryID string  `json:"categoryId"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	Queued     bool    `json:"queued"`
	Error      string  `json:"error"`
}

func (r fileResult) label() string {
	if r.FileName != "" {
		return r.FileName
	}
	return r.FileID
}

func printFileResult(r fileResult) {
	switch {
	case r.Error != "":
		printError("%s: %s", r.label(), r.Error)
	case r.Queued:
		reason := r.Reason
		if reason == "" {
			reason = "no confident match"
		}
		printWarning("%s queued for review (%s)", r.label(), reason)
	default:
		printSuccess("%s assigned to %s (%s, confidence %.2f)", r.label(), r.CategoryID, r.Source, r.Confidence)
	}
}

var categorizeCmd = &cobra.Command{
	Use:   "categorize <fileID> [fileID...]",
	Short: "Categorize one or more drive files",
	Long: `Categorize one or more drive files.

Examples:
  tidydrive categorize 1a2b3c
  tidydrive categorize 1a2b3c 4d5e6f 7g8h9i`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			resp, err := client.post(cmd.Context(), "/categorize", map[string]any{"fileId": args[0]})
			if err != nil {
				return err
			}
			var result fileResult
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
			printFileResult(result)
			return nil
		}

		resp, err := client.post(cmd.Context(), "/categorize/batch", map[string]any{"fileIds": args})
		if err != nil {
			return err
		}
		var batch struct {
			Assigned []fileResult `json:"assigned"`
			Review   []fileResult `json:"review"`
			Errored  []fileResult `json:"errored"`
		}
		if err := decodeJSON(resp, &batch); err != nil {
			return err
		}

		for _, r := range batch.Assigned {
			printFileResult(r)
		}
		for _, r := range batch.Review {
			printFileResult(r)
		}
		for _, r := range batch.Errored {
			printFileResult(r)
		}
		printStatus("Total", "%d assigned, %d for review, %d failed",
			len(batch.Assigned), len(batch.Review), len(batch.Errored))
		return nil
	},
}

// --- sync ---

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror drive folders as categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/sync", map[string]any{"force": force})
		if err != nil {
			return err
		}

		var result struct {
			Created int  `json:"created"`
			Ran     bool `json:"ran"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if !result.Ran {
			printWarning("sync skipped, a run happened recently (use --force to override)")
			return nil
		}
		printSuccess("Folder sync complete, %d categories created or linked", result.Created)
		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("force", false, "run even if a sync happened recently")
}

// --- review ---

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Inspect and resolve the review queue",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List files waiting for review",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/review")
		if err != nil {
			return err
		}

		var items []struct {
			FileID              string  `json:"fileId"`
			FileName            string  `json:"fileName"`
			SuggestedCategoryID string  `json:"suggestedCategoryId"`
			Confidence          float64 `json:"confidence"`
			Reason              string  `json:"reason"`
		}
		if err := decodeJSON(resp, &items); err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("Review queue is empty.")
			return nil
		}

		for _, item := range items {
			name := item.FileName
			if name == "" {
				name = item.FileID
			}
			line := fmt.Sprintf("%s  %s", colorize(colorCyan, item.FileID), name)
			if item.SuggestedCategoryID != "" {
				line += fmt.Sprintf("  suggested: %s (%.2f)", item.SuggestedCategoryID, item.Confidence)
			}
			fmt.Println(line)
			if item.Reason != "" {
				fmt.Printf("    %s\n", item.Reason)
			}
		}
		return nil
	},
}

var reviewAcceptCmd = &cobra.Command{
	Use:   "accept <fileID>",
	Short: "Accept a review item, optionally into a specific category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		categoryID, _ := cmd.Flags().GetString("category")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{}
		if categoryID != "" {
			body["categoryId"] = categoryID
		}
		path := fmt.Sprintf("/review/%s/accept", url.PathEscape(args[0]))
		resp, err := client.post(cmd.Context(), path, body)
		if err != nil {
			return err
		}

		var result struct {
			FileID     string `json:"fileId"`
			CategoryID string `json:"categoryId"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Accepted %s into %s", result.FileID, result.CategoryID)
		return nil
	},
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject <fileID>",
	Short: "Reject a review item and leave the file unassigned",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/review/%s/reject", url.PathEscape(args[0]))
		resp, err := client.post(cmd.Context(), path, nil)
		if err != nil {
			return err
		}

		var result struct {
			FileID string `json:"fileId"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Rejected %s", result.FileID)
		return nil
	},
}

func init() {
	reviewAcceptCmd.Flags().String("category", "", "category to assign instead of the suggestion")
	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewAcceptCmd)
	reviewCmd.AddCommand(reviewRejectCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
