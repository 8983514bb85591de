package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"filecat/internal/filecat"

	"github.com/spf13/cobra"
)

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Record new files in the watch directory and categorize them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		a, err := newApp(ctx, "scan")
		if err != nil {
			return err
		}
		defer a.Close()

		job, err := a.Refresh(ctx)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		printJob(job)
		return nil
	},
}

// categorize command
var categorizeCmd = &cobra.Command{
	Use:   "categorize",
	Short: "Classify uncategorized files",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		a, err := newApp(ctx, "categorize")
		if err != nil {
			return err
		}
		defer a.Close()

		job, err := a.Categorize(ctx, force)
		if err != nil {
			return fmt.Errorf("categorize failed: %w", err)
		}
		printJob(job)
		return nil
	},
}

// move command
var moveCmd = &cobra.Command{
	Use:   "move ID:CATEGORY...",
	Short: "Move files into category folders",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stop, _ := cmd.Flags().GetBool("stop-on-error")
		validate, _ := cmd.Flags().GetBool("validate")
		createDirs, _ := cmd.Flags().GetBool("create-dirs")

		items, err := parseMoveItems(args)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		a, err := newApp(ctx, "move")
		if err != nil {
			return err
		}
		defer a.Close()

		job, err := a.Move(ctx, filecat.MoveRequest{
			Items:              items,
			ContinueOnError:    !stop,
			ValidateCategories: validate,
			CreateDirectories:  createDirs,
		})
		if err != nil {
			return fmt.Errorf("move failed: %w", err)
		}
		printJob(job)
		return nil
	},
}

// parseMoveItems parses "ID:CATEGORY" arguments. The category may itself
// contain colons; only the first one separates.
func parseMoveItems(args []string) ([]filecat.MoveItem, error) {
	items := make([]filecat.MoveItem, 0, len(args))
	for _, arg := range args {
		idPart, category, ok := strings.Cut(arg, ":")
		if !ok || category == "" {
			return nil, fmt.Errorf("invalid move %q: want ID:CATEGORY", arg)
		}
		id, err := strconv.ParseInt(idPart, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid file id in %q", arg)
		}
		items = append(items, filecat.MoveItem{FileID: id, Category: category})
	}
	return items, nil
}

// train command
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a new model on every categorized file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		a, err := newApp(ctx, "train")
		if err != nil {
			return err
		}
		defer a.Close()

		job, err := a.Train(ctx)
		if err != nil {
			return fmt.Errorf("train failed: %w", err)
		}
		printJob(job)
		return nil
	},
}

// files command
var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List recorded files",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("filter")
		filter, err := parseFilter(name)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "files")
		if err != nil {
			return err
		}
		defer a.Close()

		files, err := a.Service().ListFiles(cmd.Context(), filter)
		if err != nil {
			return err
		}

		if len(files) == 0 {
			fmt.Println("No files recorded.")
			return nil
		}

		for _, f := range files {
			category := f.Category
			if category == "" {
				category = "-"
			}
			flags := ""
			if f.IsNew {
				flags += "N"
			}
			if f.ExcludeFromMove {
				flags += "X"
			}
			fmt.Printf("%6d  %-2s  %-16s  %s\n", f.ID, flags, category, f.Path)
		}
		return nil
	},
}

func parseFilter(name string) (filecat.FileFilter, error) {
	switch name {
	case "all", "":
		return filecat.FilterAll, nil
	case "categorized":
		return filecat.FilterCategorized, nil
	case "uncategorized":
		return filecat.FilterToCategorize, nil
	default:
		return 0, fmt.Errorf("unknown filter %q", name)
	}
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View finished job history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "history")
		if err != nil {
			return err
		}
		defer a.Close()

		jobs, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if len(jobs) == 0 {
			fmt.Println("No jobs recorded.")
			return nil
		}

		for _, j := range jobs {
			fmt.Println(historyLine(j))
		}
		return nil
	},
}

func historyLine(j *filecat.BatchJob) string {
	duration := ""
	if j.StartedAt != nil && j.FinishedAt != nil {
		duration = j.FinishedAt.Sub(*j.StartedAt).Truncate(time.Millisecond).String()
	}
	return fmt.Sprintf("%s  %-16s  %s  %-15s  %d/%d  %s",
		j.ID[:min(8, len(j.ID))],
		j.Kind,
		j.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		j.Status,
		j.Processed,
		j.Total,
		duration,
	)
}

func printJob(j *filecat.BatchJob) {
	fmt.Printf("%s %s: %d processed, %d failed, %d skipped of %d\n",
		j.Kind, j.Status, j.Processed, j.Failed, j.Skipped, j.Total)
	if j.Note != "" {
		fmt.Printf("  %s\n", j.Note)
	}
	for _, e := range j.Errors {
		fmt.Printf("  %s: %s\n", e.Item, e.Message)
	}
}
