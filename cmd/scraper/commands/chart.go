package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qepting91/reddit-export/internal/dashboard"
	"github.com/qepting91/reddit-export/internal/storage"
)

var (
	chartInput string
	chartOut   string
	chartServe string
)

func init() {
	chartCmd.Flags().StringVar(&chartInput, "input", "", "Export file to chart.")
	chartCmd.Flags().StringVar(&chartOut, "out", "", "HTML file to write (default: next to the input).")
	chartCmd.Flags().StringVar(&chartServe, "serve", "", "Serve the chart on this port instead of writing a file.")
	chartCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(chartCmd)
}

var chartCmd = &cobra.Command{
	Use:   "chart --input <export> [--out page.html | --serve 8080]",
	Short: "Charts an export: activity per day, subreddits and top authors.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if chartServe != "" {
			port := strings.TrimPrefix(chartServe, ":")
			slog.InfoContext(cmd.Context(), "Starting Dashboard", "port", port, "file", chartInput)
			return dashboard.StartServer(chartInput, port)
		}

		ds, err := storage.Load(chartInput)
		if err != nil {
			return err
		}
		out := chartOut
		if out == "" {
			out = strings.TrimSuffix(chartInput, filepath.Ext(chartInput)) + ".html"
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := dashboard.Render(f, ds); err != nil {
			f.Close()
			return fmt.Errorf("render %s: %w", out, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		slog.InfoContext(cmd.Context(), "Chart written", "file", out, "records", ds.Len())
		return nil
	},
}
