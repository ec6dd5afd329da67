package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/internal/app"
	"github.com/agentdeck/agentdeck/internal/indexer"
	"github.com/agentdeck/agentdeck/internal/overrides"
)

// sessionsCmd runs a one-shot scan and prints the session index.
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Scan provider homes once and list discovered sessions",
	RunE:  runSessions,
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(cfg)

	providers := app.BuildProviders(cfg)
	if len(providers) == 0 {
		return fmt.Errorf("no providers enabled")
	}

	// One-shot scan: no watcher, no binding authority, no persistence.
	index := indexer.New(providers, nil, overrides.NewStore(cfg.Overrides.Path), nil, indexer.Options{})
	if err := index.Start(context.Background()); err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	defer index.Stop()

	projects := index.GetProjects()
	if len(projects) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROJECT\tPROVIDER\tSESSION\tUPDATED\tMESSAGES\tTITLE")
	total := 0
	for _, project := range projects {
		for _, session := range project.Sessions {
			updated := time.UnixMilli(session.UpdatedAt).Format("2006-01-02 15:04")
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				project.Path,
				session.Key.Provider,
				session.Key.ID,
				updated,
				session.MessageCount,
				session.Title,
			)
			total++
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d sessions in %d projects\n", total, len(projects))
	return nil
}
