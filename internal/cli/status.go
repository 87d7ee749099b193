package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/syncbrowse/syncbrowse/internal/api"
	"github.com/syncbrowse/syncbrowse/internal/constants"
	"github.com/syncbrowse/syncbrowse/internal/models"
	"github.com/syncbrowse/syncbrowse/internal/perf"
)

// statusConcurrency bounds parallel status queries.
const statusConcurrency = 4

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of every folder",
		Long: `List every folder with its current state, index sequence and the number
of items it still needs. Folders in a transient state (scanning, syncing,
...) are the ones the browser polls.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := getAPIClient(GetLogger().Named("api"))
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(GetContext(), constants.APIContextTimeout)
			defer cancel()
			return printStatus(ctx, client, cmd.OutOrStdout())
		},
	}
	return cmd
}

func printStatus(ctx context.Context, remote api.Remote, out io.Writer) error {
	folders, err := remote.Folders(ctx)
	if err != nil {
		return fmt.Errorf("failed to list folders: %w", err)
	}

	statuses := make([]models.FolderStatus, len(folders))
	errs := make([]error, len(folders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statusConcurrency)
	for i, f := range folders {
		g.Go(func() error {
			// A failing folder is reported in its row.
			statuses[i], errs[i] = remote.FolderStatus(gctx, f.ID)
			return nil
		})
	}
	_ = g.Wait()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FOLDER\tLABEL\tSTATE\tSEQUENCE\tNEED\tTRANSIENT")
	for i, f := range folders {
		if errs[i] != nil {
			fmt.Fprintf(w, "%s\t%s\terror: %v\t-\t-\t-\n", f.ID, f.Label, errs[i])
			continue
		}
		st := statuses[i]
		state := st.State
		if f.Paused {
			state = "paused"
		}
		transient := "no"
		if perf.IsTransient(st.State) {
			transient = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", f.ID, f.Label, state, st.Sequence, st.NeedTotal(), transient)
	}
	return w.Flush()
}
