package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bnema/senderwatch/internal/domain"
)

func newStatusCmd(configPath *string) *cobra.Command {
	var sender string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show current dashboard status for monitored senders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := wireApp(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			records, err := app.gateway.FetchBatch(ctx)
			if err != nil {
				return fmt.Errorf("fetch batch: %w", err)
			}
			app.store.Update(records, true)

			if sender != "" {
				record, ok := app.store.LookupBySender(sender)
				if !ok {
					return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, sender)
				}
				printRecord(cmd, record)
				return nil
			}

			entries, err := app.directory.Load(ctx)
			if err != nil {
				return fmt.Errorf("load monitored entries: %w", err)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no senders under monitoring")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SENDER\tID\tLAST KNOWN\tCURRENT\tAVAILABLE\tTAKEN")
			for _, entry := range entries {
				current := "-"
				available := "-"
				taken := "-"
				if record, ok := app.store.LookupByID(entry.ID); ok {
					current = domain.NormalizeStatus(record.Status)
					available = domain.CompactAmount(record.Available)
					taken = domain.CompactAmount(record.Taken)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					entry.Sender, entry.ID,
					domain.NormalizeStatus(entry.LastKnownStatus), current,
					available, taken)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if app.exportStore != nil {
				pending, retry, failed, err := app.exportStore.Counts()
				if err == nil && pending+retry+failed > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "\nexport queue: %d pending, %d retrying, %d failed\n", pending, retry, failed)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sender, "sender", "", "Look up a single sender by email")

	return cmd
}

func printRecord(cmd *cobra.Command, record domain.AccountRecord) {
	out := cmd.OutOrStdout()
	status := domain.NormalizeStatus(record.Status)

	fmt.Fprintf(out, "Sender:    %s\n", record.Sender)
	fmt.Fprintf(out, "ID:        %s\n", record.ID)
	fmt.Fprintf(out, "Status:    %s (%s)\n", status, domain.ClassifyStatus(status))
	if note := domain.AttentionNote(status); note != "" {
		fmt.Fprintf(out, "Note:      %s\n", note)
	}
	fmt.Fprintf(out, "Available: %s\n", domain.CompactAmount(record.Available))
	fmt.Fprintf(out, "Taken:     %s\n", domain.CompactAmount(record.Taken))
	if record.Group != "" {
		fmt.Fprintf(out, "Group:     %s\n", record.Group)
	}
	if strings.TrimSpace(record.LastUpdate) != "" {
		fmt.Fprintf(out, "Updated:   %s\n", record.LastUpdate)
	}
}
