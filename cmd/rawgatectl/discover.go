package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/rawgate/rawgate/pkg/kinetic/discovery"
)

var discoverTimeout time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Listen for Kinetic drive announcements and print what answers",
	RunE:  runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 5*time.Second, "how long to listen before printing results")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	reg := discovery.NewRegistry()
	listener, err := discovery.Listen(discovery.MulticastAddr, nil, reg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), discoverTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- listener.Serve(ctx) }()
	<-ctx.Done()
	_ = listener.Close()
	<-done

	drives := reg.Drives()
	if len(drives) == 0 {
		fmt.Println("no drives answered")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"WWN", "Address", "Last Seen"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	for _, d := range drives {
		table.Append([]string{d.WorldWideName, d.Addr, d.LastSeen.Format(time.RFC3339)})
	}
	table.Render()
	return nil
}
