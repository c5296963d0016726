package main

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/rawgate/rawgate/internal/cliprompt"
	"github.com/rawgate/rawgate/pkg/httpcodec"
)

var (
	rmTimeout time.Duration
	rmForce   bool
)

var rmCmd = &cobra.Command{
	Use:   "rm <gateway-addr> <chunk-id>",
	Short: "Issue a manual DELETE against a running gateway",
	Args:  cobra.ExactArgs(2),
	RunE:  runRm,
}

func init() {
	rmCmd.Flags().DurationVar(&rmTimeout, "timeout", 10*time.Second, "connection and read deadline")
	rmCmd.Flags().BoolVarP(&rmForce, "force", "f", false, "skip the confirmation prompt")
}

func runRm(cmd *cobra.Command, args []string) error {
	addr, chunkID := args[0], args[1]

	ok, err := cliprompt.ConfirmWithForce(fmt.Sprintf("delete chunk %s from %s", chunkID, addr), rmForce)
	if err != nil {
		if cliprompt.IsAborted(err) {
			fmt.Println("aborted")
			return nil
		}
		return err
	}
	if !ok {
		fmt.Println("aborted")
		return nil
	}

	conn, err := net.DialTimeout("tcp", addr, rmTimeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(rmTimeout))

	w := httpcodec.NewWriter(conn, 0, nil)
	if err := w.WriteRequestLine("DELETE", "/"+chunkID); err != nil {
		return err
	}
	if err := w.WriteHeadersDone(); err != nil {
		return err
	}
	if err := w.Finish(); err != nil {
		return err
	}

	r := httpcodec.NewReader(conn)
	sl, err := r.ReadStartLine(false)
	if err != nil {
		return err
	}
	if err := r.ReadHeaders(); err != nil {
		return err
	}
	for r.State() != httpcodec.Done {
		if _, err := r.ReadBody(); err != nil {
			return err
		}
	}

	fmt.Printf("chunk %s: status %d %s\n", chunkID, sl.Code, sl.Reason)
	return nil
}
