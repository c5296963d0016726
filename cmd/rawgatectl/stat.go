package main

import (
	"crypto/md5"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/rawgate/rawgate/pkg/httpcodec"
)

var statTimeout time.Duration

var statCmd = &cobra.Command{
	Use:   "stat <gateway-addr> <chunk-id>",
	Short: "Issue a manual GET against a running gateway and report size and checksum",
	Args:  cobra.ExactArgs(2),
	RunE:  runStat,
}

func init() {
	statCmd.Flags().DurationVar(&statTimeout, "timeout", 10*time.Second, "connection and read deadline")
}

func runStat(cmd *cobra.Command, args []string) error {
	addr, chunkID := args[0], args[1]

	conn, err := net.DialTimeout("tcp", addr, statTimeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(statTimeout))

	w := httpcodec.NewWriter(conn, 0, nil)
	if err := w.WriteRequestLine("GET", "/"+chunkID); err != nil {
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
	if sl.Code != 200 {
		fmt.Printf("chunk %s: status %d %s\n", chunkID, sl.Code, sl.Reason)
		return nil
	}

	hasher := md5.New()
	var bytes int64
	for r.State() != httpcodec.Done {
		buf, err := r.ReadBody()
		if err != nil {
			return err
		}
		if len(buf) == 0 {
			continue
		}
		bytes += int64(len(buf))
		hasher.Write(buf)
	}

	fmt.Printf("chunk %s: %d bytes, md5 %x\n", chunkID, bytes, hasher.Sum(nil))
	return nil
}
