// Package kineticblob implements the three-phase Upload/Download/Removal
// transactions over a set of Kinetic drives, striping a chunk into fixed
// size blocks addressed by the manifest key layout of spec.md §3:
// "C-<drive>-<size>" per block plus "C-#" for the xattr manifest.
package kineticblob

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rawgate/rawgate/pkg/kinetic/client"
	"github.com/rawgate/rawgate/pkg/kinetic/wire"
	"github.com/rawgate/rawgate/pkg/status"
)

// DefaultBlockSize is the default striping block size, per spec.md §4.7.
const DefaultBlockSize = 1 << 20 // 1 MiB

// DefaultDeleteParallelism is the rolling-window width for parallel
// Delete during abort/removal, per spec.md §4.7.
const DefaultDeleteParallelism = 8

// DefaultDownloadParallelism is the sliding-window width for concurrent
// Get during Download.read, per spec.md §4.7 ("parallel_factor").
const DefaultDownloadParallelism = 4

// Target is one Kinetic drive participating in a chunk's target set.
type Target struct {
	Drive *client.Connection
}

// ManifestEntry is the JSON object stored at key "<chunk_id>-#".
type ManifestEntry struct {
	Bytes  int64             `json:"bytes"`
	MD5    string            `json:"md5"`
	Xattrs map[string]string `json:"xattrs,omitempty"`
}

func manifestKey(chunkID string) string { return chunkID + "-#" }

func blockKey(chunkID string, driveIndex int, size int) string {
	return fmt.Sprintf("%s-%d-%d", chunkID, driveIndex, size)
}

// parseBlockKey parses "<chunk_id>-<drive>-<size>", returning ok=false
// for the manifest key or any malformed key — both are skipped during
// listing per spec.md §4.7.
func parseBlockKey(chunkID, key string) (driveIndex int, size int, ok bool) {
	prefix := chunkID + "-"
	if !strings.HasPrefix(key, prefix) {
		return 0, 0, false
	}
	rest := key[len(prefix):]
	if rest == "#" {
		return 0, 0, false
	}
	parts := strings.SplitN(rest, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	idx, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	sz, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return idx, sz, true
}

func doPut(conn *client.Connection, key string, value []byte, deadline int64) *client.Sync {
	ex := &client.Exchange{
		Command: &wire.Command{
			Header: &wire.Header{MessageType: wire.MessageType_PUT, TimeoutMillis: deadline},
			Body:   &wire.Body{KeyValue: &wire.KeyValue{Key: []byte(key)}},
		},
		Value: value,
	}
	return conn.RPC(ex)
}

func doDelete(conn *client.Connection, key string) *client.Sync {
	ex := &client.Exchange{
		Command: &wire.Command{
			Header: &wire.Header{MessageType: wire.MessageType_DELETE},
			Body:   &wire.Body{KeyValue: &wire.KeyValue{Key: []byte(key)}},
		},
	}
	return conn.RPC(ex)
}

func doGet(conn *client.Connection, key string) *client.Sync {
	ex := &client.Exchange{
		Command: &wire.Command{
			Header: &wire.Header{MessageType: wire.MessageType_GET},
			Body:   &wire.Body{KeyValue: &wire.KeyValue{Key: []byte(key)}},
		},
	}
	return conn.RPC(ex)
}

func doGetKeyRange(conn *client.Connection, start, end []byte, max int32) *client.Sync {
	ex := &client.Exchange{
		Command: &wire.Command{
			Header: &wire.Header{MessageType: wire.MessageType_GETKEYRANGE},
			Body: &wire.Body{Range: &wire.Range{
				StartKey: start, EndKey: end,
				StartKeyInclusive: true, EndKeyInclusive: true,
				MaxReturned: max,
			}},
		},
	}
	return conn.RPC(ex)
}

func replyOK(reply *wire.Command) bool {
	return reply != nil && reply.Status != nil && reply.Status.Code == wire.StatusCode_SUCCESS
}

func manifestJSON(m ManifestEntry) ([]byte, error) { return json.Marshal(m) }

func parseManifestJSON(data []byte) (ManifestEntry, error) {
	var m ManifestEntry
	err := json.Unmarshal(data, &m)
	return m, err
}

// wrapNetworkError converts a Wait() failure into the uniform Status
// taxonomy. A reset or timeout is a NetworkError; anything else reported
// by the drive itself as a non-success status is also a NetworkError
// since drives don't distinguish finer causes in this profile.
func wrapNetworkError(cause error) *status.Status {
	return status.Wrap(status.NetworkError, status.CodeInternal, "kinetic rpc failed", cause)
}
