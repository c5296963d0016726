package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadBytesLocalBackend(t *testing.T) {
	doc, err := LoadBytes([]byte(`{
		"repository": {"backend": "local", "local": {"docroot": "/var/lib/rawgate"}},
		"service": {"bind": "127.0.0.1:6000"}
	}`))
	require.NoError(t, err)
	require.Equal(t, BackendLocal, doc.Repository.Backend)
	require.Equal(t, "/var/lib/rawgate", doc.Repository.Local.DocRoot)
	require.Equal(t, "X-oio-chunk-meta-", doc.Service.XattrPrefix)
	require.Equal(t, "INFO", doc.Service.Logging.Level)
	require.Equal(t, 1, doc.Service.GOMAXPROCS)
}

func TestLoadBytesRejectsMissingVariant(t *testing.T) {
	_, err := LoadBytes([]byte(`{
		"repository": {"backend": "rawx"},
		"service": {"bind": "127.0.0.1:6000"}
	}`))
	require.Error(t, err)
}

func TestLoadBytesRejectsUnknownBackend(t *testing.T) {
	_, err := LoadBytes([]byte(`{
		"repository": {"backend": "nfs"},
		"service": {"bind": "127.0.0.1:6000"}
	}`))
	require.Error(t, err)
}

func TestLoadBytesRejectsMissingBind(t *testing.T) {
	_, err := LoadBytes([]byte(`{
		"repository": {"backend": "local", "local": {"docroot": "/tmp"}},
		"service": {}
	}`))
	require.Error(t, err)
}

func TestLoadBytesKineticECRequiresShards(t *testing.T) {
	_, err := LoadBytes([]byte(`{
		"repository": {
			"backend": "kinetic",
			"kinetic": {
				"targets": [{"addr": "10.0.0.1:8123"}],
				"mode": "ec"
			}
		},
		"service": {"bind": "127.0.0.1:6000"}
	}`))
	require.Error(t, err)
}

func TestLoadBytesKineticECValid(t *testing.T) {
	doc, err := LoadBytes([]byte(`{
		"repository": {
			"backend": "kinetic",
			"kinetic": {
				"targets": [{"addr": "10.0.0.1:8123"}, {"addr": "10.0.0.2:8123"}],
				"mode": "ec",
				"ec": {"data_shards": 4, "parity_shards": 2}
			}
		},
		"service": {"bind": "127.0.0.1:6000"}
	}`))
	require.NoError(t, err)
	require.Equal(t, ModeEC, doc.Repository.Kinetic.Mode)
	require.Equal(t, 4, doc.Repository.Kinetic.EC.DataShards)
}

func TestLoadBytesKineticBlockSizeHumanReadable(t *testing.T) {
	doc, err := LoadBytes([]byte(`{
		"repository": {
			"backend": "kinetic",
			"kinetic": {
				"targets": [{"addr": "10.0.0.1:8123"}],
				"block_size": "2Mi"
			}
		},
		"service": {"bind": "127.0.0.1:6000"}
	}`))
	require.NoError(t, err)
	require.Equal(t, int64(2*1024*1024), doc.Repository.Kinetic.BlockSize.Int64())
}

func TestLoadBytesRejectsEmptyKineticTargets(t *testing.T) {
	_, err := LoadBytes([]byte(`{
		"repository": {"backend": "kinetic", "kinetic": {"targets": []}},
		"service": {"bind": "127.0.0.1:6000"}
	}`))
	require.Error(t, err)
}
