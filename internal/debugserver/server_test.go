package debugserver_test

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/flowlog/partitionstore/internal/config"
	"github.com/flowlog/partitionstore/internal/counters"
	"github.com/flowlog/partitionstore/internal/debugserver"
	"github.com/flowlog/partitionstore/internal/partition"
	"github.com/flowlog/partitionstore/internal/persister"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

func TestSnapshotEndpointReturnsPartitionState(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "streams", "1", "topics", "2", "partitions"), 0o755))
	p := persister.New(config.FsyncNone, 0, nil)
	part := partition.New(1, 2, 3, root, config.Default(), p, counters.New(), partition.NewMapDeduplicator(), nil)
	require.NoError(t, part.Save())

	reg := debugserver.MapRegistry{
		{1, 2, 3}: part,
	}
	srv := debugserver.New(":0", reg)

	req := httptest.NewRequest("GET", "/partitions/1/2/3", nil)
	req = mux.SetURLVars(req, map[string]string{"stream": "1", "topic": "2", "partition": "3"})
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "stream_id")
	require.Contains(t, rec.Body.String(), "segments")
}

func TestSnapshotEndpointNotFound(t *testing.T) {
	reg := debugserver.MapRegistry{}
	srv := debugserver.New(":0", reg)

	req := httptest.NewRequest("GET", "/partitions/9/9/9", nil)
	req = mux.SetURLVars(req, map[string]string{"stream": "9", "topic": "9", "partition": "9"})
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	require.Equal(t, 404, rec.Code)
}
