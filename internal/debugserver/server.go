// Package debugserver exposes a read-only HTTP introspection endpoint
// over a set of loaded partitions, mirroring the produce/consume HTTP
// server shape of the underlying storage engine without re-implementing
// any write path: the wire protocol proper is out of scope here, only a
// snapshot view for operators.
package debugserver

import (
	"net/http"
	"strconv"

	"github.com/flowlog/partitionstore/internal/partition"
	"github.com/gorilla/mux"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Registry is the set of partitions this server can snapshot, keyed by
// (stream, topic, partition) triple.
type Registry interface {
	Lookup(streamID, topicID, partitionID uint32) (*partition.Partition, bool)
}

// MapRegistry is a static, in-process Registry implementation.
type MapRegistry map[[3]uint32]*partition.Partition

func (m MapRegistry) Lookup(streamID, topicID, partitionID uint32) (*partition.Partition, bool) {
	p, ok := m[[3]uint32{streamID, topicID, partitionID}]
	return p, ok
}

type Server struct {
	Registry Registry
}

func New(addr string, reg Registry) *http.Server {
	s := &Server{Registry: reg}
	r := mux.NewRouter()
	r.HandleFunc("/partitions/{stream}/{topic}/{partition}", s.handleSnapshot).Methods(http.MethodGet)
	return &http.Server{
		Addr:    addr,
		Handler: r,
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	streamID, topicID, partitionID, err := parseTriple(vars)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, ok := s.Registry.Lookup(streamID, topicID, partitionID)
	if !ok {
		http.Error(w, "partition not found", http.StatusNotFound)
		return
	}

	snapshot, err := buildSnapshot(p)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	body, err := protojson.Marshal(snapshot)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func parseTriple(vars map[string]string) (stream, topic, partitionID uint32, err error) {
	s, err := strconv.ParseUint(vars["stream"], 10, 32)
	if err != nil {
		return 0, 0, 0, err
	}
	t, err := strconv.ParseUint(vars["topic"], 10, 32)
	if err != nil {
		return 0, 0, 0, err
	}
	p, err := strconv.ParseUint(vars["partition"], 10, 32)
	if err != nil {
		return 0, 0, 0, err
	}
	return uint32(s), uint32(t), uint32(p), nil
}

// buildSnapshot renders p's current in-memory state as a structpb.Struct:
// current offset, and one entry per segment (start offset, end offset,
// size, whether it is closed).
func buildSnapshot(p *partition.Partition) (*structpb.Struct, error) {
	segments := make([]interface{}, 0, len(p.Segments))
	for _, seg := range p.Segments {
		segments = append(segments, map[string]interface{}{
			"start_offset":   float64(seg.StartOffset),
			"current_offset": float64(seg.CurrentOffset),
			"end_offset":     float64(seg.EndOffset),
			"size_bytes":     float64(seg.SizeBytes),
			"is_closed":      seg.IsClosed,
		})
	}

	return structpb.NewStruct(map[string]interface{}{
		"stream_id":      float64(p.StreamID),
		"topic_id":       float64(p.TopicID),
		"partition_id":   float64(p.PartitionID),
		"current_offset": float64(p.CurrentOffset),
		"segments":       segments,
	})
}
