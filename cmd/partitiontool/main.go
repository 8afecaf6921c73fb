// Command partitiontool loads every partition found under a data root
// directory, prints a load summary for each, and optionally serves a
// read-only debug HTTP endpoint over them.
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/flowlog/partitionstore/internal/config"
	"github.com/flowlog/partitionstore/internal/counters"
	"github.com/flowlog/partitionstore/internal/debugserver"
	"github.com/flowlog/partitionstore/internal/partition"
	"github.com/flowlog/partitionstore/internal/persister"
	"go.uber.org/zap"
)

func main() {
	dataRoot := flag.String("data-root", "", "root directory holding streams/<id>/topics/<id>/partitions/<id>")
	debugAddr := flag.String("debug-addr", "", "if set, serve the read-only snapshot endpoint on this address")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	sugar := log.Sugar()

	if *dataRoot == "" {
		sugar.Fatal("-data-root is required")
	}

	cfg := config.Default()
	if err := config.Validate(cfg); err != nil {
		sugar.Fatalw("invalid configuration", "error", err)
	}

	p := persister.New(cfg.Fsync, cfg.FsyncInterval, sugar)
	root := counters.New()
	dedup := partition.NewMapDeduplicator()

	triples, err := discoverPartitions(*dataRoot)
	if err != nil {
		sugar.Fatalw("could not discover partitions", "error", err)
	}

	registry := make(debugserver.MapRegistry, len(triples))
	for _, triple := range triples {
		part := partition.New(triple[0], triple[1], triple[2], *dataRoot, cfg, p, root, dedup, sugar)
		if err := part.Load(context.Background(), partition.PartitionState{}); err != nil {
			sugar.Warnw("failed to load partition",
				"stream", triple[0], "topic", triple[1], "partition", triple[2], "error", err)
			continue
		}
		sugar.Infow("loaded partition",
			"stream", triple[0], "topic", triple[1], "partition", triple[2],
			"currentOffset", part.CurrentOffset, "segments", len(part.Segments))
		registry[triple] = part
	}

	snapshot := root.Snapshot()
	sugar.Infow("totals", "sizeBytes", snapshot.SizeBytes, "messages", snapshot.MessagesCount, "segments", snapshot.SegmentsCount)

	if *debugAddr == "" {
		return
	}
	srv := debugserver.New(*debugAddr, registry)
	sugar.Infow("serving debug snapshot endpoint", "addr", *debugAddr)
	sugar.Fatal(srv.ListenAndServe())
}

// discoverPartitions walks dataRoot/streams/<id>/topics/<id>/partitions/<id>
// and returns every (streamID, topicID, partitionID) triple found.
func discoverPartitions(dataRoot string) ([][3]uint32, error) {
	streamsDir := filepath.Join(dataRoot, "streams")
	streamEntries, err := os.ReadDir(streamsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var triples [][3]uint32
	for _, streamEntry := range streamEntries {
		streamID, err := parseID(streamEntry.Name())
		if err != nil || !streamEntry.IsDir() {
			continue
		}
		topicsDir := filepath.Join(streamsDir, streamEntry.Name(), "topics")
		topicEntries, err := os.ReadDir(topicsDir)
		if err != nil {
			continue
		}
		for _, topicEntry := range topicEntries {
			topicID, err := parseID(topicEntry.Name())
			if err != nil || !topicEntry.IsDir() {
				continue
			}
			partitionsDir := filepath.Join(topicsDir, topicEntry.Name(), "partitions")
			partitionEntries, err := os.ReadDir(partitionsDir)
			if err != nil {
				continue
			}
			for _, partitionEntry := range partitionEntries {
				partitionID, err := parseID(partitionEntry.Name())
				if err != nil || !partitionEntry.IsDir() {
					continue
				}
				triples = append(triples, [3]uint32{streamID, topicID, partitionID})
			}
		}
	}
	return triples, nil
}

func parseID(name string) (uint32, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(name), 10, 32)
	return uint32(id), err
}
