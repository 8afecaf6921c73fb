package partition

// PartitionState is the load descriptor an external SystemState
// collaborator supplies for one partition before Load runs. Everything
// else about partition state is recovered from disk.
type PartitionState struct {
	CreatedAt int64 // epoch milliseconds
}
