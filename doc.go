// Package lidisk benchmarks learned-index lookups over disk-resident sorted
// datasets.
//
// A lookup predicts a coarse position range with an index model, refines it
// to item positions, fetches the covering pages with direct I/O or through a
// memory mapping, and resolves the key inside the fetched bytes. Each run
// reports latency, throughput, pages and I/O per lookup, and a checksum over
// every matched key.
//
// # Quick Start
//
//	p := layout.DefaultParams()
//	p.DataDir = "./data"
//	records := workload.Generate(1_000_000, 1<<20, 42)
//
//	b, _ := lidisk.Create(p, records, lidisk.WithWorkers(8), lidisk.WithConsole(os.Stdout))
//	defer b.Close()
//
//	model, _ := b.TrainRMI(rmi.DefaultFanout)
//	lookups, _ := b.Lookups(100_000)
//	row, _ := b.RunLookups(ctx, model, lookups)
//	fmt.Println(row.Throughput, row.AvgPages, row.Correct)
//
// # Layouts
//
// Records are stored fixed-stride (uncompressed) or as delta-compressed
// blocks, either one block per page (aligned) or packed back to back
// (sequential). Compressed layouts carry a block directory sidecar.
//
// # Runs
//
//   - RunLookups: model-driven lookups against storage, on many workers
//   - RunDiskStress: fixed-width intervals around sampled positions, no model
//   - RunMemoryLookups: the same search over the in-memory records, the
//     baseline for the disk runs
//
// Results go to the console, a CSV file, a SQLite table or a Prometheus
// registry through report sinks.
package lidisk
