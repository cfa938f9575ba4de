// Package testutil provides fixtures for tests and benchmarks only.
//
// # Keys
//
//	rng := testutil.NewRNG(seed)
//	keys := rng.SortedKeys(100_000, 1<<40) // ascending, may repeat
//	keys = testutil.WithRun(keys, 500, 150)  // 150 copies of keys[500]
//
// # Datasets
//
//	ds := testutil.WriteDataset(t, params, testutil.Records(keys))
//
// WriteDataset writes into t.TempDir() with any of the three layouts.
package testutil
