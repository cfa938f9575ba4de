// Package pageio fetches the storage pages that cover a byte range of the
// dataset file.
//
// Two strategies implement Fetcher:
//
//   - DirectFetcher reads each covering page with its own positioned read into
//     a worker-private, page-aligned Pool. Each page is one I/O operation.
//   - MappedFetcher slices a shared read-only mapping of the file. No read
//     call is issued; pages are still counted, and with residency tracking
//     enabled the pages missing from the page cache are reported as I/O.
//
// A Fetcher belongs to one worker and is not safe for concurrent use.
package pageio
