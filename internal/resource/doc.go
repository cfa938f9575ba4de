// Package resource bounds the memory and read bandwidth a benchmark run may
// consume.
//
//   - Memory: direct-I/O page pools reserve their bytes up front. Reservation
//     is non-blocking and fails fast with ErrMemoryLimitExceeded.
//   - I/O: a token bucket charged per fetched page throttles storage reads,
//     which lets the stress driver probe a device below saturation.
//
// A nil *Controller is valid and imposes no limits.
package resource
