// Package writer turns validated records into warehouse writes.
//
// Writers:
//   - Quote writer (CSV load job into the quotes table)
//   - Stream writer (Storage Write API pending stream, batch commit)
//   - Fixed-income writer (staging table, MERGE instruments, INSERT daily values)
//
// Quote and daily-value writes are append-only. Instrument rows are upserted
// keyed on a fingerprint of "<ticker>|byma".
package writer
