// Package storage persists harvested records.
//
// Manager writes one newline-delimited JSON file per source. Each line is a
// complete record, so the log can be read and resumed line by line.
//
// Append is all-or-nothing: new records are encoded into one buffer,
// written with a single call and synced; if anything fails the file is cut
// back to its previous length. Records whose issue key is already in the
// log are skipped, which makes re-appending a page after a crash harmless.
//
// When a log is first opened its keys are loaded into memory and a torn
// final line (a crash between write and sync) is removed.
//
//	sink, err := storage.NewManager(cfg.Output.Directory, log)
//	res, err := sink.Append(ctx, "KAFKA", records)
//	fmt.Println(res.Written, res.Duplicates)
//
// RejectLog keeps rejected items in a separate file for inspection.
package storage
