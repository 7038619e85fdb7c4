// Package checkpoint persists how far each source has been harvested.
//
// A checkpoint is a single cursor per source. FileStore keeps it in
// <dir>/<source>.checkpoint.json and replaces the file atomically, so a
// crash leaves either the old or the new cursor on disk, never a mix.
//
// Cursors only move forward: Advance refuses a value that is not greater
// than the stored one. Only Reset, an explicit operator action, moves a
// source back to the beginning.
//
//	store, err := checkpoint.NewFileStore(cfg.Output.StateDirectory, log)
//	cursor, err := store.Load(ctx, "KAFKA")
//	// ... write the page at cursor ...
//	err = store.Advance(ctx, "KAFKA", cursor+len(items))
package checkpoint
