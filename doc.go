// Package codepush implements the file-system plumbing used to stage
// over-the-air application updates: safe extraction of downloaded
// update packages (ZIP containers), creation of packages from a
// directory tree, and the small set of file and manifest helpers the
// update flow needs around them.
//
// Extraction is deliberately conservative: entry paths are validated
// against the destination root before anything is written ("zip slip"),
// the first substantive failure aborts the pass and is the error the
// caller sees, and cosmetic failures (restoring modification times,
// releasing spool files) are logged rather than surfaced.
package codepush
