// Package ipf reads and builds IPF game-asset archives.
//
// An archive is a single file holding a data region of per-entry blocks
// (raw or deflate-compressed), a file table describing them, and a fixed
// footer at the very end of the file that locates the table and carries
// revision metadata. The footer is written last, so a partially written
// archive never parses as valid.
//
// Entries are checksummed with CRC-32 over their uncompressed content and
// verified on every read. Paths compare case-insensitively, with the
// stored case preserved.
//
// # Quick Start
//
// Build an archive from a directory:
//
//	err := ipf.CreateFile(ctx, "./assets", "data.ipf",
//	    ipf.CreateWithRevision(7),
//	)
//
// Open and read files:
//
//	a, err := ipf.OpenFile("data.ipf")
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//	content, err := a.ReadFile("addon/a.lua")
//
// Extract everything:
//
//	stats, err := a.ExtractAll(ctx, "./out")
//
// The package implements fs.FS and related interfaces for stdlib
// compatibility.
package ipf
