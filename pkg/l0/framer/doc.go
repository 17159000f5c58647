// Package framer provides the TM/TC frame receiver.
//
// A frame receiver turns the byte stream of a serial link into
// checksum-verified frames:
//
//	+------+-------+------------+-----+-----------------+-----+
//	| 0x5A | route | size - 1   | hcs | payload ...     | dcs |
//	+------+-------+------------+-----+-----------------+-----+
//	 \_________ header (4) _________/   4..256 bytes
//
// hcs is the XOR of the first three header bytes and dcs the XOR of the
// payload. The route byte is opaque to the receiver.
//
// Decoding runs in steps: search for the sync byte, collect the header and
// check it, collect the payload and check it. Any failed check drops the
// sync byte only and the search restarts on the next byte, so a frame
// starting inside a corrupted one is still found. A valid frame stays in
// the byte source until it is copied out or flushed.
//
// All operations of a Bank are expected to run on a single goroutine,
// usually the one of the periodic loop. The byte sources are the only
// state shared with the receive path.
package framer
