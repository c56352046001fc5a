// Package tlv implements the host's TLV8 encoding.
//
// A record is a type byte, a length byte and up to 255 value bytes. Longer
// values are split into consecutive fragments of the same type; a fragment
// of exactly 255 bytes followed by a record of the same type continues the
// value. Records of the same type that form a list are separated by an empty
// record of type 0.
//
// Integers are little-endian with the width (1, 2, 4 or 8 bytes) implied by
// the record length. Values nest: a record value may itself be a TLV8 blob.
package tlv
