// Package tagcodec implements the EPC Gen-2 tag format family used by the
// Feig RFID bridge: bit/byte utilities, the six-bit ASCII and URN Code40
// payload codecs, the per-format tag layouts (DE290, CD290, DE290F, DE386,
// DE6, BR, and the Raw fallback), header-based format discrimination, and
// the access/kill password derivation for each format.
package tagcodec
