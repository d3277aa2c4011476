// Package export writes audit records to interchange formats for compliance
// review. JSON and CSV are supported, both as whole-result exports and as
// streaming exports fed from a storage QueryStream.
package export
