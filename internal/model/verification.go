package model

import "time"

type VerificationDetails struct {
	FileAccessible bool `json:"file_accessible"`
	ValidJSON      bool `json:"valid_json"`
	StructureValid bool `json:"structure_valid"`
	TablesMatch    bool `json:"tables_match"`
	RowCountsMatch bool `json:"row_counts_match"`
	ChecksumValid  bool `json:"checksum_valid"`
}

// Passed reports whether every check succeeded.
func (d VerificationDetails) Passed() bool {
	return d.FileAccessible && d.ValidJSON && d.StructureValid &&
		d.TablesMatch && d.RowCountsMatch && d.ChecksumValid
}

type VerificationReport struct {
	Verified      bool                `json:"verified"`
	VerifiedAt    time.Time           `json:"verified_at"`
	Details       VerificationDetails `json:"details"`
	Errors        []string            `json:"errors"`
	ContentDigest string              `json:"content_digest,omitempty"`
	SizeBytes     int64               `json:"size_bytes,omitempty"`
}
