package dupes

import "github.com/sadopc/diskaudit/internal/model"

// DuplicateGroup is a set of files sharing one full-content digest.
type DuplicateGroup struct {
	Hash        model.ContentHash
	Size        uint64
	Paths       []string
	WastedBytes uint64
}

// DuplicateReport is the total result of one duplicate-detection pass.
type DuplicateReport struct {
	Groups              []DuplicateGroup
	TotalDuplicateSize  uint64
	TotalWastedSpace    uint64
	FilesAnalyzed       int
	FilesWithDuplicates int
	GroupCount          int
	Warnings            []model.ScanWarning
}
