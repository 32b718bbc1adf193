// Package layout centralizes the pipeline's file-path conventions,
// replacing the original research code's process-wide working-directory
// changes with explicit, pure functions: directories are configuration
// data threaded through the stages, never shared mutable state.
package layout

import (
	"fmt"
	"path/filepath"
)

// yearOf extracts the 4-digit year from a MMDDYY date string.
func yearOf(date string) string {
	if len(date) != 6 {
		return "20" + date
	}
	return "20" + date[4:6]
}

// dayDir returns "<root>/<year>/<MMDDYY>".
func dayDir(root, date string) string {
	return filepath.Join(root, yearOf(date), date)
}

// compressionExt maps a config.Config.Compression value to the file
// extension bytestream.Open uses to pick a decompressor; anything other
// than "zstd" falls back to gzip, the pipeline's default.
func compressionExt(compression string) string {
	if compression == "zstd" {
		return ".zst"
	}
	return ".gz"
}

// BinaryFile returns the path of the raw daily feed:
// <root>/binary_data/<year>/<MMDDYY>/S<MMDDYY>-v50.txt<ext>, where ext is chosen
// by compression ("gzip" or "zstd", see config.Config.Compression).
func BinaryFile(root, date, compression string) string {
	file := fmt.Sprintf("S%s-v50.txt%s", date, compressionExt(compression))
	return filepath.Join(dayDir(filepath.Join(root, "binary_data"), date), file)
}

// GroupedDir returns the directory stage-1 writes per-ticker files into
// for one day: <root>/grouped_data/<year>/<MMDDYY>/
func GroupedDir(root, date string) string {
	return dayDir(filepath.Join(root, "grouped_data"), date)
}

// GroupedCSV returns the stage-1 output path for one ticker:
// <root>/grouped_data/<year>/<MMDDYY>/OrderGroups_<MMDDYY>_<TICKER>.csv.gz
func GroupedCSV(root, date, ticker string) string {
	file := fmt.Sprintf("OrderGroups_%s_%s.csv.gz", date, ticker)
	return filepath.Join(GroupedDir(root, date), file)
}

// TickerFromGroupedFilename extracts TICKER from a filename of the shape
// OrderGroups_<MMDDYY>_<TICKER>.csv.gz for the given date, reporting
// whether name matched that shape.
func TickerFromGroupedFilename(name, date string) (string, bool) {
	prefix := fmt.Sprintf("OrderGroups_%s_", date)
	suffix := ".csv.gz"
	if len(name) <= len(prefix)+len(suffix) || name[:len(prefix)] != prefix || name[len(name)-len(suffix):] != suffix {
		return "", false
	}
	return name[len(prefix) : len(name)-len(suffix)], true
}

// ProcessedCSV returns the stage-2 output path for one ticker:
// <root>/processed_data/<year>/<MMDDYY>/<MMDDYY>_<TICKER>.csv.gz
func ProcessedCSV(root, date, ticker string) string {
	file := fmt.Sprintf("%s_%s.csv.gz", date, ticker)
	return filepath.Join(dayDir(filepath.Join(root, "processed_data"), date), file)
}

// CheckpointDir returns the directory a shard's checkpointer writes to,
// given the checkpoint base directory from config.Config.Checkpoint.Dir
// (e.g. "/data/itch/checkpoints"):
// <checkpointRoot>/<year>/<MMDDYY>/shard-<rank>-of-<count>
func CheckpointDir(checkpointRoot, date string, rank, count int) string {
	return filepath.Join(dayDir(checkpointRoot, date), fmt.Sprintf("shard-%d-of-%d", rank, count))
}
