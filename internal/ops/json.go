// Package ops implements the file-operations engine (copy, move, rename,
// create, delete with undo) plus the JSON export/import round-trip for a
// scanned Tree.
//
// Export/import is grounded on the teacher's ncdu-format exporter: the
// same atomic temp-file-then-rename write and sticky-first-error writer
// wrapper, retargeted at the JSON object schema this system's external
// CLI actually consumes instead of ncdu's bracket-array format.
package ops

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sadopc/diskaudit/internal/model"
)

type jsonTimestamps struct {
	Modified *string `json:"modified"`
	Accessed *string `json:"accessed"`
	Created  *string `json:"created"`
}

type jsonWarning struct {
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

type jsonPathSize struct {
	Path string `json:"path"`
	Size uint64 `json:"size"`
}

type jsonPathTime struct {
	Path     string `json:"path"`
	Modified string `json:"modified"`
}

type jsonStats struct {
	TotalSize     uint64        `json:"total_size"`
	TotalFiles    uint64        `json:"total_files"`
	TotalDirs     uint64        `json:"total_dirs"`
	TotalSymlinks uint64        `json:"total_symlinks"`
	MaxDepth      int           `json:"max_depth"`
	LargestFile   *jsonPathSize `json:"largest_file,omitempty"`
	OldestFile    *jsonPathTime `json:"oldest_file,omitempty"`
	NewestFile    *jsonPathTime `json:"newest_file,omitempty"`
}

type jsonNode struct {
	ID         uint64          `json:"id"`
	Name       string          `json:"name"`
	Kind       string          `json:"kind"`
	Size       uint64          `json:"size"`
	Blocks     uint64          `json:"blocks"`
	Timestamps jsonTimestamps  `json:"timestamps"`
	Children   []*jsonNode     `json:"children,omitempty"`
}

type jsonTree struct {
	RootPath       string        `json:"root_path"`
	ScanDurationMs int64         `json:"scan_duration_ms"`
	Stats          jsonStats     `json:"stats"`
	Warnings       []jsonWarning `json:"warnings"`
	Root           *jsonNode     `json:"root"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

func toJSONNode(n *model.Node) *jsonNode {
	jn := &jsonNode{
		ID:     uint64(n.ID),
		Name:   n.Name,
		Kind:   n.Kind.String(),
		Size:   n.Size,
		Blocks: n.Blocks,
		Timestamps: jsonTimestamps{
			Modified: formatTime(n.Timestamps.Modified),
			Accessed: formatTime(n.Timestamps.Accessed),
			Created:  formatTime(n.Timestamps.Created),
		},
	}
	if len(n.Children) > 0 {
		jn.Children = make([]*jsonNode, len(n.Children))
		for i, c := range n.Children {
			jn.Children[i] = toJSONNode(c)
		}
	}
	return jn
}

func toJSONTree(tree *model.Tree) *jsonTree {
	jt := &jsonTree{
		RootPath:       tree.RootPath,
		ScanDurationMs: tree.ScanDuration.Milliseconds(),
		Stats: jsonStats{
			TotalSize:     tree.Stats.TotalSize,
			TotalFiles:    tree.Stats.TotalFiles,
			TotalDirs:     tree.Stats.TotalDirs,
			TotalSymlinks: tree.Stats.TotalSymlinks,
			MaxDepth:      tree.Stats.MaxDepth,
		},
		Root: toJSONNode(tree.Root),
	}
	if tree.Stats.LargestFile != nil {
		jt.Stats.LargestFile = &jsonPathSize{Path: tree.Stats.LargestFile.Path, Size: tree.Stats.LargestFile.Size}
	}
	if tree.Stats.OldestFile != nil {
		jt.Stats.OldestFile = &jsonPathTime{Path: tree.Stats.OldestFile.Path, Modified: tree.Stats.OldestFile.Modified.UTC().Format(time.RFC3339Nano)}
	}
	if tree.Stats.NewestFile != nil {
		jt.Stats.NewestFile = &jsonPathTime{Path: tree.Stats.NewestFile.Path, Modified: tree.Stats.NewestFile.Modified.UTC().Format(time.RFC3339Nano)}
	}
	for _, w := range tree.Warnings {
		jt.Warnings = append(jt.Warnings, jsonWarning{Kind: w.Kind.String(), Path: w.Path, Message: w.Message})
	}
	return jt
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) Write(data []byte) (int, error) {
	if ew.err != nil {
		return 0, ew.err
	}
	n, err := ew.w.Write(data)
	if err != nil {
		ew.err = err
	}
	return n, err
}

// ExportJSON serializes tree to the schema consumed by the external CLI.
// Writing to a real file path is atomic: the tree is written to a temp
// file alongside the destination, then renamed into place, so a
// partially-written file is never left behind on error.
func ExportJSON(tree *model.Tree, path string) (retErr error) {
	if path == "-" {
		return exportToWriter(tree, os.Stdout)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".diskaudit-export-*.tmp")
	if err != nil {
		return fmt.Errorf("cannot create export file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if retErr != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := exportToWriter(tree, tmp); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		if runtime.GOOS != "windows" {
			return err
		}
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return fmt.Errorf("cannot replace export file %s: %w", path, err)
		}
		if err := os.Rename(tmpPath, path); err != nil {
			return err
		}
	}
	return nil
}

func exportToWriter(tree *model.Tree, out io.Writer) error {
	bw := bufio.NewWriterSize(out, 64*1024)
	ew := &errWriter{w: bw}

	enc := json.NewEncoder(ew)
	if err := enc.Encode(toJSONTree(tree)); err != nil {
		if ew.err != nil {
			return ew.err
		}
		return err
	}
	if ew.err != nil {
		return ew.err
	}
	return bw.Flush()
}

// ImportJSON reads a previously exported tree back into a model.Tree.
func ImportJSON(path string) (*model.Tree, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("cannot open import file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var jt jsonTree
	if err := json.NewDecoder(bufio.NewReaderSize(r, 64*1024)).Decode(&jt); err != nil {
		return nil, fmt.Errorf("cannot parse import file: %w", err)
	}

	root := fromJSONNode(jt.Root, nil)

	tree := &model.Tree{
		Root:         root,
		RootPath:     jt.RootPath,
		ScanDuration: time.Duration(jt.ScanDurationMs) * time.Millisecond,
		Stats: model.TreeStats{
			TotalSize:     jt.Stats.TotalSize,
			TotalFiles:    jt.Stats.TotalFiles,
			TotalDirs:     jt.Stats.TotalDirs,
			TotalSymlinks: jt.Stats.TotalSymlinks,
			MaxDepth:      jt.Stats.MaxDepth,
		},
	}
	if jt.Stats.LargestFile != nil {
		tree.Stats.LargestFile = &model.PathSize{Path: jt.Stats.LargestFile.Path, Size: jt.Stats.LargestFile.Size}
	}
	if jt.Stats.OldestFile != nil {
		if t, err := time.Parse(time.RFC3339Nano, jt.Stats.OldestFile.Modified); err == nil {
			tree.Stats.OldestFile = &model.PathTime{Path: jt.Stats.OldestFile.Path, Modified: t}
		}
	}
	if jt.Stats.NewestFile != nil {
		if t, err := time.Parse(time.RFC3339Nano, jt.Stats.NewestFile.Modified); err == nil {
			tree.Stats.NewestFile = &model.PathTime{Path: jt.Stats.NewestFile.Path, Modified: t}
		}
	}
	for _, w := range jt.Warnings {
		tree.Warnings = append(tree.Warnings, model.ScanWarning{Kind: parseWarningKind(w.Kind), Path: w.Path, Message: w.Message})
	}

	return tree, nil
}

func parseTime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil
	}
	return &t
}

func parseKind(s string) model.NodeKind {
	switch s {
	case "dir":
		return model.KindDirectory
	case "symlink":
		return model.KindSymlink
	default:
		return model.KindFile
	}
}

func parseWarningKind(s string) model.WarningKind {
	switch s {
	case "metadata_error":
		return model.WarnMetadataError
	case "broken_symlink":
		return model.WarnBrokenSymlink
	case "permission_denied":
		return model.WarnPermissionDenied
	default:
		return model.WarnReadError
	}
}

func fromJSONNode(jn *jsonNode, parent *model.Node) *model.Node {
	if jn == nil {
		return nil
	}
	n := &model.Node{
		ID:     model.NodeID(jn.ID),
		Name:   jn.Name,
		Kind:   parseKind(jn.Kind),
		Parent: parent,
		Size:   jn.Size,
		Blocks: jn.Blocks,
		Timestamps: model.Timestamps{
			Modified: parseTime(jn.Timestamps.Modified),
			Accessed: parseTime(jn.Timestamps.Accessed),
			Created:  parseTime(jn.Timestamps.Created),
		},
	}
	for _, c := range jn.Children {
		n.Children = append(n.Children, fromJSONNode(c, n))
	}
	return n
}
