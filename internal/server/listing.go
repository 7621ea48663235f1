package server

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kcenon/ftscore/internal/checksum"
	"github.com/kcenon/ftscore/internal/ftserrors"
	"github.com/kcenon/ftscore/internal/protocol"
)

// ListDirectory scans dir for regular files, hashes each one, and
// returns them as FileMetadata sorted per field/order. Prefix, when
// non-empty, restricts results to filenames starting with it.
func ListDirectory(dir string, field protocol.ListSortField, order protocol.ListSortOrder, prefix string) ([]protocol.FileMetadata, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindFileAccessDenied, "read storage directory", err)
	}

	files := make([]protocol.FileMetadata, 0, len(entries))
	for _, de := range entries {
		if de.IsDir() || strings.HasSuffix(de.Name(), ".tmp") || strings.HasPrefix(de.Name(), ".tmp_") {
			continue
		}
		if prefix != "" && !strings.HasPrefix(de.Name(), prefix) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}

		sum, err := checksum.SHA256File(filepath.Join(dir, de.Name()))
		if err != nil {
			continue
		}

		files = append(files, protocol.FileMetadata{
			Filename:   de.Name(),
			Size:       uint64(info.Size()),
			SHA256:     fmt.Sprintf("%x", sum),
			ModifiedAt: info.ModTime().Unix(),
		})
	}

	sortFileMetadata(files, field, order)
	return files, nil
}

func sortFileMetadata(files []protocol.FileMetadata, field protocol.ListSortField, order protocol.ListSortOrder) {
	less := func(i, j int) bool {
		switch field {
		case protocol.SortBySize:
			return files[i].Size < files[j].Size
		case protocol.SortByModifiedAt:
			return files[i].ModifiedAt < files[j].ModifiedAt
		default:
			return files[i].Filename < files[j].Filename
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		if order == protocol.SortDescending {
			return less(j, i)
		}
		return less(i, j)
	})
}
