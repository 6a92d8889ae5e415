package utils

import (
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// FID get fid from file name
func FID(name string) uint64 {
	name = path.Base(name)
	if !strings.HasSuffix(name, TableFileSuffix) {
		return 0
	}
	name = strings.TrimSuffix(name, TableFileSuffix)
	id, err := strconv.ParseUint(name, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// FileNameTable join the name of a feature table
func FileNameTable(dir string, id uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%05d%s", id, TableFileSuffix))
}
