//go:build !darwin

package scanner

import (
	"io/fs"
	"time"
)

// Birth time is not exposed portably here; modification time stands in.
func birthTime(info fs.FileInfo) time.Time {
	return info.ModTime()
}
