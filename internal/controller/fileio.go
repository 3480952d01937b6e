package controller

import "os"

// writeFileAtomic writes data to a temp file alongside path then renames
// it into place, so a concurrent reader never observes a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".partial"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
