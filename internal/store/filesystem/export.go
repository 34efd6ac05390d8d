package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Exporter writes plaintext export files. It implements app.ExportSink.
type Exporter struct{}

// WriteFile writes data to dir/name with owner-only permissions, replacing
// an existing file of the same name. name must be a bare file name.
func (Exporter) WriteFile(dir, name string, data []byte) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("export: invalid file name %q", name)
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return ioErr("mkdir", err)
	}
	tmp, err := writeTemp(dir, name, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmp)
		return ioErr("rename", err)
	}
	return nil
}
