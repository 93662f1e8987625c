package ddp

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// LoadFolder reads a DDP directory into RawFiles. Descriptor-sized files are
// read; audio streams and anything above MaxDescriptorSize are listed with
// their size only. Subdirectories and dot files are ignored.
func LoadFolder(fsys afero.Fs, dir string) ([]RawFile, error) {
	infos, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read folder %s: %w", dir, err)
	}

	files := make([]RawFile, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() || strings.HasPrefix(info.Name(), ".") {
			continue
		}

		f := RawFile{Name: info.Name(), Size: info.Size()}
		if info.Size() <= MaxDescriptorSize && !hasAudioExtension(strings.ToUpper(info.Name())) {
			data, err := afero.ReadFile(fsys, filepath.Join(dir, info.Name()))
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", info.Name(), err)
			}
			f.Bytes = data
		}
		files = append(files, f)
	}
	return files, nil
}
