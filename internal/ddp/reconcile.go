package ddp

import (
	"fmt"
	"sort"
	"strings"
)

// Reconcile cross-checks the map stream against the files actually supplied.
// It never fails: missing files, size mismatches and unreferenced extras all
// come back as warnings. Names in exempt (DDPID, DDPMS) are not expected to
// appear in the map.
func Reconcile(entries []MapEntry, files []RawFile, exempt ...string) []Warning {
	supplied := make(map[string]RawFile, len(files))
	for _, f := range files {
		supplied[strings.ToUpper(f.Name)] = f
	}
	skip := make(map[string]bool, len(exempt))
	for _, name := range exempt {
		skip[strings.ToUpper(name)] = true
	}

	// expected extent of each referenced file
	type extent struct {
		name string
		refs int
		end  int64
	}
	referenced := make(map[string]*extent)
	var order []string

	for _, e := range entries {
		if e.FileName == "" {
			continue
		}
		key := strings.ToUpper(e.FileName)
		ext, ok := referenced[key]
		if !ok {
			ext = &extent{name: e.FileName}
			referenced[key] = ext
			order = append(order, key)
		}
		ext.refs++
		if end := int64(e.FileOffset) + e.ByteLength; end > ext.end {
			ext.end = end
		}
	}

	var warnings []Warning
	for _, key := range order {
		ext := referenced[key]
		f, ok := supplied[key]
		if !ok {
			warnings = append(warnings, Warning{File: ext.name, Role: RoleMapStream, Offset: -1,
				Message: "referenced by DDPMS but not supplied"})
			continue
		}
		size := f.size()
		if ext.end == 0 || size == 0 {
			continue
		}
		if (ext.refs == 1 && size != ext.end) || (ext.refs > 1 && size < ext.end) {
			warnings = append(warnings, Warning{File: f.Name, Role: RoleMapStream, Offset: -1,
				Message: sizeMismatch(size, ext.end)})
		}
	}

	var extras []string
	for key, f := range supplied {
		if _, ok := referenced[key]; ok || skip[key] {
			continue
		}
		extras = append(extras, f.Name)
	}
	sort.Strings(extras)
	for _, name := range extras {
		warnings = append(warnings, Warning{File: name, Role: RoleMapStream, Offset: -1,
			Message: "not referenced by DDPMS"})
	}

	return warnings
}

func sizeMismatch(got, want int64) string {
	return fmt.Sprintf("size %d bytes, DDPMS expects %d", got, want)
}
