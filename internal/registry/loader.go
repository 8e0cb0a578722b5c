package registry

import (
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
)

// filenamePattern matches catalog files of the form
//
//	{YYYYMMDD_HHMMSS}_{name}.up.sql
//	{YYYYMMDD_HHMMSS}_{name}.down.sql
var filenamePattern = regexp.MustCompile( //nolint:gochecknoglobals // compiled once, used by LoadFS
	`^(\d{8}_\d{6})_(.+)\.(up|down)\.sql$`,
)

// Load returns the compiled-in migration catalog in ascending version
// order. The result is a pure function of the embedded files; it fails
// only on a build-time invariant violation (duplicate version, orphan
// down file).
func Load() ([]Definition, error) {
	return LoadFS(catalogFS, "sql")
}

// LoadFS reads a migration catalog from dir inside fsys. Exposed
// separately from Load so tests can supply an fstest.MapFS.
func LoadFS(fsys fs.FS, dir string) ([]Definition, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migration catalog %s: %w", dir, err)
	}

	grouped, err := groupEntries(entries)
	if err != nil {
		return nil, err
	}

	defs, err := buildDefinitions(fsys, dir, grouped)
	if err != nil {
		return nil, err
	}

	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Version < defs[j].Version
	})

	return defs, nil
}

// catalogFile pairs the up and down filenames for one version.
type catalogFile struct {
	version  string
	name     string
	upFile   string
	downFile string
}

// groupEntries pairs catalog entries by version, rejecting two
// definitions that share one.
func groupEntries(entries []fs.DirEntry) (map[string]*catalogFile, error) {
	grouped := make(map[string]*catalogFile)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		matches := filenamePattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			return nil, fmt.Errorf("%w: %s", ErrBadFilename, entry.Name())
		}

		version, name, direction := matches[1], matches[2], matches[3]

		cf, ok := grouped[version]
		if !ok {
			cf = &catalogFile{version: version, name: name}
			grouped[version] = cf
		}

		if cf.name != name {
			return nil, fmt.Errorf("%w: version %s used by %q and %q",
				ErrDuplicateVersion, version, cf.name, name)
		}

		if direction == "up" {
			cf.upFile = entry.Name()
		} else {
			cf.downFile = entry.Name()
		}
	}

	return grouped, nil
}

// buildDefinitions reads SQL bodies and constructs Definition values.
func buildDefinitions(fsys fs.FS, dir string, grouped map[string]*catalogFile) ([]Definition, error) {
	defs := make([]Definition, 0, len(grouped))

	for _, cf := range grouped {
		if cf.upFile == "" {
			return nil, fmt.Errorf("%w: %s has a down file but no up file", ErrOrphanDown, cf.version)
		}

		upData, err := fs.ReadFile(fsys, dir+"/"+cf.upFile)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", cf.upFile, err)
		}

		upSQL := strings.TrimSpace(string(upData))

		var downSQL string

		if cf.downFile != "" {
			downData, err := fs.ReadFile(fsys, dir+"/"+cf.downFile)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", cf.downFile, err)
			}

			downSQL = strings.TrimSpace(string(downData))
		}

		defs = append(defs, Definition{
			Version:     cf.version,
			Name:        cf.name,
			Description: strings.ReplaceAll(cf.name, "_", " "),
			UpSQL:       upSQL,
			DownSQL:     downSQL,
			Checksum:    Checksum(upSQL),
		})
	}

	return defs, nil
}
