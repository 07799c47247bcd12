package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// sourcesFile is the part of a dbt properties file that declares sources.
type sourcesFile struct {
	Sources []sourceDef `yaml:"sources"`
}

type sourceDef struct {
	Name   string     `yaml:"name"`
	Tables []tableDef `yaml:"tables"`
}

type tableDef struct {
	Name       string      `yaml:"name"`
	Identifier string      `yaml:"identifier"`
	Columns    []columnDef `yaml:"columns"`
}

type columnDef struct {
	Name string `yaml:"name"`
}

// LoadSources reads every YAML file under dir and returns the source tables
// that declare columns. Each table is returned twice, under its own name
// and qualified by its source. Files that do not parse are logged and
// skipped. A missing dir yields no tables.
func LoadSources(dir string, logger *slog.Logger) ([]Table, error) {
	paths, err := filesWithExt(dir, ".yml", ".yaml")
	if err != nil {
		return nil, err
	}

	var tables []Table
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("reading sources file", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		var f sourcesFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			logger.Warn("parsing sources file", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		tables = append(tables, sourceTables(f, path)...)
	}
	return tables, nil
}

func sourceTables(f sourcesFile, path string) []Table {
	var tables []Table
	for _, src := range f.Sources {
		for _, t := range src.Tables {
			if len(t.Columns) == 0 {
				continue
			}
			name := t.Name
			if t.Identifier != "" {
				name = t.Identifier
			}
			if name == "" {
				continue
			}

			cols := make([]string, 0, len(t.Columns))
			for _, c := range t.Columns {
				if c.Name != "" {
					cols = append(cols, c.Name)
				}
			}

			tables = append(tables, Table{Name: name, Columns: cols, Origin: OriginSource, Path: path})
			if src.Name != "" {
				tables = append(tables, Table{Name: src.Name + "." + name, Columns: cols, Origin: OriginSource, Path: path})
			}
		}
	}
	return tables
}

// LoadSeeds returns one table per CSV file under dir, named after the file
// stem, with the header row as its columns. A missing dir yields no tables.
func LoadSeeds(dir string, logger *slog.Logger) ([]Table, error) {
	paths, err := filesWithExt(dir, ".csv")
	if err != nil {
		return nil, err
	}

	var tables []Table
	for _, path := range paths {
		cols, err := readHeader(path)
		if err != nil {
			logger.Warn("reading seed header", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		tables = append(tables, Table{Name: name, Columns: cols, Origin: OriginSeed, Path: path})
	}
	return tables, nil
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty seed file")
	}
	if err != nil {
		return nil, err
	}

	cols := make([]string, 0, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		cols = append(cols, h)
	}
	return cols, nil
}

// filesWithExt returns the files under dir with one of exts, sorted.
func filesWithExt(dir string, exts ...string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		for _, want := range exts {
			if ext == want {
				paths = append(paths, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
