// Package main generates markdown reference docs from the dbt-analyzer
// command tree and configuration schema.
//
// Usage:
//
//	go run ./scripts/gendocs -gen=cli -outdir=docs/cli
//	go run ./scripts/gendocs -gen=config -outdir=docs/reference
//	go run ./scripts/gendocs -gen=all
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
)

var (
	genFlag    = flag.String("gen", "all", "what to generate: cli, config, all")
	outDirFlag = flag.String("outdir", "", "output directory (defaults based on gen type)")
)

func main() {
	flag.Parse()

	validGenFlags := map[string]bool{"cli": true, "config": true, "all": true}
	if !validGenFlags[*genFlag] {
		log.Fatalf("unknown -gen value: %s (use: cli, config, all)", *genFlag)
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		log.Fatalf("failed to find project root: %v", err)
	}

	log.Printf("Project root: %s", projectRoot)

	if err := generate(*genFlag, *outDirFlag, projectRoot); err != nil {
		log.Fatal(err)
	}

	log.Println("Done!")
}

// generate writes the requested docs. outDir overrides the default location
// for a single generator.
func generate(gen, outDir, projectRoot string) error {
	dir := func(def string) string {
		if outDir != "" && gen != "all" {
			return outDir
		}
		return filepath.Join(projectRoot, "docs", def)
	}

	if gen == "cli" || gen == "all" {
		if err := generateCLIDocs(dir("cli")); err != nil {
			return err
		}
	}
	if gen == "config" || gen == "all" {
		if err := generateConfigDocs(dir("reference")); err != nil {
			return err
		}
	}
	return nil
}

// findProjectRoot walks up from current directory to find go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
