package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/dbt-analyzer/internal/cli"
	"github.com/leapstack-labs/dbt-analyzer/internal/cli/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// documented lists the subcommands that get a page, in help order.
func documented(root *cobra.Command) []*cobra.Command {
	var cmds []*cobra.Command
	for _, cmd := range root.Commands() {
		if cmd.Hidden || cmd.Name() == "help" || cmd.Name() == "__complete" {
			continue
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

// generateCLIDocs writes an index page and one page per command.
func generateCLIDocs(outDir string) error {
	log.Printf("Generating CLI docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	root := cli.NewRootCmd()

	if err := writePage(outDir, "index.md", cliIndex(root)); err != nil {
		return err
	}
	for _, cmd := range documented(root) {
		if err := writePage(outDir, cmd.Name()+".md", commandPage(cmd)); err != nil {
			return fmt.Errorf("failed to generate page for %s: %w", cmd.Name(), err)
		}
	}
	return nil
}

func writePage(dir, name string, w *MarkdownWriter) error {
	if err := os.WriteFile(filepath.Join(dir, name), w.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	log.Printf("  Generated %s", name)
	return nil
}

func cliIndex(root *cobra.Command) *MarkdownWriter {
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line interface reference for dbt-analyzer")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph(root.Long)

	w.Header(2, "Installation")
	w.CodeBlock("bash", "go install github.com/leapstack-labs/dbt-analyzer/cmd/dbt-analyzer@latest")

	w.Header(2, "Basic Usage")
	w.CodeBlock("bash", root.Name()+" <command> [options]")

	w.Header(2, "Commands")
	var rows [][]string
	for _, cmd := range documented(root) {
		rows = append(rows, []string{
			fmt.Sprintf("[%s](/cli/%s)", InlineCode(cmd.Name()), cmd.Name()),
			cleanDescription(cmd.Short),
		})
	}
	w.Table([]string{"Command", "Description"}, rows)

	w.Header(2, "Global Options")
	w.Paragraph("These flags are available for all commands:")
	flagsTable(w, root.PersistentFlags())

	w.Header(2, "Environment Variables")
	w.Paragraph(fmt.Sprintf("Every config file key can be set with the %s prefix. Nested keys use a double underscore:",
		InlineCode(config.EnvPrefix)))
	env := func(key string) string { return InlineCode(config.EnvPrefix + key) }
	w.Table([]string{"Variable", "Description"}, [][]string{
		{env("MODELS_DIR"), "Models directory"},
		{env("SEEDS_DIR"), "Seeds directory"},
		{env("STATE_PATH"), "SQLite database lineage is exported to"},
		{env("LOG_LEVEL"), "Log level"},
		{env("LINT__ENABLED"), "Run sqlfluff on rendered SQL"},
		{env("LINT__DIALECT"), "sqlfluff dialect"},
	})
	w.Paragraph("Flags override environment variables, which override the config file.")

	w.Header(2, "Exit Codes")
	w.Table([]string{"Code", "Meaning"}, [][]string{
		{InlineCode("0"), "Success"},
		{InlineCode("1"), "Error, or `check` found errors (warnings too under `--strict`)"},
	})

	w.Header(2, "Getting Help")
	w.CodeBlock("bash", fmt.Sprintf("%[1]s --help\n%[1]s check --help", root.Name()))
	return w
}

func commandPage(cmd *cobra.Command) *MarkdownWriter {
	w := NewMarkdownWriter()
	w.Frontmatter(cmd.Name(), cmd.Short)
	w.GeneratedMarker()

	w.Header(1, cmd.Name())
	if cmd.Long != "" {
		w.Paragraph(cmd.Long)
	} else {
		w.Paragraph(cmd.Short)
	}

	w.Header(2, "Usage")
	w.CodeBlock("bash", strings.TrimSuffix(cmd.UseLine(), " [flags]"))

	if len(cmd.Aliases) > 0 {
		w.Header(2, "Aliases")
		aliases := make([]string, len(cmd.Aliases))
		for i, a := range cmd.Aliases {
			aliases[i] = InlineCode(a)
		}
		w.BulletList(aliases)
	}

	if cmd.HasLocalFlags() {
		w.Header(2, "Options")
		flagsTable(w, cmd.LocalFlags())
	}
	if cmd.HasInheritedFlags() {
		w.Header(2, "Global Options")
		flagsTable(w, cmd.InheritedFlags())
	}

	if cmd.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", cleanExample(cmd.Example))
	}
	return w
}

// flagsTable writes one row per visible flag.
func flagsTable(w *MarkdownWriter, flags *pflag.FlagSet) {
	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		short := ""
		if f.Shorthand != "" {
			short = "-" + f.Shorthand
		}
		def := f.DefValue
		if def != "" && f.Value.Type() == "string" {
			def = InlineCode(def)
		}
		rows = append(rows, []string{InlineCode("--" + f.Name), short, def, cleanDescription(f.Usage)})
	})
	w.Table([]string{"Option", "Short", "Default", "Description"}, rows)
}

// cleanExample strips the indentation shared by every non-blank line.
func cleanExample(example string) string {
	lines := strings.Split(example, "\n")

	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}

	if indent <= 0 {
		return strings.TrimSpace(example)
	}
	for i, line := range lines {
		if len(line) >= indent {
			lines[i] = line[indent:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
