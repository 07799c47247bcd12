package analyzer

import (
	"github.com/leapstack-labs/dbt-analyzer/internal/config"
	"github.com/leapstack-labs/dbt-analyzer/internal/sqlfluff"
	"github.com/leapstack-labs/dbt-analyzer/pkg/lineage"
)

// Branch labels used when lineage.branch_labels is set.
const (
	LeftBranch  = "left"
	RightBranch = "right"
)

// ConfigOptions translates the lint and lineage sections of a project
// configuration into Analyzer options.
func ConfigOptions(cfg *config.ProjectConfig) []Option {
	if cfg == nil {
		return nil
	}

	var opts []Option
	if cfg.Lint != nil && cfg.Lint.Enabled {
		opts = append(opts, WithLinter(&sqlfluff.Linter{
			Command: cfg.Lint.Command,
			Dialect: cfg.Lint.Dialect,
			Timeout: cfg.Lint.Timeout,
		}))
	}

	if cfg.Lineage != nil {
		var ropts []lineage.Option
		if cfg.Lineage.BranchLabels {
			ropts = append(ropts, lineage.WithBranchLabels(LeftBranch, RightBranch))
		}
		if cfg.Lineage.ExpressionLineage {
			ropts = append(ropts, lineage.WithExpressionLineage())
		}
		opts = append(opts, WithResolver(lineage.NewResolver(ropts...)), WithLineage(cfg.Lineage.Enabled))
	}
	return opts
}
