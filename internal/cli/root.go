// Package cli provides the command-line interface for sqlassist.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlassist/internal/cli/commands"
	"github.com/leapstack-labs/sqlassist/internal/config"
	"github.com/leapstack-labs/sqlassist/pkg/completion"
	"github.com/leapstack-labs/sqlassist/pkg/dialect"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "sqlassist",
		Short: "sqlassist - SQL name resolution and completion",
		Long: `sqlassist resolves the names of SQL scripts against a metadata catalog
and proposes context-aware completions: tables, columns, aliases, keywords
and join conditions.

It runs as a command-line tool, an interactive REPL or a language server.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger := config.NewLogger(cfg.Log, cmd.ErrOrStderr())
			if cfg.ConfigFile != "" {
				logger.Debug("using config file", "path", cfg.ConfigFile)
			}

			ctx := config.WithConfig(cmd.Context(), cfg)
			ctx = config.WithLogger(ctx, logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	defaults := completion.DefaultSettings()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./"+config.ConfigFileName+")")
	flags.String("dialect", "", "SQL dialect ("+dialectNames()+")")
	flags.String("driver", "", "metadata driver")
	flags.String("dsn", "", "database connection string")
	flags.String("catalog-file", "", "YAML catalog file for the yaml driver")
	flags.String("default-catalog", "", "catalog of unqualified names")
	flags.String("default-schema", "", "schema of unqualified names")
	flags.Bool("watch", false, "reload the catalog file when it changes (lsp)")
	flags.String("log-level", "", "log level (debug|info|warn|error)")
	flags.String("log-format", "", "log format (text|json)")
	flags.StringP("output", "o", "", "output format (auto|text|json)")
	flags.Bool("search-inside-words", defaults.SearchInsideWords, "match typed text anywhere in a name")
	flags.Bool("case-sensitive", defaults.CaseSensitive, "match typed text case-sensitively")
	flags.Bool("search-globally", defaults.SearchGlobally, "propose tables from every schema")
	flags.Int("max-items", defaults.MaxItems, "maximum proposals per completion set (0 for no limit)")
	flags.Bool("propose-joins", defaults.ProposeJoins, "propose join conditions from foreign keys")
	flags.String("qualify-columns", defaults.QualifyColumns, "qualify proposed columns (auto|always|never)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", fixedCompletions(config.OutputAuto, config.OutputText, config.OutputJSON))
	_ = rootCmd.RegisterFlagCompletionFunc("driver", fixedCompletions(config.Drivers()...))
	_ = rootCmd.RegisterFlagCompletionFunc("dialect", fixedCompletions(dialect.List()...))
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", fixedCompletions("debug", "info", "warn", "error"))
	_ = rootCmd.RegisterFlagCompletionFunc("qualify-columns",
		fixedCompletions(completion.QualifyAuto, completion.QualifyAlways, completion.QualifyNever))

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewCompleteCommand())
	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewCatalogCommand())
	rootCmd.AddCommand(commands.NewREPLCommand())
	rootCmd.AddCommand(commands.NewLSPCommand(Version))
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

func fixedCompletions(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}

func dialectNames() string {
	return strings.Join(dialect.List(), "|")
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for sqlassist.

To load completions:

Bash:
  $ source <(sqlassist completion bash)

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  $ sqlassist completion zsh > "${fpath[1]}/_sqlassist"

Fish:
  $ sqlassist completion fish | source

PowerShell:
  PS> sqlassist completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
