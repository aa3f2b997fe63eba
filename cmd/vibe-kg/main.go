// Package main provides the vibe-kg command-line tool.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const configName = ".vibe-kg.yaml"

// app carries what every command needs.
type app struct {
	logger  *zap.Logger
	stdout  io.Writer
	stderr  io.Writer
	cfgFile string
	verbose bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.Execute()
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	return ExitSuccess
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "vibe-kg",
		Short: "Variant ingestion into a property graph",
		Long: `vibe-kg streams VCF files into a property graph of Variant and Germplasm
nodes joined by HAS_VARIANT genotype edges. Writes are batched and idempotent,
so re-running an ingestion leaves the graph unchanged.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(a.cfgFile); err != nil {
				return err
			}
			if a.logger == nil {
				l, err := newLogger(a.verbose)
				if err != nil {
					return fmt.Errorf("creating logger: %w", err)
				}
				a.logger = l
			}
			return nil
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Config file (default: ~/"+configName+")")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging")
	pf.String("store", "memory", "Graph store: memory, duckdb, neo4j")
	pf.String("duckdb-path", defaultDuckDBPath, "DuckDB database file")
	pf.String("neo4j-uri", "neo4j://localhost:7687", "Neo4j connection URI")
	pf.String("neo4j-user", "neo4j", "Neo4j user")
	pf.String("neo4j-password", "", "Neo4j password")
	pf.String("neo4j-database", "", "Neo4j database (default: server default)")
	bindFlags(pf, map[string]string{
		"store.driver":      "store",
		"store.duckdb_path": "duckdb-path",
		"neo4j.uri":         "neo4j-uri",
		"neo4j.user":        "neo4j-user",
		"neo4j.password":    "neo4j-password",
		"neo4j.database":    "neo4j-database",
	})

	root.AddCommand(newIngestCmd(a))
	root.AddCommand(newSchemaCmd(a))
	root.AddCommand(newClassifyCmd(a))
	root.AddCommand(newRunsCmd(a))
	root.AddCommand(newConfigCmd(a))
	return root
}

// initConfig loads the config file and environment into viper. A missing
// default config file is not an error.
func initConfig(cfgFile string) error {
	setDefaults()
	viper.SetEnvPrefix("VIBEKG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		cfgFile = filepath.Join(home, configName)
		if _, err := os.Stat(cfgFile); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}
	viper.SetConfigFile(cfgFile)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading config %s: %w", cfgFile, err)
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
