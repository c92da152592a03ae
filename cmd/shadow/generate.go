package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var generateCmd = &cobra.Command{
	Use:   "generate [packages]",
	Short: "Generate component registration tables",
	Long: `Generate writes a registration file into every package that declares
components (e.g. ./... or ./components/...).

Type doc comments may carry directives:

  //shadow:tag todo-item
  //shadow:attrs index done
  //shadow:css https://cdn.example.com/todo.css
  //shadow:timeout 2000`,
	Example: `  shadow generate ./...
  shadow generate --dry-run ./components/...
  shadow generate --watch ./...`,
	RunE: runGenerate,
}

var cleanCmd = &cobra.Command{
	Use:   "clean [packages]",
	Short: "Remove generated registration files",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return newGenerator(dryRun).Clean(patterns(args)...)
	},
}

func init() {
	generateCmd.Flags().Bool("dry-run", false, "show what would be generated without writing files")
	generateCmd.Flags().BoolP("watch", "w", false, "regenerate when sources change")
	generateCmd.Flags().String("output", "", "generated file name")
	generateCmd.Flags().String("func", "", "generated function name")
	_ = viper.BindPFlag("dry_run", generateCmd.Flags().Lookup("dry-run"))
	_ = viper.BindPFlag("watch", generateCmd.Flags().Lookup("watch"))
	bindIfSet("output", generateCmd)
	bindIfSet("func", generateCmd)

	cleanCmd.Flags().Bool("dry-run", false, "show what would be removed without deleting files")
}

// bindIfSet binds a flag to a viper key only when the user sets it, so an
// empty default never masks the config file.
func bindIfSet(name string, cmd *cobra.Command) {
	prev := cmd.PreRunE
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			viper.Set(name, f.Value.String())
		}
		if prev != nil {
			return prev(cmd, args)
		}
		return nil
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	gen := newGenerator(viper.GetBool("dry_run"))
	pats := patterns(args)
	if err := gen.Generate(pats...); err != nil {
		return err
	}
	if !viper.GetBool("watch") {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return watch(ctx, gen, pats, logger())
}
