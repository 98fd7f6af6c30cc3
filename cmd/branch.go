package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/huangsam/stablelint/core"
	"github.com/huangsam/stablelint/internal/contract"
	"github.com/huangsam/stablelint/schema"
	"github.com/spf13/cobra"
)

// branchCmd focused on server branch resolution.
var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "Resolve the server branch matching the checkout",
	Long: `Elect, among the server branches given with --branches, the one closest to the
checked-out commit. The distance is the number of commits between HEAD and the branch
through their merge-base. Ties go to --main-branch, then to the smallest name.

Subcommands:
  resolve - Elect the branch once and print it
  watch   - Re-elect whenever refs change and print every change

Examples:
  stablelint branch resolve --branches main,develop,release-1.2
  STABLELINT_BRANCHES=main,develop stablelint branch watch`,
}

// branchResolveCmd elects the server branch once.
var branchResolveCmd = &cobra.Command{
	Use:     "resolve",
	Short:   "Elect the server branch closest to HEAD",
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		err := withEngine(func(engine *core.Engine) error {
			result, err := engine.ResolveBranch(rootCtx)
			if err != nil {
				return err
			}
			return writer.WriteBranches([]schema.BranchResult{result}, cfg)
		})
		if err != nil {
			contract.LogFatal("Cannot resolve branch", err)
		}
	},
}

// branchWatchCmd keeps the election current until interrupted.
var branchWatchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Re-elect the server branch whenever refs change",
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		err := withEngine(func(engine *core.Engine) error {
			return engine.WatchBranch(ctx, func(module, branch string) {
				if branch == "" {
					fmt.Printf("%s: %s\n", module, contract.MinorColor.Sprint("no match"))
					return
				}
				fmt.Printf("%s: %s\n", module, branch)
			})
		})
		if err != nil {
			contract.LogFatal("Cannot watch branch", err)
		}
	},
}
