// Package completion provides the "completion" command shared by certstore
// and certstorectl.
package completion

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// Shells lists the supported shells.
var Shells = []string{"bash", "zsh", "fish", "powershell"}

const longHelp = `Generate the shell completion script for {{name}}.

Bash:
  $ {{name}} completion bash > /etc/bash_completion.d/{{name}}

Zsh (enable completion once with "autoload -U compinit; compinit"):
  $ {{name}} completion zsh > "${fpath[1]}/_{{name}}"

Fish:
  $ {{name}} completion fish > ~/.config/fish/completions/{{name}}.fish

PowerShell:
  PS> {{name}} completion powershell | Out-String | Invoke-Expression
`

// NewCommand returns a completion command for the binary called name. The
// script is written to the command's output.
func NewCommand(name string) *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [" + strings.Join(Shells, "|") + "]",
		Short:                 "Generate shell completion script",
		Long:                  strings.ReplaceAll(longHelp, "{{name}}", name),
		DisableFlagsInUseLine: true,
		ValidArgs:             Shells,
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			root := cmd.Root()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(out, true)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(out)
			}
			return fmt.Errorf("unsupported shell %q", args[0])
		},
	}
}
