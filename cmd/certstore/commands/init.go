package commands

import (
	"fmt"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/pkg/config"
	"github.com/certforge/certstore/pkg/controlplane/api"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Write a starter configuration with freshly generated token and upload
URL secrets. The file goes to --config, or to
$XDG_CONFIG_HOME/certstore/config.yaml.`,
	Example: `  certstore init
  certstore init --config /etc/certstore/config.yaml --force`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
}

var nextSteps = template.Must(template.New("init").Parse(`Configuration file created at: {{.Path}}

Next steps:
  1. Point storage.public_base_url and storage.bucket at your deployment
  2. certstore start --config {{.Path}}
  3. certstore token --config {{.Path}} --user <name>

The generated secrets are stored in the file. In production, pass the
token secret through the environment instead:
  export {{.SecretEnv}}=$(openssl rand -hex 32)
`))

func runInit(cmd *cobra.Command, _ []string) error {
	path := GetConfigFile()
	var err error
	if path == "" {
		path, err = config.InitConfig(initForce)
	} else {
		err = config.InitConfigToPath(path, initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	return nextSteps.Execute(cmd.OutOrStdout(), map[string]string{
		"Path":      path,
		"SecretEnv": api.EnvAuthSecret,
	})
}
