package completion

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoot() (*cobra.Command, *bytes.Buffer) {
	root := &cobra.Command{Use: "certstore"}
	root.AddCommand(&cobra.Command{Use: "start", Run: func(*cobra.Command, []string) {}})
	root.AddCommand(NewCommand("certstore"))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	return root, &out
}

func TestCompletionScripts(t *testing.T) {
	for _, shell := range Shells {
		t.Run(shell, func(t *testing.T) {
			root, out := newRoot()
			root.SetArgs([]string{"completion", shell})
			require.NoError(t, root.Execute())
			assert.Contains(t, out.String(), "certstore")
		})
	}
}

func TestCompletionRejectsUnknownShell(t *testing.T) {
	root, _ := newRoot()
	root.SetArgs([]string{"completion", "tcsh"})
	assert.Error(t, root.Execute())

	root, _ = newRoot()
	root.SetArgs([]string{"completion"})
	assert.Error(t, root.Execute())
}

func TestCompletionHelpNamesBinary(t *testing.T) {
	cmd := NewCommand("certstorectl")
	assert.Contains(t, cmd.Long, "certstorectl completion bash")
	assert.NotContains(t, cmd.Long, "{{name}}")
}
