package context

import (
	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
	"github.com/certforge/certstore/internal/cli/credentials"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved contexts",
	Args:    cobra.NoArgs,
	RunE:    withStore(runList),
}

// ContextInfo is one context for display. Tokens are never printed.
type ContextInfo struct {
	Name      string `json:"name" yaml:"name"`
	Current   bool   `json:"current" yaml:"current"`
	ServerURL string `json:"server_url" yaml:"server_url"`
	Subject   string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Role      string `json:"role,omitempty" yaml:"role,omitempty"`
	LoggedIn  bool   `json:"logged_in" yaml:"logged_in"`
	ExpiresAt string `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// ContextList is a list of contexts for table rendering.
type ContextList []ContextInfo

// Headers implements TableRenderer.
func (l ContextList) Headers() []string {
	return []string{"CURRENT", "NAME", "SERVER", "SUBJECT", "ROLE", "EXPIRES"}
}

// Rows implements TableRenderer.
func (l ContextList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, c := range l {
		current := ""
		if c.Current {
			current = "*"
		}
		rows = append(rows, []string{
			current,
			c.Name,
			c.ServerURL,
			cmdutil.EmptyOr(c.Subject, "-"),
			cmdutil.EmptyOr(c.Role, "-"),
			cmdutil.EmptyOr(c.ExpiresAt, "-"),
		})
	}
	return rows
}

func runList(store *credentials.Store, _ []string) error {
	current := store.GetCurrentContextName()
	list := ContextList{}
	for _, name := range store.ListContexts() {
		ctx, err := store.GetContext(name)
		if err != nil {
			continue
		}
		list = append(list, describe(name, ctx, name == current))
	}

	return cmdutil.PrintOutput(list, len(list) == 0, "No contexts configured. Run 'certstorectl login' first.", list)
}

func (c ContextInfo) pairs() [][2]string {
	return [][2]string{
		{"Name", c.Name},
		{"Server", c.ServerURL},
		{"Subject", cmdutil.EmptyOr(c.Subject, "-")},
		{"Role", cmdutil.EmptyOr(c.Role, "-")},
		{"Logged in", cmdutil.BoolToYesNo(c.LoggedIn)},
		{"Expires", cmdutil.EmptyOr(c.ExpiresAt, "-")},
	}
}

func describe(name string, ctx *credentials.Context, current bool) ContextInfo {
	info := ContextInfo{
		Name:      name,
		Current:   current,
		ServerURL: ctx.ServerURL,
		Subject:   ctx.Subject,
		Role:      ctx.Role,
		LoggedIn:  ctx.HasToken(),
	}
	if !ctx.ExpiresAt.IsZero() {
		info.ExpiresAt = cmdutil.FormatTime(ctx.ExpiresAt)
	}
	return info
}
