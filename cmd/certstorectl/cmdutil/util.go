// Package cmdutil provides shared utilities for certstorectl commands.
package cmdutil

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/certforge/certstore/internal/cli/credentials"
	"github.com/certforge/certstore/internal/cli/output"
	"github.com/certforge/certstore/internal/cli/prompt"
	"github.com/certforge/certstore/internal/cli/timeutil"
	"github.com/certforge/certstore/pkg/apiclient"
	"github.com/certforge/certstore/pkg/storage"
)

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	ServerURL string
	Token     string
	Output    string
	NoColor   bool
	Verbose   bool
}

// Out is where command results are written. Tests replace it.
var Out io.Writer = os.Stdout

// UserAgent identifies certstorectl to the server.
var UserAgent = "certstorectl"

// NewClient returns an API client for serverURL authenticated with token.
func NewClient(serverURL, token string) *apiclient.Client {
	return apiclient.New(serverURL, apiclient.WithUserAgent(UserAgent)).WithToken(token)
}

// OpenContexts opens the saved server contexts.
func OpenContexts() (*credentials.Store, error) {
	store, err := credentials.NewStore()
	if err != nil {
		return nil, fmt.Errorf("cannot open saved contexts: %w", err)
	}
	return store, nil
}

// GetAuthenticatedClient returns an API client for the current context.
// --server and --token override the stored values. A context without a token
// is allowed for servers running with authentication disabled.
func GetAuthenticatedClient() (*apiclient.Client, error) {
	if Flags.ServerURL != "" && Flags.Token != "" {
		return NewClient(Flags.ServerURL, Flags.Token), nil
	}

	store, err := OpenContexts()
	if err != nil {
		return nil, err
	}

	url := Flags.ServerURL
	tok := Flags.Token
	if ctx, err := store.GetCurrentContext(); err == nil {
		if url == "" {
			url = ctx.ServerURL
		}
		if tok == "" {
			if ctx.HasToken() && ctx.IsExpired() {
				return nil, fmt.Errorf("token expired at %s. Run 'certstorectl login' with a new token",
					timeutil.FormatLocal(ctx.ExpiresAt))
			}
			tok = ctx.Token
		}
	}

	if url == "" {
		return nil, credentials.ErrNotLoggedIn
	}
	return NewClient(url, tok), nil
}

// GetOutputFormatParsed returns the parsed output format.
func GetOutputFormatParsed() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// IsVerbose returns whether verbose output is enabled.
func IsVerbose() bool {
	return Flags.Verbose
}

func printer() (*output.Printer, error) {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(Out, format, !Flags.NoColor), nil
}

// PrintOutput prints data in the selected format. In table format, emptyMsg
// replaces an empty table.
func PrintOutput(data any, isEmpty bool, emptyMsg string, table output.TableRenderer) error {
	p, err := printer()
	if err != nil {
		return err
	}
	if p.Format() == output.FormatTable && isEmpty {
		_, _ = fmt.Fprintln(Out, emptyMsg)
		return nil
	}
	return p.Print(data, table)
}

// PrintResource prints one resource; tables render as key/value pairs.
func PrintResource(data any, pairs [][2]string) error {
	p, err := printer()
	if err != nil {
		return err
	}
	if p.Format() == output.FormatTable {
		return output.PrintPairs(Out, pairs)
	}
	return p.Print(data, nil)
}

// PrintSuccess prints a success message if the output format is table.
func PrintSuccess(msg string) {
	p, err := printer()
	if err != nil || p.Format() != output.FormatTable {
		return
	}
	p.Success(msg)
}

// PrintMutation prints the result of a single-item mutation.
func PrintMutation(res *storage.MutationResult) error {
	p, err := printer()
	if err != nil {
		return err
	}
	if p.Format() != output.FormatTable {
		return p.Print(res, nil)
	}
	p.Success(res.Message)
	if res.Item != nil && IsVerbose() {
		return output.PrintPairs(Out, ItemPairs(res.Item))
	}
	return nil
}

// PrintBulk prints a batch result. It returns an error when any item
// failed so scripts see a non-zero exit status.
func PrintBulk(verb string, res *storage.BulkOperationResult) error {
	p, err := printer()
	if err != nil {
		return err
	}
	if p.Format() != output.FormatTable {
		if err := p.Print(res, nil); err != nil {
			return err
		}
	} else {
		if res.SuccessCount > 0 {
			p.Success(fmt.Sprintf("%s %d of %d item(s)", verb, res.SuccessCount, res.Total()))
		}
		for _, w := range res.Warnings {
			p.Warning(fmt.Sprintf("%s: %s", w.Path, w.Message))
		}
		if res.FailureCount > 0 {
			p.Warning(fmt.Sprintf("%d item(s) could not be %s:", res.FailureCount, strings.ToLower(verb)))
			_ = output.PrintTable(Out, BulkErrorList(res.Errors))
		}
	}
	if res.FailureCount > 0 {
		return fmt.Errorf("%d of %d item(s) failed", res.FailureCount, res.Total())
	}
	return nil
}

// RunWithConfirmation prompts for confirmation (unless force is true) and
// runs fn. Declining is not an error.
func RunWithConfirmation(label string, force bool, fn func() error) error {
	confirmed, err := prompt.ConfirmWithForce(label, force)
	if err != nil {
		return HandleAbort(err)
	}
	if !confirmed {
		_, _ = fmt.Fprintln(Out, "Aborted.")
		return nil
	}
	return fn()
}

// ItemList renders storage items as a table.
type ItemList []storage.StorageItem

// Headers implements TableRenderer.
func (l ItemList) Headers() []string {
	return []string{"NAME", "KIND", "SIZE", "MODIFIED", "SOURCE", "PROTECTED"}
}

// Rows implements TableRenderer.
func (l ItemList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, it := range l {
		name := it.Name
		if it.IsDir() {
			name += "/"
		}
		size := "-"
		if !it.IsDir() {
			size = timeutil.FormatSize(it.Size)
		} else if it.TotalSize != nil {
			size = timeutil.FormatSize(*it.TotalSize)
		}
		rows = append(rows, []string{
			name,
			string(it.Kind),
			size,
			FormatTime(it.LastModified),
			Source(it.IsFromBucket),
			BoolToYesNo(it.IsProtected),
		})
	}
	return rows
}

// BulkErrorList renders the failed items of a batch.
type BulkErrorList []storage.BulkError

// Headers implements TableRenderer.
func (l BulkErrorList) Headers() []string {
	return []string{"FAILED PATH", "REASON", "MESSAGE"}
}

// Rows implements TableRenderer.
func (l BulkErrorList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, e := range l {
		rows = append(rows, []string{e.Path, e.Kind.String(), e.Message})
	}
	return rows
}

// ItemPairs lists the fields of one item for a key/value table.
func ItemPairs(it *storage.StorageItem) [][2]string {
	pairs := [][2]string{
		{"Path", it.Path},
		{"Name", it.Name},
		{"Kind", string(it.Kind)},
		{"Source", Source(it.IsFromBucket)},
		{"Protected", BoolToYesNo(it.IsProtected)},
		{"Created", FormatTime(it.CreatedAt)},
		{"Modified", FormatTime(it.LastModified)},
		{"Created by", EmptyOr(it.CreatedBy, "-")},
	}
	if !it.IsDir() {
		return append(pairs,
			[2]string{"Size", timeutil.FormatSize(it.Size)},
			[2]string{"Content type", EmptyOr(it.ContentType, "-")},
			[2]string{"File type", EmptyOr(string(it.FileType), "-")},
			[2]string{"MD5", EmptyOr(it.MD5Hash, "-")},
			[2]string{"URL", EmptyOr(it.URL, "-")},
		)
	}
	pairs = append(pairs, [2]string{"Protect children", BoolToYesNo(it.ProtectChildren)})
	if it.FileCount != nil {
		pairs = append(pairs, [2]string{"Files", fmt.Sprint(*it.FileCount)})
	}
	if it.FolderCount != nil {
		pairs = append(pairs, [2]string{"Folders", fmt.Sprint(*it.FolderCount)})
	}
	if it.TotalSize != nil {
		pairs = append(pairs, [2]string{"Total size", timeutil.FormatSize(*it.TotalSize)})
	}
	if p := it.Permissions; p != nil {
		pairs = append(pairs,
			[2]string{"Allow uploads", BoolToYesNo(p.AllowUploads)},
			[2]string{"Allow subfolders", BoolToYesNo(p.AllowCreateSubDirs)},
			[2]string{"Allow delete", BoolToYesNo(p.AllowDelete)},
			[2]string{"Allow delete files", BoolToYesNo(p.AllowDeleteFiles)},
			[2]string{"Allow move", BoolToYesNo(p.AllowMove)},
			[2]string{"Allow move files", BoolToYesNo(p.AllowMoveFiles)},
		)
	}
	return pairs
}

// Source names the backend an item lives in.
func Source(fromBucket bool) string {
	if fromBucket {
		return "bucket"
	}
	return "local"
}

// FormatTime renders a timestamp in local time, or "-" when unset.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// ParseCommaSeparatedList parses a comma-separated string into a slice of trimmed strings.
func ParseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}

// BoolToYesNo converts a boolean to "yes" or "no" string.
func BoolToYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// EmptyOr returns the value if not empty, otherwise returns the fallback.
func EmptyOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// HandleAbort checks if error is an abort (Ctrl+C) and prints a message.
// Returns nil for abort (user cancelled), otherwise returns the original error.
func HandleAbort(err error) error {
	if prompt.IsAborted(err) {
		_, _ = fmt.Fprintln(Out, "\nAborted.")
		return nil
	}
	return err
}
