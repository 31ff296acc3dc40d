package commands

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
	"github.com/certforge/certstore/internal/cli/output"
	"github.com/certforge/certstore/internal/cli/timeutil"
	"github.com/certforge/certstore/pkg/apiclient"
)

var uploadContentType string

var uploadCmd = &cobra.Command{
	Use:   "upload <local-file> <destination>",
	Short: "Upload a local file",
	Long: `Upload a local file. A destination ending in "/" or naming an existing
folder receives the file under its local name. An existing file at the
destination is replaced.

The content type is detected from the file contents unless --content-type
is given.

Examples:
  certstorectl upload ./gold.png public/seals/
  certstorectl upload ./diploma.pdf templates/2024/diploma.pdf`,
	Args: cobra.ExactArgs(2),
	RunE: runUpload,
}

var (
	uploadURLType   string
	uploadURLSize   int64
	uploadURLExpiry time.Duration
)

var uploadURLCmd = &cobra.Command{
	Use:   "upload-url <path>",
	Short: "Issue an upload URL for a path",
	Long: `Issue a time-limited URL that accepts a single upload to path. Bucket
paths get a presigned object storage URL; local paths get a token URL on
the server. The URL itself is the credential.

Examples:
  certstorectl upload-url templates/2024/diploma.pdf --content-type application/pdf
  certstorectl upload-url public/seals/gold.png --expiry 10m -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runUploadURL,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadContentType, "content-type", "", "Content type (detected when omitted)")

	uploadURLCmd.Flags().StringVar(&uploadURLType, "content-type", "", "Content type the upload must carry")
	uploadURLCmd.Flags().Int64Var(&uploadURLSize, "size", 0, "Expected size in bytes")
	uploadURLCmd.Flags().DurationVar(&uploadURLExpiry, "expiry", 0, "URL lifetime (server default when omitted)")
}

func runUpload(cmd *cobra.Command, args []string) error {
	local, dest := args[0], args[1]

	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", local, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", local, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", local)
	}

	contentType := uploadContentType
	if contentType == "" {
		mt, err := mimetype.DetectReader(f)
		if err != nil {
			return fmt.Errorf("failed to detect content type: %w", err)
		}
		contentType = mt.String()
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("failed to rewind %s: %w", local, err)
		}
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	target := resolveUploadTarget(client, dest, filepath.Base(local))
	item, err := client.Upload(target, contentType, info.Size(), f)
	if err != nil {
		return fmt.Errorf("upload of %s failed: %w", local, err)
	}

	if item == nil {
		// Presigned uploads go straight to the bucket
		if item, err = client.FileInfo(target); err != nil {
			cmdutil.PrintSuccess(fmt.Sprintf("Uploaded %s to %s (%s)", local, target, timeutil.FormatSize(info.Size())))
			return nil
		}
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	if format != output.FormatTable || cmdutil.IsVerbose() {
		return cmdutil.PrintResource(item, cmdutil.ItemPairs(item))
	}
	cmdutil.PrintSuccess(fmt.Sprintf("Uploaded %s to %s (%s)", local, item.Path, timeutil.FormatSize(item.Size)))
	return nil
}

// resolveUploadTarget appends name when dest names a folder.
func resolveUploadTarget(client *apiclient.Client, dest, name string) string {
	if dest == "" || strings.HasSuffix(dest, "/") {
		return path.Join(strings.TrimSuffix(dest, "/"), name)
	}
	if item, err := client.FolderInfo(dest); err == nil && item.IsDir() {
		return path.Join(dest, name)
	}
	return dest
}

func runUploadURL(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	signed, err := client.SignedUploadURL(apiclient.UploadURLRequest{
		Path:          args[0],
		ContentType:   uploadURLType,
		FileSize:      uploadURLSize,
		ExpirySeconds: int(uploadURLExpiry.Seconds()),
	})
	if err != nil {
		return fmt.Errorf("failed to issue upload URL for %q: %w", args[0], err)
	}

	target := "bucket"
	if signed.Local {
		target = "local"
	}
	return cmdutil.PrintResource(signed, [][2]string{
		{"URL", signed.URL},
		{"Method", signed.Method},
		{"Path", signed.Path},
		{"Target", target},
		{"Expires", cmdutil.FormatTime(signed.ExpiresAt)},
	})
}
