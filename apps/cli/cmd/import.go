package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/httphelper/packages/import/curl"
)

var (
	importOutputFlag       string
	importFromFlag         string
	importMaxRedirectsFlag int
)

var importCmd = &cobra.Command{
	Use:   "import <format>",
	Short: "Convert requests from other tools into request files",
	Long: `Convert requests written for other tools into httphelper request files.

Supported formats:
  curl - curl command lines

Examples:
  httphelper import curl "curl -u admin:pw https://api.example.com/users"
  httphelper import curl --from commands.sh -o requests/`,
}

var importCurlCmd = &cobra.Command{
	Use:   "curl [command]",
	Short: "Import curl command lines",
	Long: `Convert curl command lines into request files.

The command is taken from the arguments, or read from --from where lines
ending in a backslash continue and # starts a comment. Use --from - for stdin.

Without -o the YAML is printed. With -o, a single command is written to that
file; several commands are written to that directory, one file per request.

Examples:
  httphelper import curl "curl -X POST -d name=bob https://api.example.com/users"
  httphelper import curl --from commands.sh -o requests/
  pbpaste | httphelper import curl --from - -o login.yaml`,
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE:              importCurlCommand,
}

func init() {
	importCurlCmd.Flags().StringVarP(&importOutputFlag, "output", "o", "", "Output file or directory (default: stdout)")
	importCurlCmd.Flags().StringVar(&importFromFlag, "from", "", "Read commands from this file, - for stdin")
	importCurlCmd.Flags().IntVar(&importMaxRedirectsFlag, "max-redirects", 0, "Redirect limit written for -L (default 20)")

	importCmd.AddCommand(importCurlCmd)
}

func importCurlCommand(cmd *cobra.Command, args []string) error {
	var opts []curl.Option
	if importMaxRedirectsFlag > 0 {
		opts = append(opts, curl.WithMaxRedirects(importMaxRedirectsFlag))
	}
	converter := curl.NewConverter(opts...)

	var results []*curl.Result
	switch {
	case importFromFlag == "-":
		var err error
		results, err = converter.ConvertReader(cmd.InOrStdin())
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
	case importFromFlag != "":
		var err error
		results, err = converter.ConvertFile(importFromFlag)
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
	case len(args) > 0:
		res, err := converter.Convert(strings.Join(args, " "))
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
		results = []*curl.Result{res}
	default:
		return withExitCode(ExitUsageError, fmt.Errorf("pass a curl command or --from"))
	}

	if len(results) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("no curl commands found"))
	}

	warn := color.New(color.FgYellow)
	for _, res := range results {
		printImportWarnings(cmd.ErrOrStderr(), warn, res)
	}

	switch {
	case importOutputFlag == "":
		return writeImports(cmd.OutOrStdout(), results)
	case len(results) == 1 && !isDir(importOutputFlag):
		return saveImport(cmd.OutOrStdout(), results[0], importOutputFlag)
	default:
		if err := os.MkdirAll(importOutputFlag, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		for _, res := range results {
			path := filepath.Join(importOutputFlag, uniqueName(importOutputFlag, res.File.Name)+".yaml")
			if err := saveImport(cmd.OutOrStdout(), res, path); err != nil {
				return err
			}
		}
	}
	return nil
}

func printImportWarnings(w io.Writer, warn *color.Color, res *curl.Result) {
	name := res.File.Name
	if res.Insecure {
		warn.Fprintf(w, "%s: -k is a client setting; pass --insecure when sending\n", name)
	}
	if res.Proxy != "" {
		warn.Fprintf(w, "%s: proxy %s is a client setting; pass --proxy when sending\n", name, res.Proxy)
	}
	if len(res.Ignored) > 0 {
		warn.Fprintf(w, "%s: ignored options: %s\n", name, strings.Join(res.Ignored, " "))
	}
}

func writeImports(w io.Writer, results []*curl.Result) error {
	for i, res := range results {
		data, err := res.File.Marshal()
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(w, "---")
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return nil
}

func saveImport(w io.Writer, res *curl.Result, path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := res.File.Save(path); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Fprintf(w, "Created: %s\n", path)
	return nil
}

// uniqueName appends a counter when dir already holds name.yaml.
func uniqueName(dir, name string) string {
	candidate := name
	for i := 2; ; i++ {
		if _, err := os.Stat(filepath.Join(dir, candidate+".yaml")); os.IsNotExist(err) {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", name, i)
	}
}

func isDir(path string) bool {
	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, string(filepath.Separator)) {
		return true
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
