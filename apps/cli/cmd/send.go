package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/httphelper/packages/auth/oauth2"
	"github.com/abdul-hamid-achik/httphelper/packages/capture"
	"github.com/abdul-hamid-achik/httphelper/packages/cookiestore"
	"github.com/abdul-hamid-achik/httphelper/packages/http"
	"github.com/abdul-hamid-achik/httphelper/packages/reqfile"
)

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var sendCmd = &cobra.Command{
	Use:   "send [url]",
	Short: "Send a request and print the response",
	Long: `Send one HTTP request and print the response body.

Examples:
  httphelper send https://httpbin.org/get
  httphelper send https://httpbin.org/get -i --param q=go
  httphelper send https://httpbin.org/post -d name=bob -d avatar=@me.png
  httphelper send https://httpbin.org/post --json user.name=bob --json user.age=42
  httphelper send https://httpbin.org/json --query slideshow.title
  httphelper send --file login.yaml --cookie-jar cookies.db --capture token="body token"
  httphelper send --file login.yaml --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: sendCommand,
}

// sendOptions controls how the response is handled.
type sendOptions struct {
	include   bool
	query     string
	captures  []string
	schema    string
	cookieJar string
	watch     bool
}

var (
	sendRequest requestFlags
	sendOpts    sendOptions
)

func init() {
	sendRequest.register(sendCmd)

	fs := sendCmd.Flags()
	fs.BoolVarP(&sendOpts.include, "include", "i", false, "Print the status line and headers")
	fs.StringVarP(&sendOpts.query, "query", "q", "", "Print only the value at this capture expression (gjson path into the body by default)")
	fs.StringArrayVar(&sendOpts.captures, "capture", nil, "Print name=expression captures after the body (repeatable)")
	fs.StringVar(&sendOpts.schema, "schema", "", "JSON schema file the response body must satisfy")
	fs.StringVar(&sendOpts.cookieJar, "cookie-jar", getEnvString("HTTPHELPER_COOKIE_JAR", ""), "sqlite file persisting cookies per host (env: HTTPHELPER_COOKIE_JAR)")
	fs.BoolVarP(&sendOpts.watch, "watch", "w", false, "Re-send when the --file request file changes")
}

func sendCommand(cmd *cobra.Command, args []string) error {
	var rawURL string
	if len(args) > 0 {
		rawURL = args[0]
	}
	if rawURL == "" && sendRequest.file == "" {
		return withExitCode(ExitUsageError, fmt.Errorf("a URL or --file is required"))
	}
	if sendOpts.watch && sendRequest.file == "" {
		return withExitCode(ExitUsageError, fmt.Errorf("--watch requires --file"))
	}

	client, cfg := sendRequest.newClient(cmd, app)

	s := &sender{
		client:    client,
		flags:     &sendRequest,
		opts:      sendOpts,
		rawURL:    rawURL,
		out:       cmd.OutOrStdout(),
		log:       app.log.Logger,
		cookieJar: sendOpts.cookieJar,
	}
	if s.cookieJar == "" {
		s.cookieJar = cfg.CookieJar
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := s.run(ctx)
	if !sendOpts.watch {
		return err
	}
	if err != nil {
		printError(cmd.ErrOrStderr(), err)
	}
	return s.watch(ctx, cmd.ErrOrStderr())
}

// sender runs one configured send. It is reused for every re-send in watch
// mode.
type sender struct {
	client    *http.Client
	flags     *requestFlags
	opts      sendOptions
	rawURL    string
	out       io.Writer
	log       zerolog.Logger
	cookieJar string
}

func (s *sender) run(ctx context.Context) error {
	var file *reqfile.File
	if s.flags.file != "" {
		var err error
		file, err = reqfile.Load(s.flags.file)
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
	}

	req, err := s.flags.build(s.client, file, s.rawURL)
	if err != nil {
		return err
	}
	defer req.Close()

	if err := s.flags.authorize(ctx, oauth2.NewProvider(s.client), file, req); err != nil {
		return err
	}

	var jar *cookiestore.Store
	host := hostOf(req.URL())
	if s.cookieJar != "" && host != "" {
		jar, err = cookiestore.Open(s.cookieJar)
		if err != nil {
			return withExitCode(ExitConfigError, err)
		}
		defer jar.Close()

		stored, err := jar.Load(host)
		if err != nil {
			return err
		}
		// Cookies given on the command line win over stored ones.
		given := req.Cookies()
		if err := req.AddCookies(stored); err != nil {
			return err
		}
		if err := req.AddCookies(given); err != nil {
			return err
		}
		req.EnableCookies()
	}

	resp, err := req.Send(ctx)
	if err != nil {
		return err
	}

	if jar != nil {
		if err := jar.Save(host, req.Cookies()); err != nil {
			s.log.Warn().Err(err).Str("jar", s.cookieJar).Msg("saving cookies failed")
		}
	}

	return s.report(resp, file)
}

// report prints the response and applies the query, capture and schema
// checks. A non-2xx status fails with ExitFailure after printing.
func (s *sender) report(resp *http.Response, file *reqfile.File) error {
	if s.opts.include {
		printHead(s.out, resp)
	}

	if s.opts.query != "" {
		v, ok := capture.NewExtractor(resp).Query(s.opts.query)
		if !ok {
			return withExitCode(ExitFailure, fmt.Errorf("query %q matched nothing", s.opts.query))
		}
		fmt.Fprintln(s.out, capture.Format(v))
	} else {
		body := resp.Body()
		fmt.Fprint(s.out, body)
		if body != "" && !strings.HasSuffix(body, "\n") {
			fmt.Fprintln(s.out)
		}
	}

	exprs := make(map[string]string)
	if file != nil {
		for name, expr := range file.Captures {
			exprs[name] = expr
		}
	}
	flagExprs, err := parsePairs(s.opts.captures)
	if err != nil {
		return err
	}
	for name, expr := range flagExprs {
		exprs[name] = expr
	}
	if len(exprs) > 0 {
		printCaptures(s.out, exprs, capture.ExtractAll(resp, exprs))
	}

	schemaPath := s.opts.schema
	if schemaPath == "" && file != nil {
		schemaPath = file.SchemaPath()
	}
	if schemaPath != "" {
		schema, err := os.ReadFile(schemaPath)
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
		if err := capture.ValidateSchema(resp, schema); err != nil {
			return withExitCode(ExitFailure, err)
		}
	}

	if !resp.IsSuccess() {
		return withExitCode(ExitFailure, nil)
	}
	return nil
}

func (s *sender) watch(ctx context.Context, errOut io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(s.flags.file)
	if err != nil {
		return err
	}
	// Editors often replace the file, so the directory is watched.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", target, err)
	}

	fmt.Fprintf(errOut, "\nWatching %s for changes... (press Ctrl+C to stop)\n\n", s.flags.file)

	rerun := make(chan struct{}, 1)
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case rerun <- struct{}{}:
				default:
				}
			})

		case <-rerun:
			fmt.Fprintf(errOut, "\nFile changed: %s\nRe-sending...\n\n", s.flags.file)
			if err := s.run(ctx); err != nil {
				printError(errOut, err)
			}
			fmt.Fprintf(errOut, "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

func printHead(w io.Writer, resp *http.Response) {
	statusColor := color.New(color.FgGreen, color.Bold)
	switch {
	case resp.IsServerError(), resp.IsClientError():
		statusColor = color.New(color.FgRed, color.Bold)
	case resp.IsRedirect():
		statusColor = color.New(color.FgYellow, color.Bold)
	}
	statusColor.Fprintf(w, "HTTP %d %s\n", resp.Code(), nethttp.StatusText(resp.Code()))

	headers := resp.Headers()
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	nameColor := color.New(color.FgCyan)
	for _, name := range names {
		nameColor.Fprintf(w, "%s", name)
		fmt.Fprintf(w, ": %s\n", headers[name])
	}
	fmt.Fprintln(w)
}

func printCaptures(w io.Writer, exprs map[string]string, values map[string]any) {
	names := make([]string, 0, len(exprs))
	for name := range exprs {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w)
	for _, name := range names {
		v, ok := values[name]
		if !ok {
			color.New(color.FgYellow).Fprintf(w, "%s: <not found>\n", name)
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", name, capture.Format(v))
	}
}

func printError(w io.Writer, err error) {
	if msg := err.Error(); msg != "" {
		color.New(color.FgRed).Fprintf(w, "Error: %s\n", msg)
	}
	var schemaErr *capture.SchemaError
	if errors.As(err, &schemaErr) {
		for _, v := range schemaErr.Violations {
			fmt.Fprintf(w, "  - %s\n", v)
		}
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
