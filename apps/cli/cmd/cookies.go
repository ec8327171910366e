package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/httphelper/packages/cookiestore"
)

var cookieJarFlag string

var cookiesCmd = &cobra.Command{
	Use:   "cookies",
	Short: "Inspect and clear the persistent cookie jar",
	Long: `Inspect and clear the sqlite cookie jar written by "send --cookie-jar".

Examples:
  httphelper cookies list --cookie-jar cookies.db
  httphelper cookies list example.com --cookie-jar cookies.db
  httphelper cookies clear example.com --cookie-jar cookies.db`,
}

var cookiesListCmd = &cobra.Command{
	Use:   "list [host]",
	Short: "List stored cookies, for all hosts or one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  cookiesListCommand,
}

var cookiesClearCmd = &cobra.Command{
	Use:   "clear <host>",
	Short: "Delete every cookie stored for a host",
	Args:  cobra.ExactArgs(1),
	RunE:  cookiesClearCommand,
}

func init() {
	cookiesCmd.PersistentFlags().StringVar(&cookieJarFlag, "cookie-jar", getEnvString("HTTPHELPER_COOKIE_JAR", ""), "sqlite cookie jar (env: HTTPHELPER_COOKIE_JAR)")
	cookiesCmd.AddCommand(cookiesListCmd)
	cookiesCmd.AddCommand(cookiesClearCmd)
}

func openJar() (*cookiestore.Store, error) {
	path := cookieJarFlag
	if path == "" && app != nil {
		path = app.cfg.CookieJar
	}
	if path == "" {
		return nil, withExitCode(ExitUsageError, fmt.Errorf("--cookie-jar is required"))
	}
	store, err := cookiestore.Open(path)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	return store, nil
}

func cookiesListCommand(cmd *cobra.Command, args []string) error {
	store, err := openJar()
	if err != nil {
		return err
	}
	defer store.Close()

	hosts := args
	if len(hosts) == 0 {
		hosts, err = store.Hosts()
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	hostColor := color.New(color.Bold)
	for _, host := range hosts {
		cookies, err := store.Load(host)
		if err != nil {
			return err
		}
		hostColor.Fprintf(out, "%s\n", host)
		for _, c := range cookies {
			var attrs []string
			if c.Domain != "" {
				attrs = append(attrs, "domain="+c.Domain)
			}
			if c.Path != "" {
				attrs = append(attrs, "path="+c.Path)
			}
			if c.Expires != "" {
				attrs = append(attrs, "expires="+c.Expires)
			}
			if c.Secure {
				attrs = append(attrs, "secure")
			}
			if c.HTTPOnly {
				attrs = append(attrs, "httponly")
			}
			line := "  " + c.String()
			if len(attrs) > 0 {
				line += "  (" + strings.Join(attrs, "; ") + ")"
			}
			fmt.Fprintln(out, line)
		}
	}
	return nil
}

func cookiesClearCommand(cmd *cobra.Command, args []string) error {
	store, err := openJar()
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Delete(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d cookie(s) for %s\n", n, args[0])
	return nil
}
