// Command portalctl is a command line client for the utility audit portal.
// It signs in once, keeps the session in a YAML file, and wraps the report,
// metric, roster and chat endpoints.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/utility-audit-portal/internal/client"
)

const defaultServer = "http://localhost:8080"

func main() {
	if err := rootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is the state shared by all subcommands of one invocation.
type app struct {
	sessionPath string
	server      string
	sess        *Session
	api         *client.Client
	in          io.Reader
	out         io.Writer
}

func rootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: in, out: out}

	cmd := &cobra.Command{
		Use:           "portalctl",
		Short:         "Command line client for the utility audit portal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open()
		},
	}
	cmd.SetOut(out)
	cmd.PersistentFlags().StringVar(&a.sessionPath, "session", defaultSessionPath(), "Session file path (YAML)")
	cmd.PersistentFlags().StringVar(&a.server, "server", os.Getenv("PORTAL_URL"), "Portal base URL")

	cmd.AddCommand(
		loginCmd(a),
		logoutCmd(a),
		refreshCmd(a),
		sessionCmd(a),
		reportsCmd(a),
		metricsCmd(a),
		dashboardCmd(a),
		uploadCmd(a),
		addMetricCmd(a),
		downloadCmd(a),
		clientsCmd(a),
		createClientCmd(a),
		chatCmd(a),
	)
	return cmd
}

// open loads the session file and builds the API client.  An explicit
// --server wins over the saved one.
func (a *app) open() error {
	sess, err := loadSession(a.sessionPath)
	if err != nil {
		return err
	}
	switch {
	case a.server != "":
		if sess.Server != "" && sess.Server != a.server {
			sess.clear()
		}
		sess.Server = a.server
	case sess.Server == "":
		sess.Server = defaultServer
	}
	a.sess = sess
	a.api = client.New(sess.Server)
	a.api.SetToken(sess.AccessToken)
	return nil
}

func (a *app) save() error {
	return a.sess.save(a.sessionPath)
}
