package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/utility-audit-portal/internal/client"
	"github.com/iliyamo/utility-audit-portal/internal/dashboard"
	"github.com/iliyamo/utility-audit-portal/internal/model"
)

func loginCmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login EMAIL",
		Short: "Sign in and store the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				fmt.Fprint(a.out, "Password: ")
				line, err := bufio.NewReader(a.in).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			resp, err := a.api.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			a.sess.Email = resp.User.Email
			a.sess.Role = string(resp.User.Role)
			a.sess.AccessToken = resp.Access.Token
			a.sess.AccessExpiry = resp.Access.Expires
			a.sess.RefreshToken = resp.Refresh.Token
			if err := a.save(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Signed in as %s (%s)\n", resp.User.Email, resp.User.Role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (read from stdin when empty)")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.api.Logout(cmd.Context())
			a.sess.clear()
			if serr := a.save(); serr != nil {
				return serr
			}
			if err != nil {
				return fmt.Errorf("server sign-out failed, local session cleared: %w", err)
			}
			fmt.Fprintln(a.out, "Signed out")
			return nil
		},
	}
}

func refreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new token pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.sess.RefreshToken == "" {
				return errors.New("not signed in")
			}
			resp, err := a.api.Refresh(cmd.Context(), a.sess.RefreshToken)
			if err != nil {
				return err
			}
			a.sess.AccessToken = resp.Access.Token
			a.sess.AccessExpiry = resp.Access.Expires
			a.sess.RefreshToken = resp.Refresh.Token
			if err := a.save(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Session refreshed until %s\n", resp.Access.Expires.Format(time.RFC3339))
			return nil
		},
	}
}

func sessionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Show the current user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.api.Session(cmd.Context())
			if err != nil {
				return err
			}
			if u == nil {
				fmt.Fprintln(a.out, "Not signed in")
				return nil
			}
			fmt.Fprintf(a.out, "%s (%s) on %s\n", u.Email, u.Role, a.sess.Server)
			return nil
		},
	}
}

func reportsCmd(a *app) *cobra.Command {
	var clientID string
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reps, err := a.api.ListReports(cmd.Context(), clientID)
			if err != nil {
				return err
			}
			printReports(a, reps)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "Only this client's reports (owner)")
	return cmd
}

func metricsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics REPORT_ID",
		Short: "List a report's metrics in measurement order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ms, err := a.api.ListMetrics(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printMetrics(a, ms)
			return nil
		},
	}
}

// dashboardCmd prints what the dashboard page shows: the reports and the
// metrics of the selected one, the most recent by default.
func dashboardCmd(a *app) *cobra.Command {
	var clientID, reportID string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show reports and the selected report's metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			state := dashboard.New()

			u, err := a.api.Session(ctx)
			if err != nil {
				return err
			}
			if u == nil {
				return errors.New("not signed in")
			}
			state.SetSession(u)

			reps, err := a.api.ListReports(ctx, clientID)
			if err != nil {
				return err
			}
			ticket, _ := state.SetReports(reps)
			if reportID != "" {
				ticket = state.Select(reportID)
			}
			if _, err := state.Fetch(ctx, a.api, ticket); err != nil {
				return err
			}

			snap := state.Snapshot()
			fmt.Fprintf(a.out, "%s (%s)\n\n", snap.User.Email, snap.Role())
			printReports(a, snap.Reports)
			if snap.SelectedReport != "" {
				fmt.Fprintf(a.out, "\nMetrics for %s\n", snap.SelectedReport)
				printMetrics(a, snap.Metrics)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "Client to show (owner)")
	cmd.Flags().StringVar(&reportID, "report", "", "Report to select")
	return cmd
}

func uploadCmd(a *app) *cobra.Command {
	var title, description, clientID string
	cmd := &cobra.Command{
		Use:   "upload [FILE]",
		Short: "Upload a report for a client (owner)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				rep *model.Report
				err error
			)
			if len(args) == 0 {
				rep, err = a.api.UploadReport(cmd.Context(), title, description, clientID, "", nil)
			} else {
				f, ferr := os.Open(args[0])
				if ferr != nil {
					return ferr
				}
				defer f.Close()
				rep, err = a.api.UploadReport(cmd.Context(), title, description, clientID, filepath.Base(args[0]), f)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Uploaded report %s\n", rep.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Report title")
	cmd.Flags().StringVar(&description, "description", "", "Report description")
	cmd.Flags().StringVar(&clientID, "client", "", "Client id")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func addMetricCmd(a *app) *cobra.Command {
	var v client.MetricValues
	cmd := &cobra.Command{
		Use:   "add-metric REPORT_ID",
		Short: "Record a metric sample for a report (owner)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.api.AddMetric(cmd.Context(), args[0], v)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Added metric %s for %s\n", m.ID, m.MeasurementDate.Format(time.DateOnly))
			return nil
		},
	}
	cmd.Flags().StringVar(&v.ElectricityUsage, "electricity", "", "Electricity usage")
	cmd.Flags().StringVar(&v.WaterUsage, "water", "", "Water usage")
	cmd.Flags().StringVar(&v.ElectricitySavingsPercentage, "electricity-savings", "", "Electricity savings %")
	cmd.Flags().StringVar(&v.WaterSavingsPercentage, "water-savings", "", "Water savings %")
	cmd.Flags().StringVar(&v.MeasurementDate, "date", "", "Measurement date (YYYY-MM-DD, default today)")
	for _, f := range []string{"electricity", "water", "electricity-savings", "water-savings"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func downloadCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "download REPORT_ID",
		Short: "Save a report's file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmp, err := os.CreateTemp(dir, ".portalctl-*")
			if err != nil {
				return err
			}
			defer os.Remove(tmp.Name())

			name, err := a.api.DownloadReport(cmd.Context(), args[0], tmp)
			if cerr := tmp.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			dst := filepath.Join(dir, filepath.Base(name))
			if err := os.Rename(tmp.Name(), dst); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Saved %s\n", dst)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "output", "o", ".", "Output directory")
	return cmd
}

func clientsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clients",
		Short: "List the client roster (owner)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			roster, err := a.api.Clients(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tEMAIL")
			for _, c := range roster {
				fmt.Fprintf(tw, "%s\t%s\n", c.ID, c.Email)
			}
			return tw.Flush()
		},
	}
}

func createClientCmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "create-client EMAIL",
		Short: "Create a client account (owner)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.api.CreateClient(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created client %s (%s)\n", c.Email, c.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Initial password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func chatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat MESSAGE...",
		Short: "Ask the website assistant",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 45*time.Second)
			defer cancel()
			reply, err := a.api.Chat(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, reply)
			return nil
		},
	}
}

func printReports(a *app, reps []model.Report) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCLIENT\tUPLOADED\tFILE")
	for _, r := range reps {
		file := "-"
		if r.FilePath != nil {
			file = *r.FilePath
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Title, r.ClientID, r.UploadedAt.Format("2006-01-02 15:04"), file)
	}
	_ = tw.Flush()
}

func printMetrics(a *app, ms []model.MetricSample) {
	if len(ms) == 0 {
		fmt.Fprintln(a.out, "No metrics recorded yet.")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tELECTRICITY\tWATER\tELEC SAVINGS %\tWATER SAVINGS %")
	for _, m := range ms {
		fmt.Fprintf(tw, "%s\t%g\t%g\t%g\t%g\n", m.MeasurementDate.Format(time.DateOnly),
			m.ElectricityUsage, m.WaterUsage, m.ElectricitySavingsPercentage, m.WaterSavingsPercentage)
	}
	_ = tw.Flush()
}
