package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"madrasa/internal/app"
	"madrasa/internal/attendance"
	"madrasa/internal/export"
	"madrasa/internal/school"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "madrasactl",
		Short:         "Administer the madrasa attendance portal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(), newCreateAdminCmd(), newReportCmd())
	return root
}

// withStores loads the configuration and opens the store for one command.
func withStores(ctx context.Context, migrate bool, fn func(*app.Stores, attendance.Option) error) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	stores, err := app.OpenStores(ctx, cfg, migrate)
	if err != nil {
		return err
	}
	defer stores.Close()
	return fn(stores, attendance.WithPersistPending(cfg.PersistPending))
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStores(cmd.Context(), true, func(*app.Stores, attendance.Option) error {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			})
		},
	}
}

func newCreateAdminCmd() *cobra.Command {
	var in school.NewTeacher
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Provision a super admin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStores(cmd.Context(), true, func(s *app.Stores, _ attendance.Option) error {
				u, err := school.NewService(s.School).CreateAdmin(cmd.Context(), in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created super admin %s <%s> id=%s\n", u.Name, u.Email, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "login email")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newReportCmd() *cobra.Command {
	var classID, date, teacherID, out string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print or export the attendance report of a class-day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := attendance.ParseDate(date)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withStores(ctx, false, func(s *app.Stores, opt attendance.Option) error {
				svc := school.NewService(s.School)
				cls, err := s.School.GetClass(ctx, classID)
				if err != nil {
					return err
				}
				dir, err := svc.TeacherDirectory(ctx)
				if err != nil {
					return err
				}
				engine := attendance.NewEngine(s.School, s.Records, opt)
				rep, err := engine.BuildReport(ctx, attendance.ReportRequest{ClassID: classID, Date: d, TeacherID: teacherID}, dir)
				if err != nil {
					return err
				}
				if out == "" {
					return printReport(cmd.OutOrStdout(), cls.Name, rep)
				}
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := export.WriteReport(f, cls.Name, rep); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&classID, "class", "", "class id")
	cmd.Flags().StringVar(&date, "date", "", "day as YYYY-MM-DD")
	cmd.Flags().StringVar(&teacherID, "teacher", "", "only records taken by this teacher")
	cmd.Flags().StringVar(&out, "out", "", "write an .xlsx workbook instead of printing")
	_ = cmd.MarkFlagRequired("class")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func printReport(w io.Writer, className string, rep *attendance.Report) error {
	p := rep.Percentages()
	fmt.Fprintf(w, "%s, %s\n", className, rep.Date)
	fmt.Fprintf(w, "total %d  present %d (%.1f%%)  absent %d (%.1f%%)  late %d (%.1f%%)\n\n",
		rep.TotalStudents, rep.Present, p.Present, rep.Absent, p.Absent, rep.Late, p.Late)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STUDENT\tSTATUS\tRECORDED BY")
	for _, d := range rep.Details {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.StudentName, d.Status, d.TeacherName)
	}
	return tw.Flush()
}
