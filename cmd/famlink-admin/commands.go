// ABOUTME: Subcommands of famlink-admin
// ABOUTME: ensure-tabs, tables, records, people, grants, grant and reconcile

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/2389/famlink/internal/auth"
	"github.com/2389/famlink/internal/family"
	"github.com/2389/famlink/internal/records"
	"github.com/2389/famlink/internal/sheet"
	"github.com/2389/famlink/internal/tenant"
)

func newEnsureTabsCommand(a *app) *cobra.Command {
	var withAccess bool

	cmd := &cobra.Command{
		Use:   "ensure-tabs",
		Short: "Create any missing graph and directory tabs",
		Long: `Create the People, Relationships, FamilyUnits and PersonAttributes tabs
with their canonical header rows. A non-default --tenant creates the
tenant-prefixed tabs. Existing tabs are left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, isProvisioner := a.backend.(sheet.Provisioner)
			if !isProvisioner {
				return fmt.Errorf("backend %T cannot create tabs", a.backend)
			}

			out := cmd.OutOrStdout()
			for _, l := range family.Layout() {
				title := sheet.Candidates(l.Table, a.tenantKey)[0]
				if _, err := p.EnsureTab(cmd.Context(), title, l.Headers); err != nil {
					return fmt.Errorf("ensuring %s: %w", title, err)
				}
				ok(out, "%s", title)
			}
			if withAccess {
				if _, err := p.EnsureTab(cmd.Context(), auth.AccessTable, auth.AccessHeaders); err != nil {
					return fmt.Errorf("ensuring %s: %w", auth.AccessTable, err)
				}
				ok(out, "%s", auth.AccessTable)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withAccess, "access", true, "also create the UserAccess tab")
	return cmd
}

func newTablesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List workbook tabs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := a.store.ListTables(cmd.Context())
			if err != nil {
				return err
			}
			if a.format == "json" {
				return emitJSON(cmd.OutOrStdout(), names)
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func newRecordsCommand(a *app) *cobra.Command {
	var idColumn string

	cmd := &cobra.Command{
		Use:   "records",
		Short: "Browse and delete rows of a table",
	}
	cmd.PersistentFlags().StringVar(&idColumn, "id-column", "", "id column (inferred when empty)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list <table>",
		Short: "List rows visible to --tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			recs, headers, err := a.store.ListWithHeaders(ctx, args[0], a.tenantKey)
			if err != nil {
				return err
			}
			if a.format == "json" {
				return emitJSON(cmd.OutOrStdout(), recs)
			}
			rows := make([][]string, len(recs))
			for i, r := range recs {
				row := make([]string, len(headers))
				for j, h := range headers {
					row[j] = r.Data[h]
				}
				rows[i] = row
			}
			return table(cmd.OutOrStdout(), headers, rows)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <table> <id>",
		Short: "Show one row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.store.Get(cmd.Context(), args[0], args[1], idColumn, a.tenantKey)
			if err != nil {
				return err
			}
			if a.format == "json" {
				return emitJSON(cmd.OutOrStdout(), rec)
			}
			headers, err := a.store.Headers(cmd.Context(), args[0], a.tenantKey)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(headers))
			for _, h := range headers {
				rows = append(rows, []string{h, rec.Data[h]})
			}
			return table(cmd.OutOrStdout(), []string{"COLUMN", "VALUE"}, rows)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <table> <id>",
		Short: "Delete one row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, err := a.store.Delete(cmd.Context(), args[0], args[1], idColumn, a.tenantKey)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("%s %s: %w", args[0], args[1], records.ErrRecordNotFound)
			}
			ok(cmd.OutOrStdout(), "deleted %s from %s", args[1], args[0])
			return nil
		},
	})

	return cmd
}

func newPeopleCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "people",
		Short: "List people of --tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			people, err := a.family.People(cmd.Context(), a.tenantKey)
			if err != nil {
				return err
			}
			if a.format == "json" {
				return emitJSON(cmd.OutOrStdout(), people)
			}
			rows := make([][]string, len(people))
			for i, p := range people {
				rows[i] = []string{p.PersonID, p.DisplayName, p.BirthDate, yesNo(p.IsPinned)}
			}
			return table(cmd.OutOrStdout(), []string{"ID", "NAME", "BORN", "PINNED"}, rows)
		},
	}
}

func newGrantsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "grants <email>",
		Short: "Show the enabled tenant grants of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			grants, err := auth.NewSheetGrants(a.store).Grants(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.format == "json" {
				return emitJSON(cmd.OutOrStdout(), grants)
			}
			if len(grants) == 0 {
				warn(cmd.OutOrStdout(), "no enabled grants for %s", args[0])
				return nil
			}
			rows := make([][]string, len(grants))
			for i, g := range grants {
				rows[i] = []string{g.TenantKey, g.TenantName, g.Role, g.PersonID}
			}
			return table(cmd.OutOrStdout(), []string{"TENANT", "NAME", "ROLE", "PERSON"}, rows)
		},
	}
}

func newGrantCommand(a *app) *cobra.Command {
	var (
		role, personID, name string
		disable              bool
	)

	cmd := &cobra.Command{
		Use:   "grant <email>",
		Short: "Give a user a role in the --tenant tenant",
		Long: `Write the UserAccess row of one email in the --tenant tenant, replacing
the existing row for that pair. Use it to enroll the first administrator.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				name = a.tenantKey
				if tenant.IsDefault(a.tenantKey) {
					name = tenant.DefaultName
				}
			}
			enabled := !disable
			grant, created, err := auth.NewSheetGrants(a.store).Upsert(cmd.Context(), auth.GrantInput{
				UserEmail:  args[0],
				TenantKey:  a.tenantKey,
				TenantName: name,
				Role:       role,
				PersonID:   personID,
				IsEnabled:  &enabled,
			})
			if err != nil {
				return err
			}
			if a.format == "json" {
				return emitJSON(cmd.OutOrStdout(), grant)
			}
			verb := "updated"
			if created {
				verb = "added"
			}
			ok(cmd.OutOrStdout(), "%s grant %s %s in %s (enabled: %s)",
				verb, grant.UserEmail, grant.Role, grant.TenantKey, yesNo(grant.IsEnabled))
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", tenant.RoleUser, "ADMIN or USER")
	cmd.Flags().StringVar(&personID, "person", "", "person id the user edits as")
	cmd.Flags().StringVar(&name, "tenant-name", "", "display name of the tenant")
	cmd.Flags().BoolVar(&disable, "disable", false, "write the grant disabled")
	return cmd
}

func newReconcileCommand(a *app) *cobra.Command {
	var parents, children []string
	var spouse string

	cmd := &cobra.Command{
		Use:   "reconcile <personId>",
		Short: "Set a person's parents, children and spouse",
		Long: `Rewrite the parent edges and family unit touching one person so they
match the given lists exactly. Omitted flags mean "none".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.family.Reconcile(cmd.Context(), family.ReconcileInput{
				TenantKey: a.tenantKey,
				PersonID:  args[0],
				ParentIDs: parents,
				ChildIDs:  children,
				SpouseID:  spouse,
			})

			out := cmd.OutOrStdout()
			var conflict *family.SpouseUnavailableError
			if errors.As(err, &conflict) {
				current := conflict.CurrentSpouseID
				if current == "" {
					current = "someone else"
				}
				warn(cmd.ErrOrStderr(), "%s is already partnered with %s; family units left unchanged", conflict.SpouseID, current)
			}
			if res != nil {
				if a.format == "json" {
					if jerr := emitJSON(out, res); jerr != nil {
						return jerr
					}
				} else {
					ok(out, "%s in tenant %s: %d parent(s), %d child(ren)", res.PersonID, tenant.NormalizeKey(a.tenantKey), res.ParentCount, res.ChildCount)
					fmt.Fprintf(out, "  edges: %d created, %d updated, %d deleted\n", res.EdgesCreated, res.EdgesUpdated, res.EdgesDeleted)
					fmt.Fprintf(out, "  units: %d deleted, upserted=%s\n", res.UnitsDeleted, yesNo(res.UnitUpserted))
					for _, f := range res.Failures {
						warn(out, "%s %s: %s", f.Op, f.ID, f.Error)
					}
				}
			}
			return err
		},
	}

	cmd.Flags().StringSliceVar(&parents, "parent", nil, "parent person id (repeatable or comma-separated)")
	cmd.Flags().StringSliceVar(&children, "child", nil, "child person id (repeatable or comma-separated)")
	cmd.Flags().StringVar(&spouse, "spouse", "", "spouse person id")
	return cmd
}
