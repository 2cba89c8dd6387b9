package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dray-io/auditvault/internal/audit"
	"github.com/dray-io/auditvault/internal/retention"
)

func newPolicyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage retention policies",
	}
	cmd.AddCommand(
		newPolicySetCmd(a),
		newPolicyGetCmd(a),
		newPolicyListCmd(a),
		newPolicyDeleteCmd(a),
	)
	return cmd
}

func newPolicySetCmd(a *app) *cobra.Command {
	var (
		tenant, recordType string
		retentionDays      int
		archiveAfterDays   int
		minimumDays        int
		disabled           bool
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Create or replace the policy of a record type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := retention.PolicyInput{
				TenantID:         tenant,
				RecordType:       audit.RecordType(recordType),
				RetentionDays:    retentionDays,
				ArchiveAfterDays: archiveAfterDays,
			}
			if cmd.Flags().Changed("minimum-days") {
				in.MinimumRetentionDays = &minimumDays
			}
			if disabled {
				enabled := false
				in.Enabled = &enabled
			}
			return a.withServices(cmd.Context(), func(s *services) error {
				p, err := s.policies.SetPolicy(cmd.Context(), in)
				if err != nil {
					return err
				}
				return a.printJSON(p)
			})
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant id")
	cmd.Flags().StringVar(&recordType, "type", "", "Record type")
	cmd.Flags().IntVar(&retentionDays, "retention-days", 0, "Total retention in days")
	cmd.Flags().IntVar(&archiveAfterDays, "archive-after-days", 0, "Days before records move to the cold tier")
	cmd.Flags().IntVar(&minimumDays, "minimum-days", 0, "Minimum retention in days (default: tenant or system minimum)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Store the policy disabled")
	requireFlags(cmd, "tenant", "type", "retention-days", "archive-after-days")
	return cmd
}

func newPolicyGetCmd(a *app) *cobra.Command {
	var tenant, recordType string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show the policy of a record type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := audit.ParseRecordType(recordType)
			if err != nil {
				return err
			}
			return a.withServices(cmd.Context(), func(s *services) error {
				p, err := s.policies.GetPolicy(cmd.Context(), tenant, rt)
				if err != nil {
					return err
				}
				if p == nil {
					return fmt.Errorf("no policy for %s/%s", tenant, rt)
				}
				return a.printJSON(p)
			})
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant id")
	cmd.Flags().StringVar(&recordType, "type", "", "Record type")
	requireFlags(cmd, "tenant", "type")
	return cmd
}

func newPolicyListCmd(a *app) *cobra.Command {
	var tenant string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a tenant's policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withServices(cmd.Context(), func(s *services) error {
				policies, err := s.policies.ListPolicies(cmd.Context(), tenant)
				if err != nil {
					return err
				}
				if asJSON {
					return a.printJSON(policies)
				}
				w := a.table()
				fmt.Fprintln(w, "TYPE\tRETENTION\tARCHIVE AFTER\tMINIMUM\tENABLED\tUPDATED")
				for _, p := range policies {
					fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%t\t%s\n", p.RecordType, p.RetentionDays,
						p.ArchiveAfterDays, p.MinimumRetentionDays, p.Enabled, p.UpdatedAt.Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	requireFlags(cmd, "tenant")
	return cmd
}

func newPolicyDeleteCmd(a *app) *cobra.Command {
	var tenant, recordType string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the policy of a record type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := audit.ParseRecordType(recordType)
			if err != nil {
				return err
			}
			return a.withServices(cmd.Context(), func(s *services) error {
				deleted, err := s.policies.DeletePolicy(cmd.Context(), tenant, rt)
				if err != nil {
					return err
				}
				return a.printJSON(map[string]any{"deleted": deleted})
			})
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant id")
	cmd.Flags().StringVar(&recordType, "type", "", "Record type")
	requireFlags(cmd, "tenant", "type")
	return cmd
}
