package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/dray-io/auditvault/internal/audit"
	"github.com/dray-io/auditvault/internal/retrieval"
)

// ErrJobNotFound is returned by the job command for unknown ids.
var ErrJobNotFound = errors.New("retrieval job not found")

func requireFlags(cmd *cobra.Command, names ...string) {
	for _, n := range names {
		_ = cmd.MarkFlagRequired(n)
	}
}

func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither YYYY-MM-DD nor RFC 3339", s)
	}
	return t.UTC(), nil
}

func newWriteCmd(a *app) *cobra.Command {
	var tenant, recordType, id, data string
	cmd := &cobra.Command{
		Use:   "write",
		Short: "Append a record to the hot tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := audit.ParseRecordType(recordType)
			if err != nil {
				return err
			}
			var payload map[string]any
			if err := json.Unmarshal([]byte(data), &payload); err != nil {
				return &audit.ValidationError{Field: "data", Reason: err.Error()}
			}
			return a.withServices(cmd.Context(), func(s *services) error {
				rec, err := s.records.Write(cmd.Context(), tenant, rt, id, payload)
				if err != nil {
					return err
				}
				return a.printJSON(rec)
			})
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant id")
	cmd.Flags().StringVar(&recordType, "type", "", "Record type (e.g., TRADE_EVENT)")
	cmd.Flags().StringVar(&id, "id", "", "Record id")
	cmd.Flags().StringVar(&data, "data", "{}", "Record body as a JSON object")
	requireFlags(cmd, "tenant", "type", "id")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	var tenant, recordType, id, createdAt, tier string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute a record's content hash and compare it with the stored one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := audit.ParseRecordType(recordType)
			if err != nil {
				return err
			}
			t, err := audit.ParseTier(tier)
			if err != nil {
				return err
			}
			created, err := parseInstant(createdAt)
			if err != nil {
				return &audit.ValidationError{Field: "createdAt", Reason: err.Error()}
			}
			ref := audit.RecordRef{TenantID: tenant, RecordType: rt, CreatedAt: created, RecordID: id}
			return a.withServices(cmd.Context(), func(s *services) error {
				res, err := s.records.VerifyIntegrityAt(cmd.Context(), t, ref)
				if err != nil {
					return err
				}
				return a.printJSON(res)
			})
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant id")
	cmd.Flags().StringVar(&recordType, "type", "", "Record type")
	cmd.Flags().StringVar(&id, "id", "", "Record id")
	cmd.Flags().StringVar(&createdAt, "created-at", "", "Record creation date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&tier, "tier", "hot", "Tier to read (hot or cold)")
	requireFlags(cmd, "tenant", "type", "id", "created-at")
	return cmd
}

func newArchiveCmd(a *app) *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Move a tenant's expired hot records to the cold tier once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withServices(cmd.Context(), func(s *services) error {
				res, err := s.archiver.ArchiveExpiredRecords(cmd.Context(), tenant)
				if err != nil {
					return err
				}
				return a.printJSON(res)
			})
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant id")
	requireFlags(cmd, "tenant")
	return cmd
}

func newUsageCmd(a *app) *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Report a tenant's storage usage and estimated monthly cost",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withServices(cmd.Context(), func(s *services) error {
				u, err := s.usage.GetStorageUsage(cmd.Context(), tenant)
				if err != nil {
					return err
				}
				return a.printJSON(u)
			})
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant id")
	requireFlags(cmd, "tenant")
	return cmd
}

func newRetrieveCmd(a *app) *cobra.Command {
	var tenant, recordType, start, end string
	var wait bool
	cmd := &cobra.Command{
		Use:   "retrieve",
		Short: "Request restoration of archived records in a date range",
		Long: `Request restoration of archived records in a date range.

The restore requests are issued before the command exits. With --wait the
final job state is printed, otherwise the accepted job is.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := audit.ParseRecordType(recordType)
			if err != nil {
				return err
			}
			tr, err := retrieval.ParseTimeRange(start, end)
			if err != nil {
				return err
			}
			return a.withServices(cmd.Context(), func(s *services) error {
				job, err := s.retrieval.RetrieveArchivedRecords(cmd.Context(), tenant, rt, tr)
				if err != nil {
					return err
				}
				if !wait {
					defer s.retrieval.Wait()
					return a.printJSON(job)
				}
				s.retrieval.Wait()
				final, err := s.retrieval.GetJob(cmd.Context(), tenant, job.JobID)
				if err != nil {
					return err
				}
				if final == nil {
					return fmt.Errorf("%w: %s", ErrJobNotFound, job.JobID)
				}
				return a.printJSON(final)
			})
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant id")
	cmd.Flags().StringVar(&recordType, "type", "", "Record type")
	cmd.Flags().StringVar(&start, "start", "", "Range start (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&end, "end", "", "Range end, inclusive (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Print the job after all restore requests were issued")
	requireFlags(cmd, "tenant", "type", "start", "end")
	return cmd
}

func newJobCmd(a *app) *cobra.Command {
	var tenant, id string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Show one retrieval job, or list a tenant's jobs when --id is omitted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withServices(cmd.Context(), func(s *services) error {
				if id != "" {
					job, err := s.retrieval.GetJob(cmd.Context(), tenant, id)
					if err != nil {
						return err
					}
					if job == nil {
						return fmt.Errorf("%w: %s", ErrJobNotFound, id)
					}
					return a.printJSON(job)
				}

				jobs, err := s.retrieval.ListJobs(cmd.Context(), tenant)
				if err != nil {
					return err
				}
				if asJSON {
					return a.printJSON(jobs)
				}
				w := a.table()
				fmt.Fprintln(w, "JOB ID\tTYPE\tSTATUS\tSTART\tEND\tCREATED")
				for _, j := range jobs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", j.JobID, j.RecordType, j.Status,
						j.TimeRange.StartDate.Format(time.RFC3339), j.TimeRange.EndDate.Format(time.RFC3339),
						j.CreatedAt.Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant id")
	cmd.Flags().StringVar(&id, "id", "", "Job id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the job list as JSON")
	requireFlags(cmd, "tenant")
	return cmd
}

func newValidateDeletionCmd(a *app) *cobra.Command {
	var tenant, recordType string
	cmd := &cobra.Command{
		Use:   "validate-deletion <record-id>...",
		Short: "Check whether records may be deleted under the retention minimum",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, ids []string) error {
			rt, err := audit.ParseRecordType(recordType)
			if err != nil {
				return err
			}
			return a.withServices(cmd.Context(), func(s *services) error {
				check, err := s.deletion.ValidateDeletion(cmd.Context(), tenant, rt, ids)
				if err != nil {
					return err
				}
				return a.printJSON(check)
			})
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant id")
	cmd.Flags().StringVar(&recordType, "type", "", "Record type")
	requireFlags(cmd, "tenant", "type")
	return cmd
}
