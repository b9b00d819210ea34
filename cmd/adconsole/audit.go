package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"adconsole/internal/archive"
	"adconsole/internal/audit"
	"adconsole/internal/config"
	"adconsole/internal/models"
	gos3 "adconsole/pkg/s3"
)

const presignExpiry = 24 * time.Hour

func newAuditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit log archive and streaming",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Build and verify signed audit archives",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	archiveCmd.AddCommand(newArchiveBuildCommand())
	archiveCmd.AddCommand(newArchiveVerifyCommand())

	cmd.AddCommand(archiveCmd)
	cmd.AddCommand(newAuditTailCommand())
	return cmd
}

func newArchiveBuildCommand() *cobra.Command {
	var (
		since, until string
		output       string
		recipients   []string
		upload       bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Write audit entries in [since, until) to a signed tar.zst archive",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			from, to, err := parseRange(since, until)
			if err != nil {
				return err
			}
			signer, err := archive.NewSignerFromEnv()
			if err != nil {
				return err
			}
			recips, err := archive.ParseRecipients(recipients)
			if err != nil {
				return err
			}
			store, err := config.LoadStore(ctx)
			if err != nil {
				return err
			}
			if upload && store.ArchiveBucket == "" {
				return errors.New("--upload requires ARCHIVE_BUCKET")
			}

			dir, err := openDirectory(ctx, store, nil)
			if err != nil {
				return err
			}
			defer dir.Close()

			m, err := archive.Build(ctx, archive.BuildConfig{
				Source: func(ctx context.Context, fn func([]models.AuditLog) error) error {
					return audit.Range(ctx, dir.db, from, to, 500, fn)
				},
				Since:      from,
				Until:      to,
				Output:     output,
				Signer:     signer,
				Recipients: recips,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote archive %s (%d entries, sha256 %s)\n", output, m.Entries.Count, m.Entries.SHA256)

			if !upload {
				return nil
			}
			client, err := gos3.NewClientFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("s3 client: %w", err)
			}
			key := archive.ObjectKey(m)
			if err := archive.Upload(ctx, client, store.ArchiveBucket, key, output); err != nil {
				return err
			}
			url, err := client.PresignGet(ctx, store.ArchiveBucket, key, presignExpiry)
			if err != nil {
				return fmt.Errorf("presign: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded s3://%s/%s\n%s\n", store.ArchiveBucket, key, url)
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "Start of the range (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "End of the range, exclusive (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&output, "output", "", "Destination archive file")
	cmd.Flags().StringSliceVar(&recipients, "recipient", nil, "age recipient to encrypt the archive to (repeatable)")
	cmd.Flags().BoolVar(&upload, "upload", false, "Upload the archive to ARCHIVE_BUCKET")
	_ = cmd.MarkFlagRequired("since")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newArchiveVerifyCommand() *cobra.Command {
	var (
		file       string
		identities []string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check an archive's signature and entry digest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ids, err := archive.ParseIdentities(identities)
			if err != nil {
				return err
			}
			// Without configured keys the archive is checked against its embedded public key.
			signer, _ := archive.NewSignerFromEnv()
			m, err := archive.Verify(cmd.Context(), archive.VerifyConfig{Path: file, Signer: signer, Identities: ids})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "verified archive signed at %s: %d entries from %s\n",
				m.CreatedAt.Format(time.RFC3339), m.Entries.Count, m.Since.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to the archive")
	cmd.Flags().StringSliceVar(&identities, "identity", nil, "age identity for encrypted archives (repeatable)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newAuditTailCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tail",
		Short: "Print audit entries as they are committed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := config.LoadStore(ctx)
			if err != nil {
				return err
			}
			if store.NATSURL == "" {
				return errors.New("NATS_URL is required")
			}
			b, err := connectBus(ctx, store.NATSURL)
			if err != nil {
				return err
			}
			defer b.Close()

			out := cmd.OutOrStdout()
			sub, err := b.Subscribe(ctx, audit.Subject, "", func(_ context.Context, data []byte) error {
				entry, err := audit.DecodeEvent(data)
				if err != nil {
					return err
				}
				return audit.WriteLine(out, entry)
			}, nats.DeliverNew())
			if err != nil {
				return err
			}
			defer sub.Close()

			<-ctx.Done()
			return nil
		},
	}
}

func parseRange(since, until string) (time.Time, time.Time, error) {
	from, err := parseTime(since)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("--since: %w", err)
	}
	var to time.Time
	if until != "" {
		if to, err = parseTime(until); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--until: %w", err)
		}
		if !to.After(from) {
			return time.Time{}, time.Time{}, errors.New("--until must be after --since")
		}
	}
	return from, to, nil
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, v)
}
