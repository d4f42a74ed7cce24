package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/clubledger/backend/internal/config"
	"github.com/clubledger/backend/internal/models"
	"github.com/clubledger/backend/internal/reallocation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Msg(err.Error())
	}

	// Log format can be explicitly set.
	// If it is not set, it defaults to JSON.
	output := io.Writer(os.Stdout)
	if cfg.LogFormat == "human" {
		output = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(output).With().Timestamp().Logger()

	rootCmd := &cobra.Command{
		Use:           "clubledger",
		Short:         "Maintenance commands for the club balance ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), os.ModePerm)
			if err != nil {
				return fmt.Errorf("could not create data directory: %w", err)
			}

			return models.Connect(cfg.DatabasePath)
		},
	}

	rootCmd.AddCommand(newRecomputeCommand())
	rootCmd.AddCommand(newReallocateCommand())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Msg(err.Error())
	}
}

// newRecomputeCommand re-runs the ledger aggregator over all balance items
// of one organization, repairing the cached paid/pending/open columns.
func newRecomputeCommand() *cobra.Command {
	var organizationID string

	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute cached balance item prices for an organization",
		RunE: func(_ *cobra.Command, _ []string) error {
			orgID, err := uuid.Parse(organizationID)
			if err != nil {
				return fmt.Errorf("invalid organization ID: %w", err)
			}

			var items []models.BalanceItem
			err = models.DB.Where("organization_id = ?", orgID).Find(&items).Error
			if err != nil {
				return err
			}

			refs := make([]*models.BalanceItem, 0, len(items))
			for i := range items {
				refs = append(refs, &items[i])
			}

			err = reallocation.UpdatePaidAndPending(models.DB, refs)
			if err != nil {
				return err
			}

			log.Info().Int("items", len(items)).Msg("recomputed balance items")
			return nil
		},
	}

	cmd.Flags().StringVar(&organizationID, "organization", "", "Organization ID")
	_ = cmd.MarkFlagRequired("organization")

	return cmd
}

// newReallocateCommand runs the reallocation orchestrator for one subject.
func newReallocateCommand() *cobra.Command {
	var (
		organizationID string
		member         string
		user           string
		payingOrg      string
		registration   string
	)

	cmd := &cobra.Command{
		Use:   "reallocate",
		Short: "Reallocate payments within one subject's receivable balance",
		RunE: func(_ *cobra.Command, _ []string) error {
			orgID, err := uuid.Parse(organizationID)
			if err != nil {
				return fmt.Errorf("invalid organization ID: %w", err)
			}

			subjects := map[models.ReceivableBalanceType]string{
				models.ReceivableBalanceTypeMember:       member,
				models.ReceivableBalanceTypeUser:         user,
				models.ReceivableBalanceTypeOrganization: payingOrg,
				models.ReceivableBalanceTypeRegistration: registration,
			}

			ran := false
			for balanceType, subject := range subjects {
				if subject == "" {
					continue
				}

				subjectID, err := uuid.Parse(subject)
				if err != nil {
					return fmt.Errorf("invalid %s ID: %w", balanceType, err)
				}

				err = reallocation.Reallocate(models.DB, orgID, subjectID, balanceType)
				if err != nil {
					return err
				}

				log.Info().
					Str("subject", subjectID.String()).
					Str("type", string(balanceType)).
					Msg("reallocated")
				ran = true
			}

			if !ran {
				return fmt.Errorf("one of --member, --user, --paying-organization or --registration is required")
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&organizationID, "organization", "", "Organization ID")
	cmd.Flags().StringVar(&member, "member", "", "Member ID to reallocate")
	cmd.Flags().StringVar(&user, "user", "", "User ID to reallocate")
	cmd.Flags().StringVar(&payingOrg, "paying-organization", "", "Paying organization ID to reallocate")
	cmd.Flags().StringVar(&registration, "registration", "", "Registration ID to reallocate")
	_ = cmd.MarkFlagRequired("organization")

	return cmd
}
