package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-validator/internal/logger"
	"github.com/spigell/cv-validator/internal/metrics"
	"github.com/spigell/cv-validator/internal/validation"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate claims against a single document and deliver the result",
	Run: func(cmd *cobra.Command, _ []string) {
		validate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("document", "p", "", "path to the uploaded document")
	validateCmd.Flags().StringP("submission-id", "s", "", "submission id (generated when unset)")
	validateCmd.Flags().StringP("claims", "c", "", "JSON file with claimed field values")
	validateCmd.Flags().StringArray("claim", nil, "claimed field value as key=value, may be repeated")
	validateCmd.Flags().BoolP("interactive", "i", false, "prompt for claims when none were given")

	validateCmd.MarkFlagRequired("document")
}

func validate(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig(viper.GetViper())
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	claims, err := collectClaims(cmd)
	if err != nil {
		logger.Fatal("reading claims", zap.Error(err))
	}

	submissionID, _ := cmd.Flags().GetString("submission-id")
	if submissionID == "" {
		submissionID = uuid.NewString()
	}
	documentRef, _ := cmd.Flags().GetString("document")

	m := metrics.New(prometheus.NewRegistry())

	validator, cleanup, err := newValidator(ctx, config, logger, m)
	if err != nil {
		logger.Fatal("building the validator", zap.Error(err))
	}
	defer cleanup()

	logger.Info("starting the validation", zap.String("version", version), zap.Int("claims", len(claims)))

	result, err := validator.Validate(ctx, submissionID, documentRef, claims)

	// do not bother error since the result always marshals
	pretty, _ := json.MarshalIndent(result, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(pretty))

	var deliveryErr *validation.DeliveryError
	switch {
	case errors.As(err, &deliveryErr):
		cleanup()
		logger.Fatal("delivering the result", zap.Error(err))
	case err != nil:
		cleanup()
		logger.Fatal("validation failed", zap.Error(err))
	}

	logger.Info("validation finished", zap.String("status", string(result.Status)))
}

func collectClaims(cmd *cobra.Command) (validation.Claims, error) {
	var claims validation.Claims

	if file, _ := cmd.Flags().GetString("claims"); file != "" {
		fromFile, err := readClaimsFile(file)
		if err != nil {
			return nil, err
		}
		claims = fromFile
	}

	pairs, _ := cmd.Flags().GetStringArray("claim")
	claims, err := parseClaimFlags(claims, pairs)
	if err != nil {
		return nil, err
	}

	if interactive, _ := cmd.Flags().GetBool("interactive"); interactive && len(claims) == 0 {
		return promptClaims()
	}

	return claims, nil
}
