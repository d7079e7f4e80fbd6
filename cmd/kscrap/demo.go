package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kscrap/kscrap/pkg/listing"
	"github.com/kscrap/kscrap/pkg/repository"
)

func newDemoCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Store a few sample listings and save them",
		Long: `Store two listings, widen the repository with a dwelling and save. A property
offered afterwards is rejected because the stored type can widen only once.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(v)
			if err != nil {
				return err
			}
			defer env.close(context.Background())

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			repo, err := repository.Create(&env.cfg.Repository, []listing.Listing{}, env.repositoryOptions()...)
			if err != nil {
				return err
			}
			defer repo.Close(ctx) //nolint:errcheck

			runDemo(cmd.OutOrStdout(), repo)
			if err := repo.Save(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved to %s\n", repo.FilePath())
			return nil
		},
	}
}

func runDemo(out io.Writer, repo *repository.Repository) {
	sol := listing.Listing{Street: "Sol", City: "Chiclana", Area: 300, Price: 300000}
	luna := listing.Listing{Street: "Luna", City: "San Fernando", Area: 450, Price: 450000}

	dwelling := &listing.Dwelling{Rooms: 4}
	dwelling.Listing = listing.Listing{Street: "Mar", City: "Cadiz", Area: 120, Price: 210000}
	dwelling.Currency = "EUR"
	dwelling.Contract = listing.ContractSale
	dwelling.DetailURL = "https://example.com/mar"

	property := &listing.Property{Listing: sol, Currency: "EUR", Contract: listing.ContractRent}

	for _, entry := range []struct {
		label string
		value interface{}
	}{
		{"listing Sol", sol},
		{"listing Luna", luna},
		{"dwelling Mar", dwelling},
		{"property Sol", property},
	} {
		fmt.Fprintf(out, "%-14s %s\n", entry.label, repo.Add(entry.value))
	}
	fmt.Fprintf(out, "stored %d rows as %s\n", repo.Count(), repo.CurrentSchema().Name())
}
