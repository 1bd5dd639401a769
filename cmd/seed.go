/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

func seedCommands(t *tallyInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "load reference data",
	}
	cmd.AddCommand(seedChartCommand(t))
	return cmd
}

// seedChartCommand loads a YAML chart of accounts. Codes that already exist are skipped, so
// the command can be rerun after editing the file.
func seedChartCommand(t *tallyInstance) *cobra.Command {
	return &cobra.Command{
		Use:   "chart [file]",
		Short: "create the accounts listed in a YAML chart",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			f, err := os.Open(args[0])
			if err != nil {
				log.Fatalf("could not open chart: %v", err)
			}
			defer f.Close()

			result, err := t.tally.SeedChart(context.Background(), f)
			if err != nil {
				log.Fatalf("could not seed chart: %v", err)
			}
			fmt.Printf("Created %d accounts, skipped %d existing codes\n", len(result.Created), len(result.Skipped))
		},
	}
}
