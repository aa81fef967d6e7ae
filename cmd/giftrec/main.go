// Copyright 2026 giftrec Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"

	"github.com/giftwise/giftrec/base/log"
	"github.com/giftwise/giftrec/cmd/version"
	"github.com/giftwise/giftrec/config"
	"github.com/giftwise/giftrec/dataset"
	"github.com/giftwise/giftrec/model"
	"github.com/giftwise/giftrec/model/hybrid"
	"github.com/giftwise/giftrec/recommend"
	"github.com/giftwise/giftrec/storage/blob"
	"github.com/giftwise/giftrec/storage/data"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var globalConfig *config.Config

var rootCommand = &cobra.Command{
	Use:           "giftrec",
	Short:         "Hybrid gift recommender.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// setup logger
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)

		// load config
		configPath, _ := cmd.Flags().GetString("config")
		var err error
		globalConfig, err = config.LoadConfig(configPath)
		if err != nil {
			return errors.Annotate(err, "failed to load config")
		}
		return nil
	},
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Show build information.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprint(cmd.OutOrStdout(), version.BuildInfo())
	},
}

var importCommand = &cobra.Command{
	Use:   "import",
	Short: "Import interactions and products from CSV files into the data store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		interactionsPath, _ := cmd.Flags().GetString("interactions")
		productsPath, _ := cmd.Flags().GetString("products")
		if interactionsPath == "" && productsPath == "" {
			return errors.New("one of --interactions or --products is required")
		}
		ctx := cmd.Context()
		database, err := data.Connect(ctx, globalConfig.Database)
		if err != nil {
			return errors.Trace(err)
		}
		defer database.Close()
		if interactionsPath != "" {
			interactions, err := dataset.LoadInteractionsCSV(interactionsPath)
			if err != nil {
				return errors.Trace(err)
			}
			if err = database.BatchInsertInteractions(ctx, interactions); err != nil {
				return errors.Trace(err)
			}
			log.Logger().Info("import interactions",
				zap.String("path", interactionsPath),
				zap.Int("n_interactions", len(interactions)))
		}
		if productsPath != "" {
			products, err := dataset.LoadProductsCSV(productsPath)
			if err != nil {
				return errors.Trace(err)
			}
			if err = database.BatchInsertProducts(ctx, products); err != nil {
				return errors.Trace(err)
			}
			log.Logger().Info("import products",
				zap.String("path", productsPath),
				zap.Int("n_products", len(products)))
		}
		return nil
	},
}

var trainCommand = &cobra.Command{
	Use:   "train",
	Short: "Train a model on the data store and save it to the blob store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		database, err := data.Connect(ctx, globalConfig.Database)
		if err != nil {
			return errors.Trace(err)
		}
		defer database.Close()
		store, err := blob.New(globalConfig.Blob)
		if err != nil {
			return errors.Trace(err)
		}
		service := recommend.NewService(globalConfig, database, store)
		if err = service.Train(ctx); err != nil {
			return errors.Trace(err)
		}
		snapshot := service.Snapshot()
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "trained %s version %d\n",
			snapshot.Model.Name(), snapshot.Version)
		return nil
	},
}

var recommendCommand = &cobra.Command{
	Use:   "recommend USER_ID",
	Short: "Recommend products to a user.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("number")
		candidates, _ := cmd.Flags().GetStringSlice("candidates")
		service, err := loadService(cmd.Context())
		if err != nil {
			return errors.Trace(err)
		}
		recs, err := service.Recommend(cmd.Context(), args[0], candidates, n)
		if err != nil {
			return errors.Trace(err)
		}
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Item", "Score", "Confidence", "Explanation")
		for _, rec := range recs {
			if err = table.Append([]string{
				rec.ItemId,
				strconv.FormatFloat(rec.Score, 'f', 4, 64),
				strconv.FormatFloat(rec.Confidence, 'f', 2, 64),
				rec.Explanation,
			}); err != nil {
				return errors.Trace(err)
			}
		}
		return errors.Trace(table.Render())
	},
}

var similarCommand = &cobra.Command{
	Use:   "similar ITEM_ID",
	Short: "List products similar to a product.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("number")
		service, err := loadService(cmd.Context())
		if err != nil {
			return errors.Trace(err)
		}
		items, err := service.SimilarItems(args[0], n)
		if err != nil {
			return errors.Trace(err)
		}
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Item", "Score")
		for _, item := range items {
			if err = table.Append([]string{item.ItemId, strconv.FormatFloat(item.Score, 'f', 4, 64)}); err != nil {
				return errors.Trace(err)
			}
		}
		return errors.Trace(table.Render())
	},
}

var explainCommand = &cobra.Command{
	Use:   "explain USER_ID ITEM_ID",
	Short: "Explain why a product is recommended to a user.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := loadService(cmd.Context())
		if err != nil {
			return errors.Trace(err)
		}
		explanation, err := service.Explain(args[0], args[1])
		if err != nil {
			return errors.Trace(err)
		}
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Explanation", "Confidence", "Factors")
		if err = table.Append([]string{
			explanation.Explanation,
			strconv.FormatFloat(explanation.Confidence, 'f', 2, 64),
			fmt.Sprint(explanation.Factors),
		}); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(table.Render())
	},
}

var evaluateCommand = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a model on a held out split of interactions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		interactions, products, err := loadDataset(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		testRatio := globalConfig.Training.TestRatio
		if cmd.Flags().Changed("test-ratio") {
			testRatio, _ = cmd.Flags().GetFloat32("test-ratio")
		}
		train, test := dataset.SplitInteractions(interactions, testRatio, globalConfig.Training.RandomState)
		log.Logger().Info("split dataset",
			zap.Int("n_train", len(train)),
			zap.Int("n_test", len(test)))

		m := hybrid.NewHybrid(globalConfig.GetParams())
		if err = m.Fit(ctx, train, products, globalConfig.Training.GetFitConfig()); err != nil {
			return errors.Trace(err)
		}
		scores, err := model.Evaluate(ctx, m, test, globalConfig.Training.KValues)
		if err != nil {
			return errors.Trace(err)
		}
		return printScores(cmd.OutOrStdout(), scores)
	},
}

// loadDataset reads CSV files if given, otherwise the data store.
func loadDataset(cmd *cobra.Command) ([]dataset.Interaction, []dataset.Product, error) {
	interactionsPath, _ := cmd.Flags().GetString("interactions")
	productsPath, _ := cmd.Flags().GetString("products")
	if interactionsPath != "" {
		interactions, err := dataset.LoadInteractionsCSV(interactionsPath)
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		var products []dataset.Product
		if productsPath != "" {
			if products, err = dataset.LoadProductsCSV(productsPath); err != nil {
				return nil, nil, errors.Trace(err)
			}
		}
		return interactions, products, nil
	}
	database, err := data.Connect(cmd.Context(), globalConfig.Database)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	defer database.Close()
	interactions, err := database.GetInteractions(cmd.Context())
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	products, err := database.GetProducts(cmd.Context())
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return interactions, products, nil
}

// loadService restores the latest saved model. No data store is needed for serving.
func loadService(ctx context.Context) (*recommend.Service, error) {
	store, err := blob.New(globalConfig.Blob)
	if err != nil {
		return nil, errors.Trace(err)
	}
	service := recommend.NewService(globalConfig, nil, store)
	if err = service.Load(ctx); err != nil {
		return nil, errors.Trace(err)
	}
	return service, nil
}

func printScores(w io.Writer, scores map[string]float32) error {
	names := lo.Keys(scores)
	sort.Strings(names)
	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Score")
	for _, name := range names {
		if err := table.Append([]string{name, strconv.FormatFloat(float64(scores[name]), 'f', 4, 32)}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

func init() {
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	log.AddFlags(rootCommand.PersistentFlags())

	importCommand.Flags().String("interactions", "", "interactions CSV file")
	importCommand.Flags().String("products", "", "products CSV file")
	recommendCommand.Flags().IntP("number", "n", 0, "number of recommendations")
	recommendCommand.Flags().StringSlice("candidates", nil, "restrict recommendations to these products")
	similarCommand.Flags().IntP("number", "n", 0, "number of similar products")
	evaluateCommand.Flags().String("interactions", "", "interactions CSV file instead of the data store")
	evaluateCommand.Flags().String("products", "", "products CSV file instead of the data store")
	evaluateCommand.Flags().Float32("test-ratio", 0, "fraction of each user's interactions held out")

	rootCommand.AddCommand(versionCommand, importCommand, trainCommand, recommendCommand,
		similarCommand, explainCommand, evaluateCommand)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCommand.ExecuteContext(ctx); err != nil {
		log.Logger().Fatal("failed to run command", zap.Error(err))
	}
}
