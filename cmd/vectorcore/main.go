package main

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/kavlex/vectorcore/pkg/engine"
	"github.com/kavlex/vectorcore/pkg/fusion"
	"github.com/kavlex/vectorcore/pkg/record"
	"github.com/kavlex/vectorcore/pkg/vectorops"
	"github.com/spf13/cobra"
)

var (
	dataDir   string
	dimension int
	metric    string
)

var rootCmd = &cobra.Command{
	Use:   "vectorcore",
	Short: "CLI tool for the vectorcore embedded vector search engine",
	Long:  `A command-line interface for managing and querying a vectorcore data directory.`,
}

func openStore() (*engine.Store, error) {
	opts := []engine.Option{engine.WithDimension(dimension)}
	if metric != "" {
		opts = append(opts, engine.WithMetric(vectorops.Metric(metric)))
	}
	return engine.Open(dataDir, opts...)
}

var upsertCmd = &cobra.Command{
	Use:   "upsert <id>",
	Short: "Insert or overwrite a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		vectorStr, _ := cmd.Flags().GetString("vector")
		textStr, _ := cmd.Flags().GetString("text")
		metadataStr, _ := cmd.Flags().GetString("metadata")

		vector, err := parseVector(vectorStr)
		if err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		in := engine.UpsertInput{ID: id, Dense: vector}
		if textStr != "" {
			in.Text = map[string]string{"body": textStr}
		}
		if metadataStr != "" {
			meta, err := parseMetadata(metadataStr)
			if err != nil {
				return err
			}
			in.Metadata = meta
		}

		if _, err := store.Upsert(in); err != nil {
			return fmt.Errorf("upsert failed: %w", err)
		}
		fmt.Printf("record %q upserted\n", id)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch a record by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		rec, err := store.Get(args[0])
		if err != nil {
			return fmt.Errorf("get failed: %w", err)
		}
		data, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println(string(data))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Tombstone a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Delete(args[0]); err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}
		fmt.Printf("record %q deleted\n", args[0])
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a dense nearest-neighbor query",
	RunE: func(cmd *cobra.Command, args []string) error {
		vectorStr, _ := cmd.Flags().GetString("vector")
		k, _ := cmd.Flags().GetInt("top-k")
		filterStr, _ := cmd.Flags().GetString("filter")

		vector, err := parseVector(vectorStr)
		if err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		results, err := store.Query(vector, engine.QueryOptions{K: k, FilterExpr: filterStr})
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		return printResults(results)
	},
}

var queryTextCmd = &cobra.Command{
	Use:   "query-text <query>",
	Short: "Run a BM25 text query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, _ := cmd.Flags().GetInt("top-k")
		filterStr, _ := cmd.Flags().GetString("filter")

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		results, err := store.QueryText(args[0], engine.QueryOptions{K: k, FilterExpr: filterStr})
		if err != nil {
			return fmt.Errorf("query-text failed: %w", err)
		}
		return printResults(results)
	},
}

var queryHybridCmd = &cobra.Command{
	Use:   "query-hybrid <query>",
	Short: "Run a fused dense+sparse query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vectorStr, _ := cmd.Flags().GetString("vector")
		k, _ := cmd.Flags().GetInt("top-k")
		strategy, _ := cmd.Flags().GetString("strategy")
		filterStr, _ := cmd.Flags().GetString("filter")

		vector, err := parseVector(vectorStr)
		if err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		results, err := store.QueryHybrid(vector, args[0], engine.QueryOptions{
			K: k, Strategy: fusion.Strategy(strategy), FilterExpr: filterStr,
		})
		if err != nil {
			return fmt.Errorf("query-hybrid failed: %w", err)
		}
		return printResults(results)
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Rebuild the HNSW graph and text index over live records only",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Compact(); err != nil {
			return fmt.Errorf("compact failed: %w", err)
		}
		fmt.Println("compaction complete")
		return nil
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <name>",
	Short: "Write a named snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		dir, err := store.Snapshot(args[0])
		if err != nil {
			return fmt.Errorf("snapshot failed: %w", err)
		}
		fmt.Printf("snapshot written to %s\n", dir)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		data, _ := json.MarshalIndent(store.Stats(), "", "  ")
		fmt.Println(string(data))
		return nil
	},
}

func printResults(results []engine.Result) error {
	for i, r := range results {
		fmt.Printf("%d. %s (score: %.4f)\n", i+1, r.ID, r.Score)
	}
	return nil
}

func parseVector(s string) ([]float32, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	vec := make([]float32, 0, len(parts))
	for _, p := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		vec = append(vec, float32(val))
	}
	return vec, nil
}

func parseMetadata(s string) (record.Metadata, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("invalid metadata JSON: %w", err)
	}
	return toRecordMetadata(m), nil
}

func toRecordMetadata(m map[string]any) record.Metadata {
	out := make(record.Metadata, len(m))
	for k, v := range m {
		out[k] = toRecordValue(v)
	}
	return out
}

func toRecordValue(v any) record.Value {
	switch t := v.(type) {
	case string:
		return record.String(t)
	case float64:
		return record.Number(t)
	case bool:
		return record.Bool(t)
	case []any:
		vals := make([]record.Value, len(t))
		for i, e := range t {
			vals[i] = toRecordValue(e)
		}
		return record.Array(vals...)
	case map[string]any:
		return record.Map(toRecordMetadata(t))
	default:
		return record.Value{}
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dataDir, "dir", "d", "./vectorcore-data", "Data directory path")
	rootCmd.PersistentFlags().IntVarP(&dimension, "dimensions", "n", 0, "Vector dimension (0 for auto-detect)")
	rootCmd.PersistentFlags().StringVarP(&metric, "metric", "m", "", "Distance metric (cosine/dot/euclidean)")

	upsertCmd.Flags().String("vector", "", "Dense vector values (comma-separated)")
	upsertCmd.Flags().String("text", "", "Raw text to index under the \"body\" field")
	upsertCmd.Flags().String("metadata", "", "Metadata as JSON")

	queryCmd.Flags().String("vector", "", "Query vector (comma-separated)")
	queryCmd.Flags().Int("top-k", 10, "Number of results")
	queryCmd.Flags().String("filter", "", "Filter expression, e.g. category = 'a' AND price < 10")
	queryCmd.MarkFlagRequired("vector")

	queryTextCmd.Flags().Int("top-k", 10, "Number of results")
	queryTextCmd.Flags().String("filter", "", "Filter expression")

	queryHybridCmd.Flags().String("vector", "", "Query vector (comma-separated)")
	queryHybridCmd.Flags().Int("top-k", 10, "Number of results")
	queryHybridCmd.Flags().String("strategy", "rrf", "Fusion strategy (rrf/weighted_sum/dbsf/relative_score/max/min)")
	queryHybridCmd.Flags().String("filter", "", "Filter expression")
	queryHybridCmd.MarkFlagRequired("vector")

	rootCmd.AddCommand(upsertCmd, getCmd, deleteCmd, queryCmd, queryTextCmd, queryHybridCmd, compactCmd, snapshotCmd, statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
