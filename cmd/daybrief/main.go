package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/air23zj/pal-sub001/internal/brief"
	"github.com/air23zj/pal-sub001/internal/config"
	"github.com/air23zj/pal-sub001/internal/consolidate"
	"github.com/air23zj/pal-sub001/internal/feature"
	"github.com/air23zj/pal-sub001/internal/item"
	"github.com/air23zj/pal-sub001/internal/llm"
	"github.com/air23zj/pal-sub001/internal/novelty"
	"github.com/air23zj/pal-sub001/internal/pipeline"
	"github.com/air23zj/pal-sub001/internal/profile"
	"github.com/air23zj/pal-sub001/internal/rank"
	"github.com/air23zj/pal-sub001/internal/server"
	"github.com/air23zj/pal-sub001/internal/source"
	"github.com/air23zj/pal-sub001/internal/store"
	"github.com/air23zj/pal-sub001/internal/synthesize"
)

var version = "dev"

var (
	verbose      bool
	configPath   string
	resolvedPath string
	cfg          *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "daybrief",
	Short:   "Personal daily digest",
	Long:    "Daybrief fetches items from your sources, filters out what you have already seen, and ranks the rest into a short daily brief that learns from your feedback.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		resolvedPath = path
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(consolidateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(vipsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("daybrief", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/daybrief/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure sources, ranking, and the LLM provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and profile status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		records, err := db.CountRecords(cfg.UserID)
		if err != nil {
			return fmt.Errorf("counting records: %w", err)
		}
		briefs, err := db.CountBriefs(cfg.UserID)
		if err != nil {
			return fmt.Errorf("counting briefs: %w", err)
		}
		p, err := db.GetProfile(cfg.UserID)
		if err != nil {
			return fmt.Errorf("loading profile: %w", err)
		}

		fmt.Printf("User: %s\n\n", cfg.UserID)
		fmt.Println("Memory:")
		fmt.Printf("  Known items: %d\n", records)
		fmt.Printf("  Archived briefs: %d\n", briefs)

		if p == nil {
			fmt.Println("\nNo profile yet. One is created on the first run.")
			return nil
		}

		pending, err := db.GetFeedbackAfter(cfg.UserID, p.FeedbackWatermark)
		if err != nil {
			return fmt.Errorf("reading feedback journal: %w", err)
		}

		fmt.Println("\nProfile:")
		fmt.Printf("  Topics tracked: %d\n", len(p.TopicWeights))
		fmt.Printf("  VIPs: %d\n", len(p.VIPs))
		fmt.Printf("  Sources with trust signal: %d\n", len(p.SourceTrust))
		fmt.Printf("  Unconsolidated feedback events: %d\n", len(pending))
		return nil
	},
}

// --- run command ---

var noLLM bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: fetch -> classify -> rank -> compose",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		prof, err := loadOrCreateProfile(db)
		if err != nil {
			return err
		}

		sources := buildSources()
		if len(sources) == 0 {
			return fmt.Errorf("no sources configured; edit %s", resolvedPath)
		}

		provider := buildProvider()
		orch := pipeline.New(
			buildClassifier(db, provider),
			feature.NewExtractor(),
			buildWeights(),
			rank.NewSelector(rank.Caps{
				PerModule:  cfg.Ranking.Caps.PerModule,
				Total:      cfg.Ranking.Caps.Total,
				Highlights: cfg.Ranking.Caps.Highlights,
			}),
			pipeline.WithProgress(printProgress),
		)

		ctx := context.Background()
		fmt.Printf("Running brief for %s across %d source(s)...\n", cfg.UserID, len(sources))
		bundle, err := orch.Run(ctx, cfg.UserID, prof, sources)
		if err != nil {
			return err
		}

		if provider != nil {
			syn := synthesize.New(provider, cfg.LLM.MaxTokens)
			res := syn.Annotate(ctx, bundle)
			if res.Failed > 0 {
				log.Printf("Annotated %d highlight(s), %d failed", res.Annotated, res.Failed)
			}
		}

		markdown := brief.ComposeMarkdown(bundle)
		archiveAndPrune(db, prof, bundle, markdown)

		fmt.Println()
		fmt.Println(markdown)
		fmt.Println("\nBrief complete! Run 'daybrief serve' to browse it.")
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&noLLM, "no-llm", false, "Skip the LLM for annotation and similarity")
}

// printProgress logs module state transitions during a run.
func printProgress(ev pipeline.ProgressEvent) {
	if ev.Err != "" {
		log.Printf("[%s] %s: %s (%s)", ev.RunID[:8], ev.Module, ev.State, ev.Err)
		return
	}
	if verbose {
		log.Printf("[%s] %s: %s", ev.RunID[:8], ev.Module, ev.State)
	}
}

func buildSources() []source.Source {
	var sources []source.Source
	for _, f := range cfg.Sources.Feeds {
		sources = append(sources, source.NewRSSSource(f.Name, f.URL, f.FullContent))
	}
	for _, d := range cfg.Sources.JSONLDirs {
		sources = append(sources, source.NewJSONLSource(d.Name, d.Path))
	}
	return sources
}

// buildProvider returns the configured LLM client, or nil when the provider
// is disabled or unreachable. Everything downstream treats nil as "basic
// mode" and keeps working.
func buildProvider() *llm.OllamaClient {
	if noLLM || cfg.LLM.Provider == "" || cfg.LLM.Provider == "none" {
		return nil
	}
	client := llm.NewOllamaClient(cfg.LLM.Model, cfg.LLM.EmbeddingModel, cfg.LLM.OllamaURL)
	if !client.IsConfigured() {
		log.Printf("LLM provider not reachable at %s, running in basic mode", cfg.LLM.OllamaURL)
		return nil
	}
	return client
}

func buildClassifier(db *store.DB, provider *llm.OllamaClient) *novelty.Classifier {
	if !cfg.Novelty.Semantic {
		return novelty.NewClassifier(db)
	}

	similarity := novelty.JaccardSimilarity
	if provider != nil {
		similarity = llm.NewEmbeddingSimilarity(provider)
	}
	return novelty.NewClassifier(db,
		novelty.WithSimilarity(similarity, cfg.Novelty.SimilarityThreshold),
		novelty.WithSharedEntity(item.SharesEntity),
	)
}

func buildWeights() rank.Weights {
	w := cfg.Ranking.Weights
	if w.Version == "" {
		return rank.DefaultWeights()
	}
	return rank.Weights{
		Version:       w.Version,
		Relevance:     w.Relevance,
		Urgency:       w.Urgency,
		Credibility:   w.Credibility,
		Actionability: w.Actionability,
		Impact:        w.Impact,
	}
}

// archiveAndPrune persists the run's outputs. Persistence problems are
// logged, not fatal: the brief was already produced and printed.
func archiveAndPrune(db *store.DB, prof *profile.Profile, bundle *brief.Bundle, markdown string) {
	bundleJSON, err := json.Marshal(bundle)
	if err != nil {
		log.Printf("Error encoding bundle for archive: %v", err)
		return
	}
	err = db.SaveBrief(store.ArchivedBrief{
		RunID:          bundle.RunID,
		UserID:         bundle.UserID,
		GeneratedAt:    bundle.GeneratedAt,
		HighlightCount: len(bundle.TopHighlights),
		ModuleCount:    len(bundle.Modules),
		BodyMarkdown:   markdown,
		BundleJSON:     string(bundleJSON),
	})
	if err != nil {
		log.Printf("Error archiving brief: %v", err)
	}

	if err := db.SaveProfile(prof); err != nil {
		log.Printf("Error saving profile: %v", err)
	}

	if cfg.RetentionDays > 0 {
		cutoff := bundle.GeneratedAt.AddDate(0, 0, -cfg.RetentionDays)
		n, err := db.PruneRecords(bundle.UserID, cutoff)
		if err != nil {
			log.Printf("Error pruning memory records: %v", err)
		} else if n > 0 {
			log.Printf("Pruned %d memory record(s) older than %d days", n, cfg.RetentionDays)
		}
	}
}

// --- consolidate command ---

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Fold pending feedback into the profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		prof, err := loadOrCreateProfile(db)
		if err != nil {
			return err
		}

		events, err := db.GetFeedbackAfter(cfg.UserID, prof.FeedbackWatermark)
		if err != nil {
			return fmt.Errorf("reading feedback journal: %w", err)
		}
		if len(events) == 0 {
			fmt.Println("No new feedback to consolidate.")
			return nil
		}

		cons := consolidate.New(consolidate.Config{
			TopicStep:    cfg.Consolidation.TopicStep,
			TrustAlpha:   cfg.Consolidation.TrustAlpha,
			VIPThreshold: cfg.Consolidation.VIPThreshold,
		})
		result := cons.Apply(prof, events)

		if err := db.SaveProfile(prof); err != nil {
			return fmt.Errorf("saving profile: %w", err)
		}

		fmt.Printf("Consolidated %d event(s), skipped %d already-seen.\n", result.Applied, result.Skipped)
		for _, person := range result.Promoted {
			fmt.Printf("Promoted to VIP: %s\n", person)
		}
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, cfg.UserID, version, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (defaults to config)")
}

// --- vips command ---

var vipsCmd = &cobra.Command{
	Use:   "vips",
	Short: "Manage the VIP list",
}

var vipsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List VIPs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		prof, err := loadOrCreateProfile(db)
		if err != nil {
			return err
		}

		if len(prof.VIPs) == 0 {
			fmt.Println("No VIPs yet. Add one with: daybrief vips add <name>")
			return nil
		}

		names := make([]string, 0, len(prof.VIPs))
		for name := range prof.VIPs {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Println("VIPs:")
		for _, name := range names {
			fmt.Printf("  %s (%d engagement(s))\n", name, prof.EngagementCounts[name])
		}
		return nil
	},
}

var vipsAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a VIP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		prof, err := loadOrCreateProfile(db)
		if err != nil {
			return err
		}

		name := args[0]
		if prof.IsVIP(name) {
			fmt.Printf("%s is already a VIP.\n", name)
			return nil
		}
		prof.VIPs[name] = true
		if err := db.SaveProfile(prof); err != nil {
			return fmt.Errorf("saving profile: %w", err)
		}
		fmt.Printf("Added VIP: %s\n", name)
		return nil
	},
}

var vipsRemoveCmd = &cobra.Command{
	Use:   "remove [name]",
	Short: "Remove a VIP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		prof, err := loadOrCreateProfile(db)
		if err != nil {
			return err
		}

		name := args[0]
		if !prof.IsVIP(name) {
			return fmt.Errorf("%s is not a VIP", name)
		}
		delete(prof.VIPs, name)
		if err := db.SaveProfile(prof); err != nil {
			return fmt.Errorf("saving profile: %w", err)
		}
		fmt.Printf("Removed VIP: %s\n", name)
		return nil
	},
}

func init() {
	vipsCmd.AddCommand(vipsListCmd)
	vipsCmd.AddCommand(vipsAddCmd)
	vipsCmd.AddCommand(vipsRemoveCmd)
}

func openDB() (*store.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return store.Open(cfg.DBPath())
}

func loadOrCreateProfile(db *store.DB) (*profile.Profile, error) {
	p, err := db.GetProfile(cfg.UserID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if p == nil {
		p = profile.New(cfg.UserID)
		p.UpdatedAt = time.Now().UTC()
	}
	return p, nil
}
