package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/procurehub/dealengine/internal/catalog"
	"github.com/procurehub/dealengine/internal/collab"
	"github.com/procurehub/dealengine/internal/config"
	"github.com/procurehub/dealengine/internal/domain"
	"github.com/procurehub/dealengine/internal/engine"
	"github.com/procurehub/dealengine/internal/offer"
	"github.com/procurehub/dealengine/internal/persistence"
	"github.com/procurehub/dealengine/internal/policy"
	"github.com/procurehub/dealengine/internal/pricing"
	"github.com/procurehub/dealengine/internal/scoring"
	"github.com/procurehub/dealengine/internal/strategy"
	"github.com/procurehub/dealengine/internal/telemetry"
)

const (
	appName = "dealengine"
	version = "v1.2.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Multi-vendor procurement negotiation engine",
		Version: version,
		Long: `dealengine negotiates procurement deals against vendor seller agents:
parallel sessions, policy guardrails, TCO-aware scoring, and a ranked
shortlist at the end.`,
	}

	var (
		configPath  string
		requestPath string
		catalogPath string
		format      string
	)
	// Accept snake_case spellings of the flag names.
	rootCmd.PersistentFlags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/engine.yaml", "Path to engine configuration")
	rootCmd.PersistentFlags().StringVar(&requestPath, "request", "config/request.yaml", "Path to the procurement request")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "config/vendors.yaml", "Path to the vendor catalog")

	negotiateCmd := &cobra.Command{
		Use:   "negotiate",
		Short: "Negotiate the request against all shortlisted vendors",
		Long:  "Runs one session per shortlisted vendor in parallel and prints the ranked shortlist.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNegotiate(configPath, requestPath, catalogPath, format)
		},
	}
	negotiateCmd.Flags().StringVar(&format, "format", "table", "Output format: table, json")

	scoreCmd := &cobra.Command{
		Use:   "score",
		Short: "Score every vendor's list-price offer without negotiating",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(configPath, requestPath, catalogPath)
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the config, request, and catalog files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(configPath, requestPath, catalogPath)
		},
	}

	rootCmd.AddCommand(negotiateCmd, scoreCmd, validateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildDeps assembles the engine dependency bundle from configuration.
func buildDeps(cfg config.Config, bus collab.EventBus) (engine.Deps, error) {
	calc, err := pricing.NewCalculator(cfg.Engine.DiscountRateAnnual)
	if err != nil {
		return engine.Deps{}, err
	}
	scorer, err := scoring.NewScorer(calc, cfg.Weights, cfg.Engine.StrictSpecMatch)
	if err != nil {
		return engine.Deps{}, err
	}
	checker, err := policy.NewChecker(calc, cfg.Engine.RunMode)
	if err != nil {
		return engine.Deps{}, err
	}
	if bus == nil {
		bus = collab.LogBus{Log: log.Logger}
	}
	return engine.Deps{
		Checker: checker,
		Scorer:  scorer,
		Calc:    calc,
		Gen:     offer.NewGenerator(),
		Emitter: collab.NewEmitter(bus, nil, log.Logger),
		Clock:   time.Now,
		Log:     log.Logger,
	}, nil
}

func runNegotiate(configPath, requestPath, catalogPath, format string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	req, err := catalog.LoadRequest(requestPath)
	if err != nil {
		return err
	}
	cat, err := catalog.LoadFile(catalogPath)
	if err != nil {
		return err
	}
	plan, err := cfg.Plan()
	if err != nil {
		return err
	}
	deps, err := buildDeps(cfg, nil)
	if err != nil {
		return err
	}

	var store engine.SessionStore
	if cfg.Postgres.DSN != "" {
		pg, err := persistence.Open(ctx, cfg.Postgres.DSN, log.Logger)
		if err != nil {
			return err
		}
		defer pg.Close()
		store = pg
	}

	vendors := catalog.Shortlist(req, cat.Vendors)
	if len(vendors) == 0 {
		return fmt.Errorf("%w: no vendor in the catalog can serve request %s", domain.ErrConfig, req.ID)
	}
	vendors, err = cachedVendors(ctx, cfg, vendors)
	if err != nil {
		return err
	}
	contexts := map[string]strategy.VendorContext{}
	for id, vctx := range cat.Contexts {
		contexts[id] = vctx
	}

	reg := prometheus.NewRegistry()
	deps.Metrics = telemetry.NewMetrics(reg)
	var ops *telemetry.Server
	if cfg.Ops.ListenAddr != "" {
		ops = telemetry.NewServer(cfg.Ops.ListenAddr, reg, log.Logger)
		go func() {
			if err := ops.Start(); err != nil {
				log.Warn().Err(err).Msg("ops server stopped")
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			ops.Shutdown(shutCtx)
		}()
	}

	coord := engine.NewCoordinator(engine.CoordinatorConfig{
		MaxConcurrent: cfg.Engine.MaxConcurrentSessions,
		Session: engine.SessionConfig{
			RunMode:      cfg.Engine.RunMode,
			RoundTimeout: cfg.Engine.RoundTimeout(),
		},
	}, deps, store)

	log.Info().
		Str("request_id", req.ID).
		Int("vendors", len(vendors)).
		Str("preset", plan.PersonalityPreset).
		Msg("starting negotiation")

	result, err := coord.Negotiate(ctx, req, vendors, plan, contexts)
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return printShortlist(result)
}

// cachedVendors routes vendor profiles through the Redis read-through
// cache when one is configured. The file-loaded profile is the source
// of truth on a miss.
func cachedVendors(ctx context.Context, cfg config.Config, vendors []*domain.VendorProfile) ([]*domain.VendorProfile, error) {
	if cfg.Redis.Addr == "" {
		return vendors, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	cache := catalog.NewCache(rdb, time.Duration(cfg.Redis.CacheTTLSeconds)*time.Second, log.Logger)

	out := make([]*domain.VendorProfile, 0, len(vendors))
	for _, v := range vendors {
		v := v
		cached, err := cache.Vendor(ctx, v.ID, func(context.Context) (*domain.VendorProfile, error) {
			return v, nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, cached)
	}
	return out, nil
}

func printShortlist(result engine.Result) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tVENDOR\tOUTCOME\tROUNDS\tFINAL PRICE\tSAVINGS\tUTILITY")
	for i, s := range result.Sessions {
		price := "-"
		if s.State.FinalOffer != nil {
			price = fmt.Sprintf("%.2f", s.State.FinalOffer.UnitPrice)
		}
		fmt.Fprintf(w, "%d\t%s\t%s (%s)\t%d\t%s\t%.2f\t%.3f\n",
			i+1, s.State.VendorID, s.State.Outcome, s.State.OutcomeReason,
			s.State.Round, price, s.State.SavingsAchieved, s.Utility)
	}
	return w.Flush()
}

func runScore(configPath, requestPath, catalogPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	req, err := catalog.LoadRequest(requestPath)
	if err != nil {
		return err
	}
	cat, err := catalog.LoadFile(catalogPath)
	if err != nil {
		return err
	}
	deps, err := buildDeps(cfg, collab.NopBus{})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VENDOR\tLIST\tTCO\tTCO FIT\tSPEC\tCOMPLIANCE\tRISK\tTIME\tUTILITY")
	for i := range cat.Vendors {
		v := &cat.Vendors[i]
		list := v.ListPrice(req.Quantity)
		if list <= 0 {
			continue
		}
		listOffer := domain.OfferComponents{
			UnitPrice: list, Currency: v.Currency, Quantity: req.Quantity,
			TermMonths: 12, Payment: domain.PaymentNet30,
		}
		score, err := deps.Scorer.ScoreBuyer(req, v, listOffer)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\n",
			v.ID, list, score.TCO, score.TCOFit, score.SpecMatch,
			score.Compliance, score.Risk, score.Time, score.Utility)
	}
	return w.Flush()
}

func runValidate(configPath, requestPath, catalogPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	req, err := catalog.LoadRequest(requestPath)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	calc, err := pricing.NewCalculator(cfg.Engine.DiscountRateAnnual)
	if err != nil {
		return err
	}
	checker, err := policy.NewChecker(calc, cfg.Engine.RunMode)
	if err != nil {
		return err
	}
	if err := checker.PrecheckRequest(req); err != nil {
		return fmt.Errorf("request: %w", err)
	}
	cat, err := catalog.LoadFile(catalogPath)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	fmt.Printf("config OK (%d max rounds, %s mode)\n", cfg.Engine.MaxRounds, cfg.Engine.RunMode)
	fmt.Printf("request OK (%s, qty %d, budget %.2f)\n", req.ID, req.Quantity, req.BudgetMax)
	fmt.Printf("catalog OK (%d vendors, %d shortlisted)\n", len(cat.Vendors), len(catalog.Shortlist(req, cat.Vendors)))
	return nil
}
