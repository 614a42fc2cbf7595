package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/collection-sorter/pkg/adapters/remote"
	"github.com/wadjakorntonsri/collection-sorter/pkg/config"
	"github.com/wadjakorntonsri/collection-sorter/pkg/core/domain"
	"github.com/wadjakorntonsri/collection-sorter/pkg/core/ordering"
	"github.com/wadjakorntonsri/collection-sorter/pkg/core/services"
	"github.com/wadjakorntonsri/collection-sorter/pkg/logger"
)

const usage = "expected 'collections', 'filters', 'products' or 'reorder' subcommands"

type app struct {
	cfg    *config.Config
	log    *zap.Logger
	client *remote.Client
	tokens *services.TokenLifecycle
}

func main() {
	collectionsCmd := flag.NewFlagSet("collections", flag.ExitOnError)
	listPage := collectionsCmd.Int("page", 1, "page of the collection list")
	listSize := collectionsCmd.Int("size", 10, "collections per page")

	filtersCmd := flag.NewFlagSet("filters", flag.ExitOnError)
	filtersCollection := filtersCmd.Int64("collection", 0, "collection id")

	productsCmd := flag.NewFlagSet("products", flag.ExitOnError)
	productsCollection := productsCmd.Int64("collection", 0, "collection id")
	productsPage := productsCmd.Int("page", 1, "page to fetch")
	var productFilters filterFlags
	productsCmd.Var(&productFilters, "filter", "filter as id=value[:comparisonType], repeatable")

	reorderCmd := flag.NewFlagSet("reorder", flag.ExitOnError)
	reorderCollection := reorderCmd.Int64("collection", 0, "collection id")
	reorderFile := reorderCmd.String("file", "", "JSON file with reorder steps")
	reorderPrime := reorderCmd.Bool("prime", false, "load the whole unfiltered collection before replaying")
	reorderRenumber := reorderCmd.Bool("renumber", false, "compact colliding positions instead of rejecting them")
	reorderSubmit := reorderCmd.Bool("submit", false, "submit the payload to the save endpoint")

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg := config.Load()
	log := logger.Must(cfg.AppEnv)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := newApp(cfg, log)

	switch os.Args[1] {
	case "collections":
		collectionsCmd.Parse(os.Args[2:])
		a.login(ctx)
		a.listCollections(ctx, *listPage, *listSize)
	case "filters":
		filtersCmd.Parse(os.Args[2:])
		requireCollection(filtersCmd, *filtersCollection)
		a.login(ctx)
		a.listFilters(ctx, *filtersCollection)
	case "products":
		productsCmd.Parse(os.Args[2:])
		requireCollection(productsCmd, *productsCollection)
		a.login(ctx)
		a.listProducts(ctx, *productsCollection, *productsPage, productFilters)
	case "reorder":
		reorderCmd.Parse(os.Args[2:])
		requireCollection(reorderCmd, *reorderCollection)
		if *reorderFile == "" {
			reorderCmd.PrintDefaults()
			os.Exit(1)
		}
		policy, err := ordering.ParseCollisionPolicy(cfg.CollisionPolicy)
		if err != nil {
			log.Fatal("invalid COLLISION_POLICY", zap.Error(err))
		}
		if *reorderRenumber {
			policy = ordering.PolicyRenumber
		}
		a.login(ctx)
		a.reorder(ctx, *reorderCollection, *reorderFile, policy, *reorderPrime, *reorderSubmit)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func newApp(cfg *config.Config, log *zap.Logger) *app {
	if cfg.APIBaseURL == "" {
		log.Fatal("API_BASE_URL is not set")
	}

	client := remote.NewClient(cfg.APIBaseURL, cfg.APISecretToken,
		remote.WithSaveURL(cfg.SaveURL),
		remote.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		remote.WithLogger(log))

	tokens := services.NewTokenLifecycle(client,
		services.WithRefreshThreshold(cfg.RefreshThreshold),
		services.WithRefreshTimeout(cfg.RefreshTimeout),
		services.WithTokenLogger(log))

	return &app{cfg: cfg, log: log, client: client, tokens: tokens}
}

func requireCollection(fs *flag.FlagSet, id int64) {
	if id <= 0 {
		fs.PrintDefaults()
		os.Exit(1)
	}
}

func (a *app) login(ctx context.Context) {
	if a.cfg.Username == "" || a.cfg.Password == "" {
		a.log.Fatal("SORTER_USERNAME and SORTER_PASSWORD must be set")
	}
	if _, err := a.tokens.Login(ctx, a.cfg.Username, a.cfg.Password); err != nil {
		a.log.Fatal("login failed", zap.Error(err))
	}
}

func (a *app) accessToken(ctx context.Context) string {
	token, err := a.tokens.AccessToken(ctx)
	if err != nil {
		a.log.Fatal("no access token", zap.Error(err))
	}
	return token
}

func (a *app) listCollections(ctx context.Context, page, size int) {
	collections, meta, err := a.client.ListCollections(ctx, a.accessToken(ctx), page, size)
	if err != nil {
		a.log.Fatal("list collections failed", zap.Error(err))
	}
	printJSON(map[string]any{"meta": meta, "data": collections})
}

func (a *app) listFilters(ctx context.Context, collectionID int64) {
	filters, err := a.client.FetchCollectionFilters(ctx, a.accessToken(ctx), collectionID)
	if err != nil {
		a.log.Fatal("fetch filters failed", zap.Error(err))
	}
	printJSON(filters)
}

func (a *app) listProducts(ctx context.Context, collectionID int64, page int, filters filterFlags) {
	session := services.NewEditSession(a.client, a.tokens, collectionID,
		services.WithPageSize(a.cfg.PageSize),
		services.WithSessionLogger(a.log))
	for _, f := range filters {
		session.AddFilter(f)
	}

	view, err := session.LoadPage(ctx, page)
	if err != nil {
		a.log.Fatal("fetch products failed", zap.Error(err))
	}
	printJSON(view)
}

func (a *app) reorder(ctx context.Context, collectionID int64, file string, policy ordering.CollisionPolicy, prime, submit bool) {
	f, err := os.Open(file)
	if err != nil {
		a.log.Fatal("failed to open steps file", zap.Error(err))
	}
	steps, err := readSteps(f)
	f.Close()
	if err != nil {
		a.log.Fatal("invalid steps file", zap.Error(err))
	}

	session := services.NewEditSession(a.client, a.tokens, collectionID,
		services.WithPageSize(a.cfg.PageSize),
		services.WithCollisionPolicy(policy),
		services.WithSessionLogger(a.log))
	defer session.Close()

	if prime {
		stats, err := session.PrimeBasis(ctx)
		if err != nil {
			a.log.Fatal("priming original order failed", zap.Error(err))
		}
		a.log.Info("original order loaded", zap.Int("known", stats.Known), zap.Bool("complete", stats.Complete))
	}

	if err := replay(ctx, session, steps); err != nil {
		a.log.Fatal("replay failed", zap.Error(err))
	}

	plan, err := session.Preview()
	if err != nil {
		a.log.Fatal("cannot build save payload", zap.Error(err))
	}
	for _, w := range plan.Warnings {
		a.log.Warn(w.Message, zap.String("kind", string(w.Kind)), zap.Stringers("keys", w.Keys))
	}
	printJSON(domain.SaveRequest{CollectionID: collectionID, Products: plan.Entries})

	if !submit {
		return
	}
	outcome, err := session.Save(ctx)
	if err != nil {
		a.log.Fatal("save failed", zap.Error(err))
	}
	if outcome.Result == nil {
		a.log.Info("nothing to save")
		return
	}
	printJSON(outcome.Result)
}

func printJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encode failed: %v\n", err)
		os.Exit(1)
	}
}
