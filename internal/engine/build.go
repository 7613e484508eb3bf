package engine

import (
	"fmt"

	"github.com/rs/zerolog"

	"cryptoagents-go/internal/config"
	"cryptoagents-go/internal/exchange"
	"cryptoagents-go/internal/news"
	"cryptoagents-go/internal/paper"
	"cryptoagents-go/internal/risk"
	"cryptoagents-go/internal/sentiment"
	"cryptoagents-go/internal/state"
	"cryptoagents-go/internal/strategy"
)

type buildOptions struct {
	scorer   sentiment.Scorer
	tickers  TickerSource
	articles ArticleSource
	paper    []paper.Option
}

// BuildOption overrides a collaborator normally derived from config.
type BuildOption func(*buildOptions)

// WithScorer replaces the configured sentiment provider.
func WithScorer(s sentiment.Scorer) BuildOption {
	return func(o *buildOptions) { o.scorer = s }
}

// WithTickerSource replaces the configured market feed.
func WithTickerSource(src TickerSource) BuildOption {
	return func(o *buildOptions) { o.tickers = src }
}

// WithArticleSource replaces the RSS collector. It is used even when news is disabled.
func WithArticleSource(src ArticleSource) BuildOption {
	return func(o *buildOptions) { o.articles = src }
}

// WithPaperOptions forwards extra options to the paper manager.
func WithPaperOptions(opts ...paper.Option) BuildOption {
	return func(o *buildOptions) { o.paper = append(o.paper, opts...) }
}

// Build wires every stage described by cfg into an Orchestrator.
func Build(cfg *config.Config, log zerolog.Logger, opts ...BuildOption) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("engine: nil config")
	}
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	snap := state.New(cfg.Market.QuoteCurrency)
	snap.NewsRetention = cfg.News.Retention

	tickers := bo.tickers
	if tickers == nil {
		tickers = exchange.NewFeed(cfg.Market.Provider, cfg.Market.Symbols, log.With().Str("component", "market").Logger(),
			exchange.WithBaseURL(cfg.Market.BaseURL),
			exchange.WithQuoteCurrency(cfg.Market.QuoteCurrency),
			exchange.WithTimeout(cfg.Market.Timeout),
			exchange.WithRetries(cfg.Market.Retries),
		)
	}
	collect := []Stage{MarketStage{Source: tickers}}

	articles := bo.articles
	if articles == nil && cfg.News.Enabled {
		articles = news.NewCollector(newsSources(cfg.News.Sources), cfg.Market.Symbols, news.Options{
			Aliases:     cfg.News.Aliases,
			MaxArticles: cfg.News.MaxArticles,
			Timeout:     cfg.News.Timeout,
		}, log.With().Str("component", "news").Logger())
	}
	if articles != nil {
		scorer := bo.scorer
		if scorer == nil {
			var err error
			if scorer, err = buildScorer(cfg.Sentiment); err != nil {
				return nil, err
			}
		}
		collect = append(collect,
			NewsStage{Source: articles, Log: log},
			SentimentStage{Scorer: scorer, Log: log.With().Str("component", "sentiment").Logger()},
		)
	}

	var aggregate strategy.Aggregator = sentiment.Mean
	if hl := cfg.Strategy.Ranking.DecayHalfLife; hl > 0 {
		aggregate = sentiment.Decayed(hl)
	}
	ranker := strategy.NewRanker(cfg.Market.Symbols, strategy.RankOptions{
		VolumeWeight:    cfg.Strategy.Ranking.VolumeWeight,
		ExposurePenalty: cfg.Strategy.Ranking.ExposurePenalty,
	})
	strat := strategy.Build(cfg.Strategy.Mode, strategyParams(cfg.Strategy.Params))

	overseer := risk.NewOverseer(risk.Params{
		StopLossPct:   cfg.Risk.StopLossPct,
		TakeProfitPct: cfg.Risk.TakeProfitPct,
		MinConfidence: cfg.Risk.MinConfidence,
	}, log.With().Str("component", "risk").Logger())

	paperOpts := []paper.Option{paper.WithBudgetCap(risk.Limits{MaxNotionalPerTrade: cfg.Risk.MaxNotionalPerTrade})}
	var recorder *paper.JSONLRecorder
	if cfg.Paper.FillsPath != "" {
		var err error
		if recorder, err = paper.NewJSONLRecorder(cfg.Paper.FillsPath); err != nil {
			return nil, fmt.Errorf("open fills log: %w", err)
		}
		paperOpts = append(paperOpts, paper.WithRecorder(recorder))
	}
	paperOpts = append(paperOpts, bo.paper...)
	manager := paper.NewManager(paper.Config{
		InitialCash:           cfg.Paper.InitialCash,
		TradeFraction:         cfg.Paper.TradeFraction,
		MinCashReserve:        cfg.Paper.MinCashReserve,
		MinTradeValue:         cfg.Paper.MinTradeValue,
		MaxPositionAllocation: cfg.Paper.MaxPositionAllocation,
		RebalanceBuffer:       cfg.Paper.RebalanceBuffer,
	}, log.With().Str("component", "paper").Logger(), paperOpts...)

	core := []Stage{
		strategy.NewEngine(strat, ranker, aggregate, cfg.Strategy.MaxTrades, log.With().Str("component", "strategy").Logger()),
		overseer,
		&PortfolioStage{Manager: manager},
	}

	o := NewOrchestrator(snap, collect, core, log)
	if recorder != nil {
		o.OnClose(func() error {
			if n := recorder.Failures(); n > 0 {
				log.Warn().Int("failed", n).Str("path", cfg.Paper.FillsPath).Msg("fills log incomplete")
			}
			return recorder.Close()
		})
	}
	log.Info().
		Str("provider", cfg.Market.Provider).
		Strs("symbols", cfg.Market.Symbols).
		Str("strategy", strat.Name()).
		Bool("news", articles != nil).
		Msg("engine wired")
	return o, nil
}

func buildScorer(cfg config.Sentiment) (sentiment.Scorer, error) {
	switch cfg.Provider {
	case "openai":
		scorer, err := sentiment.NewOpenAI(sentiment.OpenAIConfig{
			BaseURL:     cfg.OpenAI.BaseURL,
			APIKey:      cfg.OpenAI.APIKey,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			Timeout:     cfg.OpenAI.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return scorer, nil
	default:
		return sentiment.NewRuleBased(sentiment.Keywords{
			Positive: cfg.PositiveKeywords,
			Negative: cfg.NegativeKeywords,
		}), nil
	}
}

func newsSources(in []config.NewsSource) []news.Source {
	out := make([]news.Source, 0, len(in))
	for _, src := range in {
		out = append(out, news.Source{Name: src.Name, URL: src.URL, MaxItems: src.MaxItems})
	}
	return out
}

func strategyParams(p config.StrategyParams) strategy.Params {
	return strategy.Params{
		ExpertBuyScore:      p.ExpertBuyScore,
		ExpertSellScore:     p.ExpertSellScore,
		SentimentBuy:        p.SentimentBuy,
		SentimentSell:       p.SentimentSell,
		PriceBuy:            p.PriceBuy,
		PriceSell:           p.PriceSell,
		BreakoutMargin:      p.BreakoutMargin,
		MeanReversionMargin: p.MeanReversionMargin,
		MomentumScale:       p.MomentumScale,
		VolumeThreshold:     p.VolumeThreshold,
		VolatilityThreshold: p.VolatilityThreshold,
	}
}
