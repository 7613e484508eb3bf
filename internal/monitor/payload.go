// Package monitor exposes the engine snapshot to dashboards over HTTP and websockets.
package monitor

import (
	"sort"
	"time"

	"cryptoagents-go/internal/execution"
	"cryptoagents-go/internal/signal"
	"cryptoagents-go/internal/state"
)

// Payload is the dashboard view of one snapshot. Numbers stay JSON numbers and timestamps are
// RFC 3339 in UTC.
type Payload struct {
	LastUpdated     *string           `json:"lastUpdated"`
	Metadata        map[string]string `json:"metadata"`
	TrackedSymbols  []string          `json:"trackedSymbols"`
	Market          MarketView        `json:"market"`
	Portfolio       PortfolioView     `json:"portfolio"`
	Decisions       []DecisionView    `json:"decisions"`
	DecisionSummary map[string]int    `json:"decisionSummary"`
	Sentiment       SentimentView     `json:"sentiment"`
	News            []NewsView        `json:"news"`
}

type MarketView struct {
	Timestamp *string      `json:"timestamp"`
	Items     []TickerView `json:"items"`
}

type TickerView struct {
	Symbol       string  `json:"symbol"`
	Price        float64 `json:"price"`
	Change24h    float64 `json:"change24h"`
	Volume24h    float64 `json:"volume24h"`
	BaseCurrency string  `json:"baseCurrency"`
	High24h      float64 `json:"high24h"`
	Low24h       float64 `json:"low24h"`
	Timestamp    *string `json:"timestamp"`
}

type BalanceView struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

// PositionView leaves CurrentPrice and CurrentValue null when the symbol has no ticker.
type PositionView struct {
	Symbol       string   `json:"symbol"`
	Quantity     float64  `json:"quantity"`
	AveragePrice float64  `json:"averagePrice"`
	CurrentPrice *float64 `json:"currentPrice"`
	CurrentValue *float64 `json:"currentValue"`
}

type TransactionView struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Action    string  `json:"action"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	Timestamp *string `json:"timestamp"`
	Reasoning string  `json:"reasoning"`
}

type PortfolioView struct {
	BaseCurrency   string            `json:"baseCurrency"`
	Cash           float64           `json:"cash"`
	TotalValue     float64           `json:"totalValue"`
	Balances       []BalanceView     `json:"balances"`
	Positions      []PositionView    `json:"positions"`
	PositionsCount int               `json:"positionsCount"`
	History        []TransactionView `json:"history"`
}

type DecisionView struct {
	Symbol     string   `json:"symbol"`
	Action     string   `json:"action"`
	Confidence float64  `json:"confidence"`
	Price      float64  `json:"price"`
	Quantity   *float64 `json:"quantity"`
	Reasoning  string   `json:"reasoning"`
	CreatedAt  *string  `json:"createdAt"`
}

type SentimentItem struct {
	ArticleID string  `json:"articleId"`
	Label     string  `json:"label"`
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

type SentimentView struct {
	Summary      map[string]int  `json:"summary"`
	AverageScore float64         `json:"averageScore"`
	Items        []SentimentItem `json:"items"`
}

type ArticleSentiment struct {
	Label     string  `json:"label"`
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

type NewsView struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	URL         string            `json:"url"`
	Summary     string            `json:"summary"`
	Source      string            `json:"source"`
	PublishedAt *string           `json:"publishedAt"`
	Symbols     []string          `json:"symbols"`
	Sentiment   *ArticleSentiment `json:"sentiment"`
}

func stamp(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// Serialize builds the dashboard payload. lastUpdated is the time of the last successful refresh.
func Serialize(s *state.Snapshot, lastUpdated time.Time) Payload {
	p := Payload{
		LastUpdated: stamp(lastUpdated),
		Metadata:    make(map[string]string, len(s.Metadata)),
		Market:      MarketView{Items: []TickerView{}},
		Decisions:   []DecisionView{},
		News:        []NewsView{},
	}
	for k, v := range s.Metadata {
		p.Metadata[k] = v
	}
	if ts, ok := s.Metadata[state.MetaMarketTimestamp]; ok {
		p.Market.Timestamp = &ts
	}

	tracked := make(map[string]struct{})
	for _, sym := range s.MarketSymbols() {
		tracked[sym] = struct{}{}
		tk := s.Market[sym]
		p.Market.Items = append(p.Market.Items, TickerView{
			Symbol:       tk.Symbol,
			Price:        tk.Price,
			Change24h:    tk.Change24h,
			Volume24h:    tk.Volume24h,
			BaseCurrency: tk.Currency,
			High24h:      tk.High24h,
			Low24h:       tk.Low24h,
			Timestamp:    stamp(tk.Ts),
		})
	}

	p.Portfolio = portfolioView(s)
	for _, pos := range p.Portfolio.Positions {
		tracked[pos.Symbol] = struct{}{}
	}
	p.TrackedSymbols = make([]string, 0, len(tracked))
	for sym := range tracked {
		p.TrackedSymbols = append(p.TrackedSymbols, sym)
	}
	sort.Strings(p.TrackedSymbols)

	p.DecisionSummary = make(map[string]int, len(execution.Actions))
	for _, a := range execution.Actions {
		p.DecisionSummary[string(a)] = 0
	}
	decisions := append([]execution.Decision(nil), s.Decisions...)
	sort.SliceStable(decisions, func(i, j int) bool { return decisions[i].CreatedAt.After(decisions[j].CreatedAt) })
	for _, d := range decisions {
		p.DecisionSummary[string(d.Action)]++
		p.Decisions = append(p.Decisions, DecisionView{
			Symbol:     d.Symbol,
			Action:     string(d.Action),
			Confidence: d.Confidence,
			Price:      d.Price,
			Quantity:   d.Quantity,
			Reasoning:  d.Reason,
			CreatedAt:  stamp(d.CreatedAt),
		})
	}

	p.Sentiment = sentimentView(s.Sentiments)

	news := append([]signal.Article(nil), s.News...)
	sort.SliceStable(news, func(i, j int) bool { return news[i].PublishedAt.After(news[j].PublishedAt) })
	for _, a := range news {
		item := NewsView{
			ID:          a.ID,
			Title:       a.Title,
			URL:         a.URL,
			Summary:     a.Summary,
			Source:      a.Source,
			PublishedAt: stamp(a.PublishedAt),
			Symbols:     append([]string{}, a.Symbols...),
		}
		if score, ok := s.Sentiments[a.ID]; ok {
			item.Sentiment = &ArticleSentiment{Label: string(score.Label), Score: score.Score, Reasoning: score.Reason}
		}
		p.News = append(p.News, item)
	}
	return p
}

func portfolioView(s *state.Snapshot) PortfolioView {
	pf := s.Portfolio
	view := PortfolioView{
		BaseCurrency: pf.BaseCurrency(),
		Cash:         pf.Cash(),
		TotalValue:   pf.TotalValue(s.Market),
		Balances:     []BalanceView{},
		Positions:    []PositionView{},
		History:      []TransactionView{},
	}
	balances := pf.Balances()
	currencies := make([]string, 0, len(balances))
	for c := range balances {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	for _, c := range currencies {
		view.Balances = append(view.Balances, BalanceView{Currency: c, Amount: balances[c]})
	}

	for _, pos := range pf.Positions() {
		pv := PositionView{Symbol: pos.Symbol, Quantity: pos.Quantity, AveragePrice: pos.AvgPrice}
		if tk, ok := s.Ticker(pos.Symbol); ok {
			price, value := tk.Price, pos.Quantity*tk.Price
			pv.CurrentPrice, pv.CurrentValue = &price, &value
		}
		if pos.Quantity > 0 {
			view.PositionsCount++
		}
		view.Positions = append(view.Positions, pv)
	}

	history := pf.History()
	for i := len(history) - 1; i >= 0; i-- {
		tx := history[i]
		view.History = append(view.History, TransactionView{
			ID:        tx.ID,
			Symbol:    tx.Symbol,
			Action:    string(tx.Action),
			Quantity:  tx.Quantity,
			Price:     tx.Price,
			Timestamp: stamp(tx.Timestamp),
			Reasoning: tx.Reason,
		})
	}
	return view
}

func sentimentView(scores map[string]signal.Sentiment) SentimentView {
	view := SentimentView{
		Summary: map[string]int{string(signal.Positive): 0, string(signal.Negative): 0, string(signal.Neutral): 0},
		Items:   make([]SentimentItem, 0, len(scores)),
	}
	for id, score := range scores {
		view.Summary[string(score.Label)]++
		view.Items = append(view.Items, SentimentItem{ArticleID: id, Label: string(score.Label), Score: score.Score, Reasoning: score.Reason})
	}
	sort.Slice(view.Items, func(i, j int) bool {
		if view.Items[i].Score != view.Items[j].Score {
			return view.Items[i].Score > view.Items[j].Score
		}
		return view.Items[i].ArticleID < view.Items[j].ArticleID
	})
	if len(view.Items) > 0 {
		var sum float64
		for _, item := range view.Items {
			sum += item.Score
		}
		view.AverageScore = sum / float64(len(view.Items))
	}
	return view
}
