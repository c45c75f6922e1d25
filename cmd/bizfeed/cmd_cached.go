package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/deusflow/bizfeed/internal/app"
	"github.com/deusflow/bizfeed/internal/logger"
	"github.com/deusflow/bizfeed/internal/news"
)

const dateLayout = "2006-01-02"

var cachedFlags struct {
	keyword string
	date    string
}

var cachedCmd = &cobra.Command{
	Use:   "cached",
	Short: "Print the stored result for a keyword without fetching",
	RunE:  runCached,
}

func init() {
	f := cachedCmd.Flags()
	f.StringVar(&cachedFlags.keyword, "keyword", "", "keyword to look up")
	f.StringVar(&cachedFlags.date, "date", "", "day to look up as YYYY-MM-DD (default: today)")
	_ = cachedCmd.MarkFlagRequired("keyword")
}

type cachedOutput struct {
	Keyword  string               `json:"keyword"`
	Date     string               `json:"date"`
	Cached   bool                 `json:"cached"`
	Articles []news.ScoredArticle `json:"articles"`
}

func runCached(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var day time.Time
	if cachedFlags.date != "" {
		if day, err = time.ParseInLocation(dateLayout, cachedFlags.date, cfg.Location()); err != nil {
			return fmt.Errorf("invalid --date %q: %w", cachedFlags.date, err)
		}
	}

	a, err := app.New(cmd.Context(), cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer a.Close()

	articles, ok, err := a.Cached(cmd.Context(), cachedFlags.keyword, day)
	if err != nil {
		return fmt.Errorf("cached: %w", err)
	}
	if articles == nil {
		articles = []news.ScoredArticle{}
	}
	shown := day
	if shown.IsZero() {
		shown = time.Now().In(cfg.Location())
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(cachedOutput{
		Keyword:  cachedFlags.keyword,
		Date:     shown.Format(dateLayout),
		Cached:   ok,
		Articles: articles,
	})
}
