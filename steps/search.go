package steps

import (
	"context"
	"errors"

	"github.com/golang/glog"

	"github.com/wanmail/seleniumexample/pages"
)

var errNoResults = errors.New("no search results displayed")

func iHaveEnteredTextInTheSearchTextBox(ctx context.Context, term string) error {
	w, err := WorldFrom(ctx)
	if err != nil {
		return err
	}
	w.Search = pages.NewSearch(w.Session)
	if err := w.Search.WaitForPageToLoad(); err != nil {
		return err
	}
	_, err = w.Search.EnterTextInSearchField(term)
	return err
}

func iClickTheSearchButton(ctx context.Context) error {
	w, err := WorldFrom(ctx)
	if err != nil {
		return err
	}
	if w.Search == nil {
		w.Search = pages.NewSearch(w.Session)
	}
	_, err = w.Search.ClickSearchButton()
	return err
}

func searchResultsDisplay(ctx context.Context) error {
	w, err := WorldFrom(ctx)
	if err != nil {
		return err
	}
	w.Results = pages.NewSearchResults(w.Session)
	if err := w.Results.WaitForPageToLoad(); err != nil {
		return err
	}
	results, err := w.Results.GetVisibleResults()
	if err != nil {
		return err
	}
	for _, r := range results {
		glog.Info(r)
	}
	if len(results) == 0 {
		return errNoResults
	}
	return nil
}
