// Package steps binds the search feature's step phrases to the page models
// and manages the browser session across a godog run.
//
// One Suite owns one driver.Session for the whole run. Each scenario gets a
// fresh World in its context; after every scenario the browser is sent back
// to the search page and refreshed so that scenario order does not matter.
package steps

import (
	"context"
	"errors"
	"fmt"

	"github.com/cucumber/godog"
	"github.com/golang/glog"

	"github.com/wanmail/seleniumexample/driver"
	"github.com/wanmail/seleniumexample/pages"
)

// Step phrases of the search feature.
const (
	EnteredSearchText = `^I have entered (.*) in the search text box$`
	ClickSearch       = `^I click the search button$`
	ResultsDisplay    = `^search results display$`
)

// ScenarioContext is the part of *godog.ScenarioContext used to register
// hooks and steps.
type ScenarioContext interface {
	Before(h godog.BeforeScenarioHook)
	After(h godog.AfterScenarioHook)
	Step(expr interface{}, stepFunc interface{})
}

// Suite runs scenarios against one shared browser session.
type Suite struct {
	// Open creates the session at the start of the run. The Suite initializes
	// it and owns it from then on.
	Open func() (*driver.Session, error)
	// Artifacts, if set, is the directory where a screenshot and the browser
	// console log are saved for every failed scenario.
	Artifacts string

	session  *driver.Session
	startErr error
}

// Session returns the session opened for the run, or nil.
func (s *Suite) Session() *driver.Session { return s.session }

// InitializeTestSuite registers the run-level hooks.
func (s *Suite) InitializeTestSuite(ctx *godog.TestSuiteContext) {
	ctx.BeforeSuite(s.Start)
	ctx.AfterSuite(s.TearDown)
}

// InitializeScenario registers the scenario hooks and the step definitions.
func (s *Suite) InitializeScenario(ctx *godog.ScenarioContext) {
	s.register(ctx)
}

func (s *Suite) register(ctx ScenarioContext) {
	ctx.Before(s.before)
	ctx.Step(EnteredSearchText, iHaveEnteredTextInTheSearchTextBox)
	ctx.Step(ClickSearch, iClickTheSearchButton)
	ctx.Step(ResultsDisplay, searchResultsDisplay)
	ctx.After(s.reset)
}

// Start opens and initializes the session. A failure is kept and reported
// by every scenario of the run.
func (s *Suite) Start() {
	if s.Open == nil {
		s.startErr = errors.New("steps: no session opener configured")
		return
	}
	sess, err := s.Open()
	if err != nil {
		s.startErr = fmt.Errorf("opening browser session: %w", err)
		glog.Errorf("%v", s.startErr)
		return
	}
	s.session = sess
	if err := sess.Initialize(); err != nil {
		s.startErr = fmt.Errorf("initializing browser session: %w", err)
		glog.Errorf("%v", s.startErr)
	}
}

// TearDown closes the session and then terminates every process the session
// started, whether or not closing succeeded.
func (s *Suite) TearDown() {
	if s.session == nil {
		return
	}
	if err := s.session.Close(); err != nil {
		glog.Errorf("closing browser session: %v", err)
	}
	if err := s.session.KillAll(); err != nil {
		glog.Errorf("killing driver processes: %v", err)
	}
}

func (s *Suite) before(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
	if s.startErr != nil {
		return ctx, s.startErr
	}
	glog.V(1).Infof("scenario %q", sc.Name)
	return WithWorld(ctx, &World{Session: s.session}), nil
}

func (s *Suite) reset(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
	w, werr := WorldFrom(ctx)
	if werr != nil {
		// The scenario never started.
		return ctx, nil
	}
	if err != nil && s.Artifacts != "" {
		s.saveArtifacts(w.Session, sc.Name)
	}
	search := w.Search
	if search == nil {
		search = pages.NewSearch(w.Session)
	}
	if rerr := search.NavigateToPage(); rerr != nil {
		return ctx, fmt.Errorf("resetting to the search page: %w", rerr)
	}
	if rerr := w.Session.Refresh(); rerr != nil {
		return ctx, fmt.Errorf("refreshing the search page: %w", rerr)
	}
	return ctx, nil
}

// saveArtifacts keeps a screenshot and the browser console log of a failed
// scenario. Drivers that do not collect browser logs only get a screenshot.
func (s *Suite) saveArtifacts(sess *driver.Session, name string) {
	if path, err := sess.SaveScreenshot(s.Artifacts, name); err != nil {
		glog.Warningf("saving screenshot of failed scenario %q: %v", name, err)
	} else {
		glog.Infof("scenario %q failed, screenshot saved to %s", name, path)
	}
	if path, err := sess.SaveBrowserLog(s.Artifacts, name); err != nil {
		glog.Warningf("saving browser log of failed scenario %q: %v", name, err)
	} else {
		glog.Infof("browser log saved to %s", path)
	}
}

// Run executes the features selected by opts and returns godog's exit status.
func (s *Suite) Run(name string, opts *godog.Options) int {
	return godog.TestSuite{
		Name:                 name,
		TestSuiteInitializer: s.InitializeTestSuite,
		ScenarioInitializer:  s.InitializeScenario,
		Options:              opts,
	}.Run()
}
