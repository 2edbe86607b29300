// Package browser implements a text-based browser app on headless Chrome.
// Pages are rendered to annotated text where clickable elements carry <N>
// markers the agent can reference in click actions.
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/jlindermeir/ami0/internal/app"
	"github.com/jlindermeir/ami0/internal/config"
	"github.com/jlindermeir/ami0/internal/schema"
)

// Action tags the browser app accepts.
const (
	TagNavigate = "navigate"
	TagClick    = "click"
)

type navigateAction struct {
	URL string `json:"url"`
}

type clickAction struct {
	Element int `json:"element"`
}

// App drives a headless Chrome instance. The browser is owned by the app:
// launched eagerly at construction and released in Close. The last page
// snapshot is app-internal state consulted by click actions and the usage
// prompt.
type App struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	browserCtx    context.Context

	snapshot *Snapshot
}

var _ app.App = (*App)(nil)

// New launches the browser. A failed launch fails app construction and
// with it the whole process, per the resource contract.
func New(cfg config.BrowserConfig, logger *zap.Logger) (*App, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Running an empty action list starts the browser process now rather
	// than on the first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	l := logger.Named("app.browser")
	l.Info("Browser setup complete", zap.Bool("headless", cfg.Headless))

	return &App{
		cfg:           cfg,
		logger:        l,
		allocCancel:   allocCancel,
		browserCancel: browserCancel,
		browserCtx:    browserCtx,
	}, nil
}

func (a *App) Name() string {
	return "browser"
}

func (a *App) Description() string {
	return "A text-based browser that allows you to navigate websites and click elements. " +
		"Elements that can be clicked are annotated with numbers in <N> format."
}

func (a *App) UsagePrompt() string {
	currentURL := "No page loaded"
	if a.snapshot != nil {
		currentURL = a.snapshot.URL
	}
	return fmt.Sprintf(`This is the Browser app. You can navigate to URLs and click on elements.

Current URL: %s

Available actions:
1. Navigate to a URL:
{
    "type": "navigate",
    "url": "https://example.com"
}

2. Click an element (using the number shown in <N>):
{
    "type": "click",
    "element": 1
}

The page content will show clickable elements marked with <N> where N is the element number.
For example, "Click here <1>" means you can click this element using element number 1.`, currentURL)
}

func (a *App) ActionModels() []schema.ActionModel {
	return []schema.ActionModel{
		{
			Tag:         TagNavigate,
			Description: "Navigate to a URL.",
			Payload: schema.Object(map[string]*schema.Node{
				"url": schema.String("URL to navigate to."),
			}),
		},
		{
			Tag:         TagClick,
			Description: "Click a numbered element on the current page.",
			Payload: schema.Object(map[string]*schema.Node{
				"element": schema.Integer("Element number to click, as shown in <N>."),
			}),
		},
	}
}

func (a *App) HandleAction(ctx context.Context, act app.Action) (app.Result, error) {
	switch act.Tag {
	case TagNavigate:
		var payload navigateAction
		if err := act.Decode(&payload); err != nil {
			return app.Result{}, fmt.Errorf("decoding navigate action: %w", err)
		}
		return a.navigate(ctx, payload.URL)
	case TagClick:
		var payload clickAction
		if err := act.Decode(&payload); err != nil {
			return app.Result{}, fmt.Errorf("decoding click action: %w", err)
		}
		return a.click(ctx, payload.Element)
	default:
		// The loop only routes declared tags here; anything else is a
		// caller bug.
		return app.Result{}, fmt.Errorf("unsupported browser action %q", act.Tag)
	}
}

func (a *App) Close() error {
	a.logger.Info("Closing browser")
	a.browserCancel()
	a.allocCancel()
	return nil
}

// opContext derives a browser-bound context whose lifetime is bounded by
// both the navigation timeout and the caller's context.
func (a *App) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithTimeout(a.browserCtx, a.cfg.NavigationTimeout)
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

func (a *App) navigate(ctx context.Context, rawURL string) (app.Result, error) {
	opCtx, cancel := a.opContext(ctx)
	defer cancel()

	if err := chromedp.Run(opCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return app.Result{}, fmt.Errorf("navigating to %s: %w", rawURL, err)
	}
	a.logger.Info("Navigated", zap.String("url", rawURL))

	return a.capture(opCtx)
}

// click resolves element N against the last snapshot. Links are followed
// as navigations; other elements are clicked in the live page.
func (a *App) click(ctx context.Context, element int) (app.Result, error) {
	if a.snapshot == nil {
		return app.Result{}, fmt.Errorf("no page loaded; navigate to a URL first")
	}
	if element < 1 || element > len(a.snapshot.Clickables) {
		return app.Result{}, fmt.Errorf("invalid element number %d, valid range: 1-%d", element, len(a.snapshot.Clickables))
	}

	target := a.snapshot.Clickables[element-1]
	if target.Href != "" {
		resolved, err := ResolveHref(a.snapshot.URL, target.Href)
		if err != nil {
			return app.Result{}, err
		}
		return a.navigate(ctx, resolved)
	}

	opCtx, cancel := a.opContext(ctx)
	defer cancel()

	script := fmt.Sprintf(`(() => {
		const els = document.querySelectorAll(%q);
		if (%d > els.length) { return false; }
		els[%d].click();
		return true;
	})()`, clickableSelector, element, element-1)

	var clicked bool
	if err := chromedp.Run(opCtx,
		chromedp.Evaluate(script, &clicked, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	); err != nil {
		return app.Result{}, fmt.Errorf("clicking element %d: %w", element, err)
	}
	if !clicked {
		return app.Result{}, fmt.Errorf("element %d no longer present in the live page", element)
	}

	if err := chromedp.Run(opCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return app.Result{}, fmt.Errorf("waiting for page after click: %w", err)
	}
	a.logger.Info("Clicked element", zap.Int("element", element), zap.String("tag", target.Tag))

	return a.capture(opCtx)
}

// capture reads the live page, refreshes the snapshot and builds the
// action result, optionally attaching a screenshot.
func (a *App) capture(opCtx context.Context) (app.Result, error) {
	var currentURL, src string
	actions := []chromedp.Action{
		chromedp.Location(&currentURL),
		chromedp.OuterHTML("html", &src, chromedp.ByQuery),
	}
	var shot []byte
	if a.cfg.CaptureScreenshots {
		actions = append(actions, chromedp.CaptureScreenshot(&shot))
	}
	if err := chromedp.Run(opCtx, actions...); err != nil {
		return app.Result{}, fmt.Errorf("reading page content: %w", err)
	}

	snapshot, err := Annotate(currentURL, src)
	if err != nil {
		return app.Result{}, err
	}
	a.snapshot = snapshot

	result := app.Result{
		Text: fmt.Sprintf("Current URL: %s\n\n%s", snapshot.URL, snapshot.Text),
	}
	if len(shot) > 0 {
		result.Attachment = &app.Attachment{MIME: "image/png", Data: shot}
	}
	return result, nil
}
