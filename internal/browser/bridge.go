// Package browser owns the controllable browser the whole tool works
// through. The booking site only accepts requests that originate from a
// real page, so every backend call is an in-page fetch executed by
// Bridge.Fetch rather than a bare HTTP request.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/playwright-community/playwright-go"

	"github.com/ktxgo/ktxgo/internal/korail"
)

// stealthScript hides the automation marker the site fingerprints on.
const stealthScript = "Object.defineProperty(navigator, 'webdriver', {get: () => undefined});"

// fetchScript posts one form from the page context. credentials:include
// attaches the session cookies the backend authenticates by.
const fetchScript = `async ({ endpoint, params }) => {
	const form = new FormData();
	for (const [key, value] of Object.entries(params)) {
		form.append(key, value == null ? "" : String(value));
	}

	const response = await fetch(endpoint, {
		method: "POST",
		body: form,
		credentials: "include"
	});

	const text = await response.text();
	return { ok: response.ok, status: response.status, text };
}`

type Options struct {
	// StatePath is the storage-state file restored into new contexts
	// when it exists.
	StatePath  string
	Locale     string
	NavTimeout float64 // milliseconds
}

// Bridge drives one Firefox instance. It is not safe for concurrent use;
// the run owns it exclusively and closes it on every exit path.
type Bridge struct {
	opts   Options
	logger *slog.Logger

	pw       *playwright.Playwright
	browser  playwright.Browser
	context  playwright.BrowserContext
	page     playwright.Page
	headless bool
}

func New(opts Options, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Locale == "" {
		opts.Locale = "ko-KR"
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 30_000
	}
	return &Bridge{opts: opts, logger: logger}
}

func (b *Bridge) Headless() bool { return b.headless }

// Start launches the browser and lands on the search page. The saved
// storage state is restored when present, so a prior login carries over.
func (b *Bridge) Start(ctx context.Context, headless bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.page != nil {
		return fmt.Errorf("browser already started")
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("could not launch playwright: %w", err)
	}
	b.pw = pw

	b.browser, err = pw.Firefox.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
	})
	if err != nil {
		b.Close()
		return fmt.Errorf("could not launch firefox: %w", err)
	}
	b.headless = headless

	contextOpts := playwright.BrowserNewContextOptions{
		Locale: playwright.String(b.opts.Locale),
	}
	if b.opts.StatePath != "" {
		if _, statErr := os.Stat(b.opts.StatePath); statErr == nil {
			contextOpts.StorageStatePath = playwright.String(b.opts.StatePath)
		}
	}

	b.context, err = b.browser.NewContext(contextOpts)
	if err != nil {
		b.Close()
		return fmt.Errorf("could not create context: %w", err)
	}
	if err := b.context.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		b.Close()
		return fmt.Errorf("could not install init script: %w", err)
	}

	b.page, err = b.context.NewPage()
	if err != nil {
		b.Close()
		return fmt.Errorf("could not create page: %w", err)
	}
	b.page.SetDefaultTimeout(b.opts.NavTimeout)

	if err := b.OpenSearch(ctx); err != nil {
		b.Close()
		return err
	}
	b.logger.Debug("browser started", "headless", headless)
	return nil
}

// Restart tears the instance down and brings it back up, typically to
// flip between headless and visible. The saved state is restored again.
func (b *Bridge) Restart(ctx context.Context, headless bool) error {
	b.Close()
	return b.Start(ctx, headless)
}

// Close releases every browser resource. Safe to call repeatedly and on
// a bridge that never started; per-resource failures are swallowed
// because there is nothing useful to do with them on the way out.
func (b *Bridge) Close() {
	if b.context != nil {
		_ = b.context.Close()
		b.context = nil
	}
	if b.browser != nil {
		_ = b.browser.Close()
		b.browser = nil
	}
	if b.pw != nil {
		_ = b.pw.Stop()
		b.pw = nil
	}
	b.page = nil
}

// Fetch implements korail.Executor: it posts one form from the
// authenticated page context and returns the raw outcome.
func (b *Bridge) Fetch(ctx context.Context, endpoint string, form map[string]string) (*korail.FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.page == nil {
		return nil, fmt.Errorf("browser not started")
	}

	params := make(map[string]any, len(form))
	for k, v := range form {
		params[k] = v
	}
	raw, err := b.page.Evaluate(fetchScript, map[string]any{
		"endpoint": endpoint,
		"params":   params,
	})
	if err != nil {
		return nil, fmt.Errorf("in-page fetch failed: %w", err)
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("in-page fetch returned %T, want object", raw)
	}
	result := &korail.FetchResult{}
	if v, ok := obj["ok"].(bool); ok {
		result.OK = v
	}
	if v, ok := obj["status"].(float64); ok {
		result.Status = int(v)
	} else if v, ok := obj["status"].(int); ok {
		result.Status = v
	}
	if v, ok := obj["text"].(string); ok {
		result.Body = v
	}
	return result, nil
}

// SessionState serializes the live context's storage state (cookies and
// local storage) for persistence.
func (b *Bridge) SessionState() ([]byte, error) {
	if b.context == nil {
		return nil, fmt.Errorf("browser not started")
	}
	state, err := b.context.StorageState()
	if err != nil {
		return nil, fmt.Errorf("could not read storage state: %w", err)
	}
	blob, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("could not serialize storage state: %w", err)
	}
	return blob, nil
}

// OpenLogin navigates to the site's native login form for a human to
// complete.
func (b *Bridge) OpenLogin(ctx context.Context) error {
	return b.navigate(ctx, korail.LoginURL)
}

// OpenSearch returns to the search page the in-page API calls run from.
func (b *Bridge) OpenSearch(ctx context.Context) error {
	return b.navigate(ctx, korail.SearchURL)
}

func (b *Bridge) navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.page == nil {
		return fmt.Errorf("browser not started")
	}
	_, err := b.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(b.opts.NavTimeout),
	})
	if err != nil {
		return fmt.Errorf("could not open %s: %w", url, err)
	}
	return nil
}

var _ korail.Executor = (*Bridge)(nil)
