package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/kaijie-yu/google-ui/pkg/models"
)

// ErrNoDialog is returned when a confirmation is requested but no
// JavaScript dialog opened.
var ErrNoDialog = errors.New("no alert present")

// Selector addresses an element on the page.
type Selector struct {
	Value string
	Type  models.LocatorType
}

// Browser drives one browser session.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, sel Selector) error
	Type(ctx context.Context, sel Selector, text string) error
	Text(ctx context.Context, sel Selector) (string, error)
	// ConfirmDialog waits for a JavaScript dialog and reports whether one
	// was accepted.
	ConfirmDialog(ctx context.Context) error
	Close() error
}

// Launcher starts browser sessions.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// ChromeLauncher starts Chrome through chromedp, either a local process or
// a remote instance reachable over the DevTools protocol.
type ChromeLauncher struct {
	remoteURL string // e.g. "ws://localhost:9222"
	headless  bool
}

// NewChromeLauncher creates a launcher. An empty remoteURL starts a local
// browser.
func NewChromeLauncher(remoteURL string, headless bool) *ChromeLauncher {
	return &ChromeLauncher{remoteURL: remoteURL, headless: headless}
}

// Launch starts a browser and opens a blank tab. JavaScript dialogs are
// accepted as soon as they open so that the action that raised them can
// complete.
func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	var allocCtx context.Context
	var cancelAlloc context.CancelFunc
	if l.remoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(ctx, l.remoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", l.headless),
			chromedp.Flag("remote-allow-origins", "*"),
			chromedp.WindowSize(1920, 1080),
		)
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(ctx, opts...)
	}

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	b := &chromeBrowser{
		ctx:     browserCtx,
		dialogs: make(chan string, 8),
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}

	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		if ev, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			select {
			case b.dialogs <- ev.Message:
			default:
			}
			go func() {
				_ = chromedp.Run(browserCtx, page.HandleJavaScriptDialog(true))
			}()
		}
	})

	// An empty run starts the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		b.cancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return b, nil
}

type chromeBrowser struct {
	ctx     context.Context
	cancel  func()
	dialogs chan string
}

// run executes actions in the browser tab, bounded by ctx.
func (b *chromeBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(b.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (b *chromeBrowser) Navigate(ctx context.Context, url string) error {
	return b.run(ctx, chromedp.Navigate(url))
}

func (b *chromeBrowser) Click(ctx context.Context, sel Selector) error {
	value, opt, err := queryOptions(sel)
	if err != nil {
		return err
	}
	return b.run(ctx,
		chromedp.WaitVisible(value, opt),
		chromedp.Click(value, opt),
	)
}

func (b *chromeBrowser) Type(ctx context.Context, sel Selector, text string) error {
	value, opt, err := queryOptions(sel)
	if err != nil {
		return err
	}
	return b.run(ctx,
		chromedp.WaitVisible(value, opt),
		chromedp.SendKeys(value, text, opt),
	)
}

func (b *chromeBrowser) Text(ctx context.Context, sel Selector) (string, error) {
	value, opt, err := queryOptions(sel)
	if err != nil {
		return "", err
	}
	var text string
	err = b.run(ctx,
		chromedp.WaitVisible(value, opt),
		chromedp.Text(value, &text, opt),
	)
	return text, err
}

func (b *chromeBrowser) ConfirmDialog(ctx context.Context) error {
	select {
	case <-b.dialogs:
		return nil
	case <-time.After(dialogWait):
		return ErrNoDialog
	case <-ctx.Done():
		return ErrNoDialog
	}
}

func (b *chromeBrowser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	return err
}

// dialogWait bounds how long a confirmation waits for a dialog to open.
const dialogWait = 5 * time.Second

// queryOptions maps a selector onto a chromedp query. ID locators may be
// written with or without the leading '#'.
func queryOptions(sel Selector) (string, chromedp.QueryOption, error) {
	if sel.Value == "" {
		return "", nil, errors.New("step has no locator")
	}
	switch sel.Type {
	case models.LocatorXPath:
		return sel.Value, chromedp.BySearch, nil
	case models.LocatorID:
		return strings.TrimPrefix(sel.Value, "#"), chromedp.ByID, nil
	case models.LocatorCSS:
		return sel.Value, chromedp.ByQuery, nil
	default:
		return "", nil, fmt.Errorf("unknown locator type: %s", sel.Type)
	}
}
