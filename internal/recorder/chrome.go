package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"looprec/backend/internal/classifier"
	"looprec/backend/pkg/chrome"
	"looprec/backend/pkg/dom"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const bindingName = "__looprecEmit"

// Host drives a browser on behalf of a Session.
type Host interface {
	Close() error
}

// DeviceInfo shapes the recording tab. Name selects touch emulation for
// known presets.
type DeviceInfo struct {
	Name      string `json:"name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	UserAgent string `json:"user_agent"`
}

// LaunchOptions controls how recording browsers are started.
type LaunchOptions struct {
	ExecPath string
	Headless bool
	// HoverRate caps mouseover events handled per second.
	HoverRate  float64
	QueueSize  int
	CloseGrace time.Duration
}

// capturedEvent is the payload the injected script sends through the
// binding. HTML is empty for keyboard events, which reuse the last snapshot.
type capturedEvent struct {
	Type      string `json:"type"`
	Path      []int  `json:"path"`
	HTML      string `json:"html"`
	Cursor    string `json:"cursor"`
	Value     string `json:"value"`
	Key       string `json:"key"`
	Label     string `json:"label"`
	Timestamp int64  `json:"timestamp"`
}

// ChromeRecorder runs a visible Chrome window whose interactions feed a
// Session.
type ChromeRecorder struct {
	session *Session
	opts    LaunchOptions
	device  DeviceInfo
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	events chan string
	done   chan struct{}
	hover  *rate.Limiter

	// only touched by the dispatch goroutine
	lastDoc *dom.Document

	closeOnce sync.Once
}

func NewChromeRecorder(session *Session, device DeviceInfo, opts LaunchOptions, logger *zap.Logger) *ChromeRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HoverRate <= 0 {
		opts.HoverRate = 10
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.CloseGrace <= 0 {
		opts.CloseGrace = 5 * time.Second
	}
	return &ChromeRecorder{
		session: session,
		opts:    opts,
		device:  device,
		logger:  logger.Named("chrome").With(zap.String("session", session.ID())),
		events:  make(chan string, opts.QueueSize),
		done:    make(chan struct{}),
		hover:   rate.NewLimiter(rate.Limit(opts.HoverRate), 1),
	}
}

// Launch opens targetURL in a new browser with the capture script installed
// on every document the tab loads.
func (r *ChromeRecorder) Launch(ctx context.Context, targetURL string) error {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("ignore-certificate-errors", true),
	)
	if r.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(r.opts.ExecPath))
	}
	if r.device.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(r.device.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(r.logger.Sugar().Debugf))
	r.ctx = browserCtx
	r.cancel = func() {
		browserCancel()
		allocCancel()
	}

	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		called, ok := ev.(*runtime.EventBindingCalled)
		if !ok || called.Name != bindingName {
			return
		}
		select {
		case r.events <- called.Payload:
		default:
			r.logger.Warn("Event queue full, dropping captured event")
		}
	})

	tasks := chromedp.Tasks{
		runtime.AddBinding(bindingName),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(captureScript).Do(ctx)
			return err
		}),
	}
	if emulate := chrome.Emulation(r.device.Name, r.device.Width, r.device.Height, r.device.UserAgent); emulate != nil {
		tasks = append(tasks, emulate)
	}
	tasks = append(tasks, chromedp.Navigate(targetURL))

	// the first Run starts the browser and must use the browser context
	// itself; later runs may be bounded by the caller's context
	if err := chromedp.Run(browserCtx); err != nil {
		return r.abort(fmt.Errorf("failed to start recording browser: %w", err))
	}
	runCtx, stop := context.WithCancel(browserCtx)
	defer stop()
	unhook := context.AfterFunc(ctx, stop)
	defer unhook()
	if err := chromedp.Run(runCtx, tasks); err != nil {
		return r.abort(fmt.Errorf("failed to open %s: %w", targetURL, err))
	}

	go r.dispatch()
	r.logger.Info("Recording browser launched", zap.String("url", targetURL))
	return nil
}

func (r *ChromeRecorder) abort(err error) error {
	r.cancel()
	close(r.done)
	return err
}

// Close shuts the browser down and waits for the dispatch goroutine.
func (r *ChromeRecorder) Close() error {
	r.closeOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
	})
	select {
	case <-r.done:
		return nil
	case <-time.After(r.opts.CloseGrace):
		return fmt.Errorf("recording browser for session %s did not shut down in %s", r.session.ID(), r.opts.CloseGrace)
	}
}

func (r *ChromeRecorder) dispatch() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			return
		case payload := <-r.events:
			r.handle(payload)
		}
	}
}

func (r *ChromeRecorder) handle(payload string) {
	var captured capturedEvent
	if err := json.UnmarshalFromString(payload, &captured); err != nil {
		r.logger.Warn("Malformed capture payload", zap.Error(err))
		return
	}
	if classifier.EventType(captured.Type) == classifier.EventMouseOver && !r.hover.Allow() {
		return
	}
	ev, err := r.resolve(captured)
	if err != nil {
		r.logger.Warn("Cannot resolve captured event", zap.String("type", captured.Type), zap.Error(err))
		return
	}
	r.session.HandleEvent(ev)
}

// resolve turns a payload into a classifier event by locating its target
// in the DOM snapshot the payload carried.
func (r *ChromeRecorder) resolve(c capturedEvent) (classifier.Event, error) {
	if c.HTML != "" {
		doc, err := dom.ParseString(c.HTML)
		if err != nil {
			return classifier.Event{}, fmt.Errorf("parse snapshot: %w", err)
		}
		r.lastDoc = doc
	}
	if r.lastDoc == nil {
		return classifier.Event{}, fmt.Errorf("no snapshot yet for %s event", c.Type)
	}
	target := r.lastDoc.NodeAtPath(c.Path)
	if target == nil {
		return classifier.Event{}, fmt.Errorf("element path %v not in snapshot", c.Path)
	}
	return classifier.Event{
		Type:      classifier.EventType(c.Type),
		Target:    target,
		Cursor:    c.Cursor,
		Value:     c.Value,
		Key:       c.Key,
		Label:     c.Label,
		Timestamp: c.Timestamp,
	}, nil
}

// captureScript runs in every document of the recording tab and reports
// events through the binding. Ctrl/Cmd+click asks for a label instead of
// clicking.
const captureScript = `(() => {
	if (window.__looprecInstalled) return;
	window.__looprecInstalled = true;

	const emit = (payload) => {
		try { window.` + bindingName + `(JSON.stringify(payload)); } catch (e) {}
	};

	const pathOf = (el) => {
		const path = [];
		while (el && el !== document.documentElement && el.parentElement) {
			path.unshift(Array.prototype.indexOf.call(el.parentElement.children, el));
			el = el.parentElement;
		}
		return path;
	};

	const valueOf = (el) => {
		if (el.isContentEditable) return el.innerText;
		return el.value === undefined ? '' : String(el.value);
	};

	const send = (type, el, extra, snapshot) => {
		if (!(el instanceof Element)) return;
		emit(Object.assign({
			type: type,
			path: pathOf(el),
			html: snapshot ? document.documentElement.outerHTML : '',
			cursor: getComputedStyle(el).cursor,
			timestamp: Date.now()
		}, extra || {}));
	};

	document.addEventListener('click', (e) => {
		if ((e.ctrlKey || e.metaKey) && !e.altKey) {
			e.preventDefault();
			e.stopPropagation();
			const label = window.prompt('Label for this value:');
			if (label) send('label', e.target, { label: label }, true);
			return;
		}
		send('click', e.target, null, true);
	}, true);

	document.addEventListener('input', (e) => send('input', e.target, { value: valueOf(e.target) }, true), true);
	document.addEventListener('change', (e) => send('change', e.target, { value: valueOf(e.target) }, true), true);
	document.addEventListener('mouseover', (e) => send('mouseover', e.target, null, true), true);

	document.addEventListener('keydown', (e) => {
		if (e.key === 'Alt' || e.key === 'Escape') {
			send('keydown', document.documentElement, { key: e.key }, false);
		}
	}, true);
	document.addEventListener('keyup', (e) => {
		if (e.key === 'Alt') {
			send('keyup', document.documentElement, { key: e.key }, false);
		}
	}, true);
})();`
