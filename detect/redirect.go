package detect

import (
	"context"
	"sync"
	"time"
)

// Route is the destination a holding page resolves to.
type Route string

const (
	// RouteMiniApp is the Mini App route tree.
	RouteMiniApp Route = "/tg"
	// RouteBrowser is the browser-oriented fallback page.
	RouteBrowser Route = "/"
)

// Decision is the outcome of one holding-page resolution.
type Decision struct {
	Route      Route
	Result     Result
	Overridden bool
}

// DefaultCountdown is the holding-page timer before the default route
// decision.
const DefaultCountdown = 5 * time.Second

// Resolver drives the holding page shown when first-paint classification is
// inconclusive: it re-runs the classifier (including the active probe),
// counts down toward a default decision, and accepts manual overrides that
// preempt the timer. It exists because the probe and late bridge-script
// injection cannot always resolve before first paint.
type Resolver struct {
	classifier *Classifier
	countdown  time.Duration
	miniApp    Route
	browser    Route
	onTick     func(remaining time.Duration)

	mu       sync.Mutex
	override chan Route
	done     bool
}

// ResolverOption customizes Resolver construction.
type ResolverOption func(*Resolver)

// WithCountdown overrides the holding-page timer.
func WithCountdown(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.countdown = d
		}
	}
}

// WithRoutes overrides the two destinations.
func WithRoutes(miniApp, browser Route) ResolverOption {
	return func(r *Resolver) {
		if miniApp != "" {
			r.miniApp = miniApp
		}
		if browser != "" {
			r.browser = browser
		}
	}
}

// WithTickFunc installs a per-second countdown callback for the UI.
func WithTickFunc(fn func(remaining time.Duration)) ResolverOption {
	return func(r *Resolver) {
		r.onTick = fn
	}
}

// NewResolver builds a Resolver over the given classifier.
func NewResolver(classifier *Classifier, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		classifier: classifier,
		countdown:  DefaultCountdown,
		miniApp:    RouteMiniApp,
		browser:    RouteBrowser,
		override:   make(chan Route, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// OverrideMiniApp bypasses the timer and routes to the Mini App tree.
func (r *Resolver) OverrideMiniApp() {
	r.pushOverride(r.miniApp)
}

// OverrideBrowser bypasses the timer and routes to the browser fallback.
func (r *Resolver) OverrideBrowser() {
	r.pushOverride(r.browser)
}

func (r *Resolver) pushOverride(route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	select {
	case r.override <- route:
	default:
		// An override is already queued; first one wins.
	}
}

// Resolve blocks until an override, the countdown, or ctx settles the
// decision. The classifier runs once up front and once more when the timer
// fires, so a bridge script injected during the countdown still flips the
// verdict.
func (r *Resolver) Resolve(ctx context.Context) (Decision, error) {
	last := r.classifier.Classify(ctx)
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	timer := time.NewTimer(r.countdown)
	defer timer.Stop()

	var ticker *time.Ticker
	var tick <-chan time.Time
	if r.onTick != nil {
		ticker = time.NewTicker(time.Second)
		defer ticker.Stop()
		tick = ticker.C
	}

	deadline := time.Now().Add(r.countdown)

	for {
		select {
		case route := <-r.override:
			r.finish()
			return Decision{Route: route, Result: last, Overridden: true}, nil

		case <-tick:
			r.onTick(time.Until(deadline))

		case <-timer.C:
			last = r.classifier.Classify(ctx)
			if err := ctx.Err(); err != nil {
				return Decision{}, err
			}
			r.finish()
			return Decision{Route: r.routeFor(last), Result: last}, nil

		case <-ctx.Done():
			r.finish()
			return Decision{}, ctx.Err()
		}
	}
}

func (r *Resolver) routeFor(result Result) Route {
	if result.Classification == ClassTelegram {
		return r.miniApp
	}
	return r.browser
}

func (r *Resolver) finish() {
	r.mu.Lock()
	r.done = true
	r.mu.Unlock()
}
