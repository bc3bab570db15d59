// Package detect classifies the environment hosting the web client: a
// Telegram Mini App webview, an ordinary browser, or a mobile browser.
// Classification runs an ordered cascade of independent checks where the
// first match wins and the order encodes confidence. The only suspension
// point is a bounded postMessage-style probe.
package detect

import (
	"context"
	"time"

	"github.com/mssola/user_agent"
)

// Classification is the environment verdict.
type Classification string

const (
	ClassTelegram      Classification = "telegram"
	ClassBrowser       Classification = "browser"
	ClassMobileBrowser Classification = "mobile-browser"
	ClassUnknown       Classification = "unknown"
)

// Method tags which cascade step produced the verdict.
type Method string

const (
	MethodWebAppAPI        Method = "WebApp_API"
	MethodIOSBridge        Method = "iOS_Bridge"
	MethodAndroidBridge    Method = "Android_Bridge"
	MethodPostMessageProbe Method = "PostMessage_Probe"
	MethodWeakSignal       Method = "Weak_Signal"
	MethodFeatureAnalysis  Method = "Feature_Analysis"
)

// Host-provided global names the cascade inspects.
const (
	GlobalWebApp       = "Telegram.WebApp"
	GlobalIOSProxy     = "TelegramWebviewProxy"
	GlobalAndroidProxy = "TelegramWebview"
)

// Result is one classification outcome. Evidence is a page-lifetime
// diagnostic snapshot and is never persisted.
type Result struct {
	Classification Classification
	Method         Method
	LowConfidence  bool
	Evidence       map[string]any
}

// Surface abstracts the host runtime the classifier inspects. Mocked
// surfaces make the cascade deterministic and testable: an identical
// surface always yields an identical Result.
type Surface interface {
	// Global returns a host-provided global object by dotted name. The
	// classifier treats any lookup defensively; implementations may panic.
	Global(name string) (any, bool)
	// HasCapability reports whether a named platform capability is usable.
	HasCapability(name string) bool
	// InIFrame reports whether the page runs framed. Framed pages must not
	// short-circuit the cascade.
	InIFrame() bool
	// UserAgent returns the navigator user-agent string.
	UserAgent() string
	// Probe posts a self-addressed sentinel message and reports whether a
	// tagged reply arrived. Implementations must honor ctx cancellation.
	Probe(ctx context.Context) bool
}

// DefaultProbeTimeout bounds the active probe.
const DefaultProbeTimeout = 1000 * time.Millisecond

// Classifier runs the detection cascade over one Surface.
type Classifier struct {
	surface      Surface
	probeTimeout time.Duration
	checklist    []CapabilityCheck
}

// Option customizes Classifier construction.
type Option func(*Classifier)

// WithProbeTimeout overrides the probe bound.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

// WithChecklist replaces the capability checklist.
func WithChecklist(checks []CapabilityCheck) Option {
	return func(c *Classifier) {
		if len(checks) > 0 {
			c.checklist = checks
		}
	}
}

// New builds a Classifier for the given surface.
func New(surface Surface, opts ...Option) *Classifier {
	c := &Classifier{
		surface:      surface,
		probeTimeout: DefaultProbeTimeout,
		checklist:    DefaultChecklist(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Classify runs the cascade. It never panics: any misbehaving host global
// degrades the verdict to unknown instead. Re-running after a bridge script
// loads late may upgrade a browser verdict to telegram; callers must
// tolerate that.
func (c *Classifier) Classify(ctx context.Context) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{
				Classification: ClassUnknown,
				Evidence:       map[string]any{"panic": r},
			}
		}
	}()

	evidence := map[string]any{
		"iframe": c.surface.InIFrame(),
	}

	// 1. WebApp-style object with readable version/platform fields.
	if info, ok := webAppInfo(c.surface); ok {
		evidence["webapp_version"] = info.Version
		evidence["webapp_platform"] = info.Platform
		return Result{Classification: ClassTelegram, Method: MethodWebAppAPI, Evidence: evidence}
	}

	// 2-3. Native bridge objects.
	if _, ok := safeGlobal(c.surface, GlobalIOSProxy); ok {
		return Result{Classification: ClassTelegram, Method: MethodIOSBridge, Evidence: evidence}
	}
	if _, ok := safeGlobal(c.surface, GlobalAndroidProxy); ok {
		return Result{Classification: ClassTelegram, Method: MethodAndroidBridge, Evidence: evidence}
	}

	// 4. Bounded active probe, the one suspension point.
	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	replied := c.surface.Probe(probeCtx)
	cancel()
	evidence["probe_replied"] = replied
	if replied {
		return Result{Classification: ClassTelegram, Method: MethodPostMessageProbe, Evidence: evidence}
	}

	// 5. Single weak negative signal.
	if weakTelegramSignal(c.surface) {
		evidence["weak_signal"] = WeakSignalCapability
		return Result{
			Classification: ClassTelegram,
			Method:         MethodWeakSignal,
			LowConfidence:  true,
			Evidence:       evidence,
		}
	}

	// 6. Aggregate capability heuristic.
	missing := missingCapabilities(c.surface, c.checklist)
	evidence["missing_capabilities"] = missing
	if len(missing) >= FeatureAnalysisThreshold {
		return Result{Classification: ClassTelegram, Method: MethodFeatureAnalysis, Evidence: evidence}
	}

	class := ClassBrowser
	if ua := user_agent.New(c.surface.UserAgent()); ua.Mobile() {
		class = ClassMobileBrowser
	}
	return Result{Classification: class, Method: MethodFeatureAnalysis, Evidence: evidence}
}

// webAppInfo reads version/platform off the WebApp global when both fields
// are present and non-empty.
type bridgeInfo struct {
	Version  string
	Platform string
}

func webAppInfo(s Surface) (bridgeInfo, bool) {
	raw, ok := safeGlobal(s, GlobalWebApp)
	if !ok {
		return bridgeInfo{}, false
	}

	fields, ok := raw.(map[string]any)
	if !ok {
		return bridgeInfo{}, false
	}

	version, _ := fields["version"].(string)
	platform, _ := fields["platform"].(string)
	if version == "" || platform == "" {
		return bridgeInfo{}, false
	}

	return bridgeInfo{Version: version, Platform: platform}, true
}

// safeGlobal shields the cascade from host globals that throw on access.
func safeGlobal(s Surface, name string) (val any, ok bool) {
	defer func() {
		if recover() != nil {
			val, ok = nil, false
		}
	}()
	return s.Global(name)
}
