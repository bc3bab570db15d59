package detect_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taktarovg/3gis-auth/detect"
)

func TestResolveTimerRoutesBrowser(t *testing.T) {
	classifier := detect.New(browserSurface())
	resolver := detect.NewResolver(classifier, detect.WithCountdown(30*time.Millisecond))

	decision, err := resolver.Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, detect.RouteBrowser, decision.Route)
	assert.False(t, decision.Overridden)
	assert.Equal(t, detect.ClassBrowser, decision.Result.Classification)
}

func TestResolveTimerRoutesMiniApp(t *testing.T) {
	surface := browserSurface()
	surface.globals[detect.GlobalIOSProxy] = struct{}{}

	resolver := detect.NewResolver(detect.New(surface), detect.WithCountdown(30*time.Millisecond))

	decision, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, detect.RouteMiniApp, decision.Route)
}

func TestResolveOverridePreemptsTimer(t *testing.T) {
	classifier := detect.New(browserSurface())
	resolver := detect.NewResolver(classifier, detect.WithCountdown(time.Hour))

	go func() {
		time.Sleep(10 * time.Millisecond)
		resolver.OverrideMiniApp()
	}()

	start := time.Now()
	decision, err := resolver.Resolve(context.Background())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Minute)
	assert.Equal(t, detect.RouteMiniApp, decision.Route)
	assert.True(t, decision.Overridden)
}

func TestResolveFirstOverrideWins(t *testing.T) {
	classifier := detect.New(browserSurface())
	resolver := detect.NewResolver(classifier, detect.WithCountdown(time.Hour))

	resolver.OverrideBrowser()
	resolver.OverrideMiniApp() // queued too late, dropped

	decision, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, detect.RouteBrowser, decision.Route)
	assert.True(t, decision.Overridden)
}

func TestResolveLateBridgeFlipsTimerDecision(t *testing.T) {
	surface := browserSurface()
	resolver := detect.NewResolver(detect.New(surface), detect.WithCountdown(50*time.Millisecond))

	// Bridge script lands mid-countdown; the re-run at timer expiry sees it.
	go func() {
		time.Sleep(10 * time.Millisecond)
		surface.setGlobal(detect.GlobalAndroidProxy, struct{}{})
	}()

	decision, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, detect.RouteMiniApp, decision.Route)
}

func TestResolveContextCancelled(t *testing.T) {
	classifier := detect.New(browserSurface())
	resolver := detect.NewResolver(classifier, detect.WithCountdown(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := resolver.Resolve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveTickCallback(t *testing.T) {
	var ticks atomic.Int32

	classifier := detect.New(browserSurface())
	resolver := detect.NewResolver(classifier,
		detect.WithCountdown(2500*time.Millisecond),
		detect.WithTickFunc(func(remaining time.Duration) {
			ticks.Add(1)
		}),
	)

	_, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ticks.Load(), int32(2))
}

func TestResolveCustomRoutes(t *testing.T) {
	surface := browserSurface()
	surface.globals[detect.GlobalIOSProxy] = struct{}{}

	resolver := detect.NewResolver(detect.New(surface),
		detect.WithCountdown(20*time.Millisecond),
		detect.WithRoutes("/app", "/landing"),
	)

	decision, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, detect.Route("/app"), decision.Route)
}

func TestOverrideAfterDoneIsIgnored(t *testing.T) {
	classifier := detect.New(browserSurface())
	resolver := detect.NewResolver(classifier, detect.WithCountdown(20*time.Millisecond))

	_, err := resolver.Resolve(context.Background())
	require.NoError(t, err)

	// Must not panic or block once the decision is made.
	resolver.OverrideMiniApp()
	resolver.OverrideBrowser()
}
