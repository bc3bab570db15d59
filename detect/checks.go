package detect

// Capability names probed by the checklist. These mirror what a webview
// typically strips compared to a full browser.
const (
	CapLocalStorage   = "localStorage"
	CapSessionStorage = "sessionStorage"
	CapIndexedDB      = "indexedDB"
	CapServiceWorker  = "serviceWorker"
	CapMediaDevices   = "mediaDevices"
	CapWebRTC         = "webRTC"
	CapWebGL          = "webGL"
	CapNotifications  = "notifications"
)

// WeakSignalCapability is the one capability whose absence alone suggests a
// webview: ordinary browsers essentially always expose service workers.
const WeakSignalCapability = CapServiceWorker

// FeatureAnalysisThreshold is how many missing capabilities flip the
// aggregate heuristic to telegram.
const FeatureAnalysisThreshold = 3

// CapabilityCheck is one independent predicate+tag pair in the aggregate
// heuristic.
type CapabilityCheck struct {
	Name string
}

// DefaultChecklist returns the fixed capability checklist.
func DefaultChecklist() []CapabilityCheck {
	return []CapabilityCheck{
		{Name: CapLocalStorage},
		{Name: CapSessionStorage},
		{Name: CapIndexedDB},
		{Name: CapMediaDevices},
		{Name: CapWebRTC},
		{Name: CapWebGL},
		{Name: CapNotifications},
	}
}

func weakTelegramSignal(s Surface) bool {
	return !safeCapability(s, WeakSignalCapability)
}

func missingCapabilities(s Surface, checklist []CapabilityCheck) []string {
	missing := []string{}
	for _, check := range checklist {
		if !safeCapability(s, check.Name) {
			missing = append(missing, check.Name)
		}
	}
	return missing
}

func safeCapability(s Surface, name string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return s.HasCapability(name)
}
