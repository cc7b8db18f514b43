package fetchmetanet

// StealthOptions configures the browser backend's launch-time fingerprint,
// narrowed from the teacher's StealthConfig. When Enabled, the browser
// backend applies Width and Height as the window size and prepares pages
// with go-rod/stealth; Platform and Language are carried but not applied
// by BrowserBackend. The
// teacher's anti-bot JS injection and TLS fingerprint spoofing are out of
// scope here (see DESIGN.md).
type StealthOptions struct {
	Enabled  bool
	Width    int
	Height   int
	Platform string
	Language string
}
