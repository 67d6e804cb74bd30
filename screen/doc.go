// Package screen provides the screen-share background source.
//
// A Provider asks the user for consent and returns a live Capture. Share
// wraps a Provider with one-shot, non-blocking acquisition: the render loop
// calls Ensure every tick and Snapshot when it needs a background, and gets
// nil until the user has granted access. A denial is remembered until
// Release so the user is not prompted every frame.
//
// PortalProvider talks to xdg-desktop-portal over D-Bus. PatternProvider is
// a synthetic desktop used by the command and tests.
package screen
