// Package latch implements persistence for latched alarm channels.
//
// The FileRepository stores and loads the set of latched channels as JSON on
// disk so an unacknowledged alarm survives an agent restart. It exposes a
// Repository interface that the agent service depends on.
package latch
