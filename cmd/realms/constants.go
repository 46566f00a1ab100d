package main

// Default limits for CLI commands.
const (
	DefaultQueryLimit   = 10
	DefaultHistoryLimit = 50
)

// multiValuedProperties may hold several active facts per subject at once,
// so new assertions on them never contradict existing ones.
var multiValuedProperties = []string{"condition", "inventory", "title", "alias"}

// Valid participant roles for session registration.
var validRoles = []string{"player", "gm", "narrator", "observer"}
