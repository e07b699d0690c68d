//go:build tools

package tools

// mockery v3 is used as an installed binary, so no blank import is needed.
// Regenerate pkg/event/mocks by running mockery from the repository root;
// .mockery.yaml lists the interfaces.
