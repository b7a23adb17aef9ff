package corpus

import (
	"context"
	"errors"
)

// ErrNoAssistant is returned by Nop.EnsureAssistant.
var ErrNoAssistant = errors.New("no remote assistant configured")

// Nop is a corpus without a remote side. Documents added through it are
// never retrievable by a backend.
type Nop struct{}

// EnsureAssistant always fails with ErrNoAssistant.
func (Nop) EnsureAssistant(context.Context) (*Assistant, error) { return nil, ErrNoAssistant }

// Upload accepts content without storing it remotely.
func (Nop) Upload(context.Context, string, []byte) (string, error) { return "", nil }

// Delete does nothing.
func (Nop) Delete(context.Context, string) {}

// Reconcile reports nothing.
func (Nop) Reconcile(context.Context, []string) (Report, error) { return Report{}, nil }

// PushInstructions does nothing.
func (Nop) PushInstructions(context.Context, string) error { return nil }

// Handle is always empty.
func (Nop) Handle() Handle { return Handle{} }
