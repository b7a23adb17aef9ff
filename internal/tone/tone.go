// Package tone holds the session-wide tone of voice and the contract used to
// embed it into the assistant's system instructions.
package tone

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/logger"
)

// Default is the tone used when none is configured.
const Default = "Rispondi in modo sintetico, chiaro e professionale."

// Preamble is the fixed part of the assistant instructions.
const Preamble = "Sei MIDA, un assistente che risponde alle domande dell'utente " +
	"basandosi sui documenti caricati nella sessione. Usa la ricerca nei file per " +
	"trovare le informazioni pertinenti e, se la risposta non è presente nei documenti, dichiaralo."

// ToneHeader introduces the tone inside composed instructions.
const ToneHeader = "ISTRUZIONE PRIORITARIA:"

// delimiter separates preamble and tone. The preamble must not contain it.
const delimiter = "\n\n" + ToneHeader + "\n"

// Compose joins preamble and tone into one instruction string.
func Compose(preamble, tone string) string {
	return preamble + delimiter + tone
}

// Split recovers preamble and tone from composed instructions. ok is false
// when the delimiter is missing, in which case preamble is the whole input.
func Split(instructions string) (preamble, tone string, ok bool) {
	i := strings.Index(instructions, delimiter)
	if i < 0 {
		return instructions, "", false
	}
	return instructions[:i], instructions[i+len(delimiter):], true
}

// Pusher receives the composed instructions whenever the tone changes.
type Pusher interface {
	PushInstructions(ctx context.Context, instructions string) error
}

// Policy is the tone of voice shared by every conversation of a session.
// The local value is authoritative; pushing it to the backend is best effort.
type Policy struct {
	mu       sync.RWMutex
	value    string
	preamble string
	pusher   Pusher
	logger   *logger.Logger
}

// NewPolicy creates a policy starting at initial, or Default when empty.
func NewPolicy(initial string, log *logger.Logger) *Policy {
	if initial == "" {
		initial = Default
	}
	return &Policy{value: initial, preamble: Preamble, logger: log}
}

// Attach sets the backend that receives instruction updates.
func (p *Policy) Attach(pusher Pusher) {
	p.mu.Lock()
	p.pusher = pusher
	p.mu.Unlock()
}

// Get returns the current tone.
func (p *Policy) Get() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// IsDefault reports whether the tone equals Default.
func (p *Policy) IsDefault() bool {
	return p.Get() == Default
}

// Instructions returns the composed instruction string.
func (p *Policy) Instructions() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Compose(p.preamble, p.value)
}

// Set replaces the tone for all future turns and pushes it to the backend.
func (p *Policy) Set(ctx context.Context, value string) {
	p.mu.Lock()
	p.value = value
	pusher := p.pusher
	instructions := Compose(p.preamble, value)
	p.mu.Unlock()

	if pusher == nil {
		return
	}
	if err := pusher.PushInstructions(ctx, instructions); err != nil {
		p.logger.Warn("tone push failed, kept locally", zap.Error(err))
	}
}

// Reset restores Default.
func (p *Policy) Reset(ctx context.Context) {
	p.Set(ctx, Default)
}

// AdoptRemote takes the tone embedded in remote instructions without
// pushing it back. It reports whether a tone was found.
func (p *Policy) AdoptRemote(instructions string) bool {
	_, t, ok := Split(instructions)
	if !ok || strings.TrimSpace(t) == "" {
		return false
	}
	p.mu.Lock()
	p.value = t
	p.mu.Unlock()
	return true
}
