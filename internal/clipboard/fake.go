package clipboard

import (
	"context"
	"sync"

	apperrors "github.com/kimhsiao/memoria/internal/errors"
)

// Offer is one MIME-typed payload on the fake clipboard.
type Offer struct {
	MIME string
	Data []byte
}

// Fake is an in-memory Capability for tests. Writes replace the offered
// content, like a real clipboard.
type Fake struct {
	mu        sync.Mutex
	types     []string
	content   map[string][]byte
	writes    []Offer
	PrereqErr error
	ReadErr   error
	WriteErr  error
}

// NewFake returns an empty fake clipboard.
func NewFake() *Fake {
	return &Fake{content: map[string][]byte{}}
}

// Set replaces the clipboard with one offer per (mime, data) pair in order.
func (f *Fake) Set(offers ...Offer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = f.types[:0]
	f.content = map[string][]byte{}
	for _, o := range offers {
		f.types = append(f.types, o.MIME)
		f.content[o.MIME] = append([]byte(nil), o.Data...)
	}
}

// SetText offers a single text/plain payload.
func (f *Fake) SetText(s string) {
	f.Set(Offer{MIME: TextType, Data: []byte(s)})
}

// Clear empties the clipboard.
func (f *Fake) Clear() {
	f.Set()
}

// Writes returns a copy of every successful Write call.
func (f *Fake) Writes() []Offer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Offer(nil), f.writes...)
}

func (f *Fake) CheckPrerequisites(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PrereqErr
}

func (f *Fake) Types(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	return append([]string{}, f.types...), nil
}

func (f *Fake) Read(ctx context.Context, mime string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	return append([]byte{}, f.content[mime]...), nil
}

func (f *Fake) Write(ctx context.Context, mime string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteErr != nil {
		return apperrors.Wrap(apperrors.ErrExternalTool, "clipboard write failed", f.WriteErr)
	}
	cp := append([]byte(nil), data...)
	f.writes = append(f.writes, Offer{MIME: mime, Data: cp})
	f.types = []string{mime}
	f.content = map[string][]byte{mime: cp}
	return nil
}

var _ Capability = (*Fake)(nil)
var _ Capability = (*Wayland)(nil)
