package clipboard

import "sync"

// MemoryProvider is an in-process Provider backed by a map. Writes
// complete synchronously and return already-finished handles. Used by
// tests and anywhere a real windowing system is absent.
type MemoryProvider struct {
	mu       sync.Mutex
	contents map[Selection]Content
	readErr  map[Selection]error
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		contents: make(map[Selection]Content),
		readErr:  make(map[Selection]error),
	}
}

// Set seeds a buffer, simulating an external copy.
func (p *MemoryProvider) Set(sel Selection, c Content) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.contents[sel] = c
}

// FailReads makes Read return err for the given buffer until called
// again with nil.
func (p *MemoryProvider) FailReads(sel Selection, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErr[sel] = err
}

func (p *MemoryProvider) Read(sel Selection) (Content, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.readErr[sel]; err != nil {
		return EmptyContent(), err
	}
	c, ok := p.contents[sel]
	if !ok {
		return EmptyContent(), nil
	}
	return c, nil
}

func (p *MemoryProvider) WriteText(sel Selection, text string) error {
	p.Set(sel, TextContent(text))
	return nil
}

func (p *MemoryProvider) WriteTextAsync(sel Selection, text string) (*WriteHandle, error) {
	p.Set(sel, TextContent(text))
	h := newWriteHandle()
	h.finish()
	return h, nil
}

func (p *MemoryProvider) WriteImage(sel Selection, img Image) error {
	p.Set(sel, ImageContent(img))
	return nil
}

func (p *MemoryProvider) Clear(sel Selection) error {
	p.Set(sel, EmptyContent())
	return nil
}
