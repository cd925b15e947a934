package redirect

import (
	"sync"
	"sync/atomic"

	"github.com/package-linker/pkg/config"
	"github.com/package-linker/pkg/utils"
)

// Source returns the redirect configuration to build from.
type Source func() (config.RedirectsConfig, error)

// Provider builds the process-wide Registry on first use and hands the same
// instance to every caller afterwards.
type Provider struct {
	source Source
	logger utils.Logger

	once     sync.Once
	registry *Registry
	err      error
	loads    atomic.Int32
}

// NewProvider creates a Provider reading from source.
func NewProvider(source Source, logger utils.Logger) *Provider {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &Provider{source: source, logger: logger}
}

// StaticProvider wraps an already-known configuration.
func StaticProvider(cfg config.RedirectsConfig, logger utils.Logger) *Provider {
	return NewProvider(func() (config.RedirectsConfig, error) { return cfg, nil }, logger)
}

// Registry returns the shared registry, reading the configuration exactly
// once. A failed read is remembered and returned on every call, together
// with an empty registry so loading can proceed without redirects.
func (p *Provider) Registry() (*Registry, error) {
	p.once.Do(func() {
		p.loads.Add(1)
		cfg, err := p.source()
		if err != nil {
			p.logger.Warn("active redirects unavailable: %v", err)
			p.registry, p.err = Empty(), err
			return
		}
		p.registry = Build(cfg, p.logger)
	})
	return p.registry, p.err
}

// Loads reports how many times the configuration has been read.
func (p *Provider) Loads() int {
	return int(p.loads.Load())
}
