package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/vitos/binary_mg_bot/internal/domain"
	"go.uber.org/zap"
)

// Provider hands out config snapshots, re-reading the file when it changes on disk.
// A broken edit keeps the last good config in force.
type Provider struct {
	path   string
	logger *zap.Logger

	mu      sync.Mutex
	modTime time.Time
	file    File
	loaded  bool
}

func NewProvider(path string, logger *zap.Logger) (*Provider, error) {
	p := &Provider{path: path, logger: logger}
	if _, err := p.Snapshot(); err != nil {
		return nil, err
	}
	return p, nil
}

// File returns the last successfully loaded file.
func (p *Provider) File() File {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.file
}

// Snapshot returns a validated, immutable operating config.
func (p *Provider) Snapshot() (domain.Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, err := os.Stat(p.path)
	switch {
	case err != nil && !p.loaded:
		return domain.Config{}, fmt.Errorf("failed to stat config: %w", err)
	case err != nil:
		p.logger.Warn("Config file unavailable, keeping last snapshot", zap.Error(err))
	case !p.loaded || !st.ModTime().Equal(p.modTime):
		f, lerr := Load(p.path)
		if lerr == nil {
			lerr = f.Domain().Validate()
		}
		if lerr != nil {
			if !p.loaded {
				return domain.Config{}, lerr
			}
			p.logger.Error("Config reload failed, keeping last snapshot", zap.Error(lerr))
			p.modTime = st.ModTime()
			break
		}
		if p.loaded {
			p.logger.Info("Config reloaded", zap.String("path", p.path))
		}
		p.file, p.modTime, p.loaded = f, st.ModTime(), true
	}

	cfg := p.file.Domain()
	return cfg, cfg.Validate()
}
