package datacontext

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verityhq/verity/pkg/store"
)

// deriveContextID establishes the stable identity of this project. A
// persistent expectations-store backend is the preferred source, so that the
// identity survives config edits; the usage statistics section is the
// fallback, and a project with neither gets a fresh UUID. The result is
// written back to the in-memory usage statistics section so every later
// consumer sees the same id. Runs once during construction.
func (c *Context) deriveContextID() string {
	if name := c.cfg.ExpectationsStoreName; name != "" {
		if s, err := c.GetStore(name); err == nil {
			if backend, ok := s.Backend().(store.PersistentBackend); ok {
				// Warnings suppressed: an invalid store config already
				// warned during store construction.
				if id := backend.BackendID(true); id != "" {
					return id
				}
			}
		}
	}

	if id := c.configuredContextID(); id != "" {
		return id
	}

	id := uuid.NewString()
	c.logger.Debug("no stored context id found, generated a new one", zap.String("context_id", id))
	return id
}

// ContextID returns the stable identity of this project context.
func (c *Context) ContextID() string { return c.contextID }

// InstanceID identifies this particular context instance. It comes from the
// instance_id config variable when present, otherwise it is generated once
// per context and lives only for the life of the process.
func (c *Context) InstanceID() string { return c.instanceID }
