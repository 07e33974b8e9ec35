package client

import (
	"context"
	"time"
)

// HookContext describes one server operation for hook inspection. Before
// hooks may mutate Metadata to pass state to their After counterpart.
type HookContext struct {
	// Op is the operation kind: execute, batch, transaction or ping
	Op string

	// SQL is the primary statement text, when the operation has one
	SQL string

	// Fingerprint is the stable hash of SQL, for correlation
	Fingerprint string

	// TraceID is the unique identifier for this operation
	TraceID string

	// StartTime is when the operation began
	StartTime time.Time

	// Metadata carries hook-private state between Before and After
	Metadata map[string]any

	// Error is the operation failure, available in After hooks
	Error error

	// Duration is the operation time, available in After hooks
	Duration time.Duration
}

// Hook observes client operations. Hooks run in registration order.
type Hook interface {
	// Name returns the unique name of this hook
	Name() string

	// Before is called before the operation reaches the transport.
	// Returning an error aborts the operation.
	Before(ctx context.Context, hookCtx *HookContext) error

	// After is called once the operation finished, failed or not.
	// Returning an error replaces the operation's error.
	After(ctx context.Context, hookCtx *HookContext) error
}

// RegisterHook adds a hook to the client's chain. A hook with the same name
// replaces the existing one, keeping its position.
func (c *Client) RegisterHook(hook Hook) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()

	for i, existing := range c.hooks {
		if existing.Name() == hook.Name() {
			c.hooks[i] = hook
			c.logger.Info("hook replaced", String("hook", hook.Name()))
			return
		}
	}

	c.hooks = append(c.hooks, hook)
	c.logger.Info("hook registered", String("hook", hook.Name()), Int("order", len(c.hooks)-1))
}

// UnregisterHook removes a hook by name. It returns whether a hook was
// removed.
func (c *Client) UnregisterHook(name string) bool {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()

	for i, existing := range c.hooks {
		if existing.Name() == name {
			c.hooks = append(c.hooks[:i], c.hooks[i+1:]...)
			c.logger.Info("hook unregistered", String("hook", name))
			return true
		}
	}
	return false
}

// Hooks returns the names of all registered hooks in execution order.
func (c *Client) Hooks() []string {
	c.hooksMu.RLock()
	defer c.hooksMu.RUnlock()

	names := make([]string, len(c.hooks))
	for i, hook := range c.hooks {
		names[i] = hook.Name()
	}
	return names
}

// snapshotHooks copies the chain so operations never hold the lock
func (c *Client) snapshotHooks() []Hook {
	c.hooksMu.RLock()
	defer c.hooksMu.RUnlock()

	hooks := make([]Hook, len(c.hooks))
	copy(hooks, c.hooks)
	return hooks
}

// runBeforeHooks runs Before hooks in order, stopping at the first error.
func (c *Client) runBeforeHooks(ctx context.Context, hooks []Hook, hookCtx *HookContext) error {
	for _, hook := range hooks {
		if err := hook.Before(ctx, hookCtx); err != nil {
			c.logger.Debug("hook aborted operation",
				String("hook", hook.Name()),
				String("op", hookCtx.Op),
				Error("error", err))
			return err
		}
	}
	return nil
}

// runAfterHooks runs every After hook even when one fails, returning the
// last error.
func (c *Client) runAfterHooks(ctx context.Context, hooks []Hook, hookCtx *HookContext) error {
	var lastErr error
	for _, hook := range hooks {
		if err := hook.After(ctx, hookCtx); err != nil {
			c.logger.Debug("hook returned error in After",
				String("hook", hook.Name()),
				String("op", hookCtx.Op),
				Error("error", err))
			lastErr = err
		}
	}
	return lastErr
}

