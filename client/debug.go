package client

import (
	"encoding/json"
	"fmt"
	"time"
)

// EnableDebugMode enables debug mode with request tracing and stack traces.
func (c *Client) EnableDebugMode() {
	c.debugMode.Store(true)
	c.logger.Info("debug mode enabled")
}

// DisableDebugMode disables debug mode.
func (c *Client) DisableDebugMode() {
	c.debugMode.Store(false)
	c.logger.Info("debug mode disabled")
}

// IsDebugMode returns whether debug mode is currently enabled.
func (c *Client) IsDebugMode() bool {
	return c.debugMode.Load()
}

// GetDebugInfo returns a snapshot of client state for debugging.
func (c *Client) GetDebugInfo() map[string]interface{} {
	info := map[string]interface{}{
		"version":   Version,
		"baseURL":   c.baseURL,
		"debugMode": c.IsDebugMode(),
		"closed":    c.closed.Load(),
		"hooks":     c.Hooks(),
	}

	metrics := c.transport.Metrics()
	transportInfo := map[string]interface{}{
		"totalRequests":  metrics.TotalRequests,
		"totalErrors":    metrics.TotalErrors,
		"averageLatency": metrics.AverageLatency.String(),
		"bytesSent":      metrics.BytesSent,
		"bytesReceived":  metrics.BytesReceived,
	}
	if metrics.LastError != nil {
		transportInfo["lastError"] = metrics.LastError.Error()
		transportInfo["lastErrorTime"] = metrics.LastErrorTime.Format("2006-01-02T15:04:05.000Z07:00")
	}
	info["transport"] = transportInfo

	info["options"] = map[string]interface{}{
		"timeout":     c.opts.Timeout.String(),
		"integerMode": c.opts.IntegerMode.String(),
		"logLevel":    c.opts.LogLevel,
		"hasToken":    c.opts.AuthToken != "",
	}

	if exp, ok := c.TokenExpiry(); ok {
		info["tokenExpiry"] = map[string]interface{}{
			"expiresAt": exp.Format(time.RFC3339),
			"expired":   time.Now().After(exp),
		}
	}

	return info
}

// DumpDebugInfoJSON returns debug info as formatted JSON string.
func (c *Client) DumpDebugInfoJSON() string {
	info := c.GetDebugInfo()
	bytes, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": "failed to marshal debug info: %s"}`, err.Error())
	}
	return string(bytes)
}
