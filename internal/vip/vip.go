// Package vip implements the pinned-sender guard: mail from a configured
// VIP domain or address is never auto-archived or auto-deleted.
package vip

import (
	"strings"

	"go.uber.org/zap"
)

// Checker reports whether a sender is VIP-pinned.
type Checker struct {
	domains   []string
	addresses map[string]bool
	logger    *zap.Logger
}

// NewChecker creates a checker over the configured VIP domains and
// addresses. Entries containing "@" are treated as full addresses.
func NewChecker(entries []string, logger *zap.Logger) *Checker {
	c := &Checker{
		addresses: make(map[string]bool),
		logger:    logger,
	}
	for _, entry := range entries {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "@") {
			c.addresses[entry] = true
		} else {
			c.domains = append(c.domains, entry)
		}
	}

	if logger != nil && (len(c.domains) > 0 || len(c.addresses) > 0) {
		logger.Info("Initialized VIP checker",
			zap.Strings("domains", c.domains),
			zap.Int("addresses", len(c.addresses)))
	}
	return c
}

// IsVIP checks whether the sender address is pinned.
func (c *Checker) IsVIP(from string) bool {
	from = strings.ToLower(strings.TrimSpace(from))
	if c.addresses[from] {
		return true
	}

	parts := strings.Split(from, "@")
	if len(parts) != 2 {
		return false
	}
	domain := parts[1]
	for _, d := range c.domains {
		if d == domain {
			return true
		}
	}
	return false
}
