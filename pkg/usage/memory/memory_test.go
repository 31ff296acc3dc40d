package memory

import (
	"testing"

	"github.com/certforge/certstore/pkg/usage"
	"github.com/certforge/certstore/pkg/usage/usagetest"
)

func TestMemoryStore(t *testing.T) {
	usagetest.Run(t, func(t *testing.T) usage.Store { return New() })
}
