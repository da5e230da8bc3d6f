package formats

import (
	"go.uber.org/zap"

	"github.com/morozRed/engview/internal/parser"
)

// NewDefaultRegistry creates a registry with the det, pou, prt and pvd parsers registered.
func NewDefaultRegistry(logger *zap.Logger) *parser.Registry {
	r := parser.NewRegistry()

	// Formats are distinct, so these never collide.
	_ = r.Register(NewDetParser(logger))
	_ = r.Register(NewPouParser(logger))
	_ = r.Register(NewPrtParser(logger))
	_ = r.Register(NewPvdParser(logger))

	return r
}
