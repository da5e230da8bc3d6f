package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeID(t *testing.T) {
	tests := map[string]string{
		"Vesta 1.6 IM.det":    "vesta-16-im",
		"Vesta 1.6 IM.pou":    "vesta-16-im",
		"Vesta 1.6 IM.PRT":    "vesta-16-im",
		"data/4_Cyl  ITB.pvd": "4cyl-itb",
		"BMW M42.txt":         "bmw-m42txt",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeID(in), in)
	}
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("vesta-16-im"))
	assert.False(t, ValidID("Vesta"))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID("../etc"))
}
