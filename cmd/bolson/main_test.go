package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SigmaX-ai/bolson/config"
	"github.com/SigmaX-ai/bolson/parse"
)

func TestBuildParserContext_DefaultsToSoftwareBackend(t *testing.T) {
	cfg := config.ConverterConfig{Backend: "software", NumThreads: 2, SeqColumn: true}
	ctx, err := buildParserContext(cfg)
	require.NoError(t, err)
	_, ok := ctx.(*parse.SoftwareContext)
	assert.True(t, ok, "software backend must build a *parse.SoftwareContext")
}

func TestBuildParserContext_AcceleratorBackend(t *testing.T) {
	cfg := config.ConverterConfig{Backend: "accelerator", NumThreads: 4, SeqColumn: true}
	ctx, err := buildParserContext(cfg)
	require.NoError(t, err)
	_, ok := ctx.(*parse.AcceleratorContext)
	assert.True(t, ok, "accelerator backend must build a *parse.AcceleratorContext")
}

func TestBuildParserContext_AcceleratorBackendRejectsTooManyThreads(t *testing.T) {
	cfg := config.ConverterConfig{Backend: "accelerator", NumThreads: parse.MaxAcceleratorInstances, SeqColumn: true}
	_, err := buildParserContext(cfg)
	assert.Error(t, err)
}

func TestDefaultRecordSchema_HasVoltageField(t *testing.T) {
	schema := defaultRecordSchema()
	found := false
	for _, f := range schema.Fields() {
		if f.Name == "voltage" {
			found = true
		}
	}
	assert.True(t, found, "default record schema must include the voltage field ingress exercises")
}
