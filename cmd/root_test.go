package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"scan", "serve", "leads", "propose", "deploy"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "brandlift", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestScanCommand_Flags(t *testing.T) {
	for _, name := range []string{"location", "keyword", "target", "max-iterations", "profile", "min-signal", "run-id", "json"} {
		assert.NotNil(t, scanCmd.Flags().Lookup(name), "scan should have --%s flag", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestLeadsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range leadsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["export"])

	out := leadsExportCmd.Flags().Lookup("out")
	require.NotNil(t, out)
	assert.Equal(t, "leads.xlsx", out.DefValue)
}

func TestProposeAndDeploy_Flags(t *testing.T) {
	require.NotNil(t, proposeCmd.Flags().Lookup("run"))
	assert.Equal(t, "sites", proposeCmd.Flags().Lookup("out").DefValue)
	assert.Equal(t, "sites", deployCmd.Flags().Lookup("dir").DefValue)
	assert.Equal(t, "", deployCmd.Flags().Lookup("root").DefValue)
}
